package sat

import "time"

type minisatSolver struct{}

func NewMinisatSolver() Solver {
	return &minisatSolver{}
}

func (solver *minisatSolver) Solve(problem Problem, budget time.Duration) (Result, error) {
	minisatPath, err := getExecutablePath("minisatPath", "minisat")
	if err != nil {
		return Result{}, err
	}
	return runDimacs(problem, budget, minisatPath, []string{"-verb=0"}, true)
}
