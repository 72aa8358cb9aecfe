package sat

import "time"

type kissatSolver struct{}

func NewKissatSolver() Solver {
	return &kissatSolver{}
}

func (solver *kissatSolver) Solve(problem Problem, budget time.Duration) (Result, error) {
	kissatPath, err := getExecutablePath("kissatPath", "kissat")
	if err != nil {
		return Result{}, err
	}
	return runDimacs(problem, budget, kissatPath, []string{"-q", "--relaxed"}, false)
}
