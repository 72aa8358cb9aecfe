package sat

import "time"

type cadicalSolver struct{}

func NewCadicalSolver() Solver {
	return &cadicalSolver{}
}

func (solver *cadicalSolver) Solve(problem Problem, budget time.Duration) (Result, error) {
	cadicalPath, err := getExecutablePath("cadicalPath", "cadical")
	if err != nil {
		return Result{}, err
	}
	return runDimacs(problem, budget, cadicalPath, []string{"-q"}, false)
}
