package model

import (
	"fmt"
	"time"

	"github.com/limaJavier/examtabling/pkg/sat"
	"go.uber.org/zap"
)

type pseudoBooleanTimetabler struct {
	solver sat.Solver
	logger *zap.Logger
}

func NewPseudoBooleanTimetabler(solver sat.Solver, logger *zap.Logger) Timetabler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &pseudoBooleanTimetabler{
		solver: solver,
		logger: logger,
	}
}

func (timetabler *pseudoBooleanTimetabler) Build(modelInput ModelInput) (BuildResult, error) {
	//** Initialize dependencies
	evaluator := newPredicateEvaluator(modelInput)

	diagnostics, err := preflight(modelInput, evaluator)
	if err != nil {
		return BuildResult{}, fmt.Errorf("cannot run preflight: %w", err)
	} else if len(diagnostics) > 0 {
		timetabler.logger.Warn("instance is infeasible by construction", zap.Strings("diagnostics", diagnostics))
		return BuildResult{Status: sat.Infeasible, Diagnostics: diagnostics}, nil
	}

	rules := deriveRules(modelInput, evaluator)
	state := newConstraintState(modelInput, evaluator, rules)

	//** Build pseudo-boolean instance
	start := time.Now()

	// Constraints functions
	generators := []func(state constraintState, fragment *sat.Problem){
		placementConstraints,
		forbiddenConstraints,
		pinConstraints,
		limitConstraints,
		roomConstraints,
		roomExclusivityConstraints,
		penaltyConstraints,
		gapConstraints,
		sittingPenaltyTerms,
		roomPenaltyConstraints,
	}
	problem := buildProblem(state, generators)

	timetabler.logger.Info("problem built",
		zap.Int("exams", len(modelInput.Exams)),
		zap.Int("students", len(modelInput.Students)),
		zap.Uint64("variables", problem.Variables),
		zap.Int("constraints", len(problem.Constraints)),
		zap.Int("objectiveTerms", len(problem.Objective)),
		zap.Duration("elapsed", time.Since(start)),
	)

	//** Solve pseudo-boolean instance
	start = time.Now()
	solution, err := timetabler.solver.Solve(problem, modelInput.Config.TimeBudget)
	if err != nil {
		return BuildResult{}, fmt.Errorf("cannot solve problem: %w", err)
	}
	timetabler.logger.Info("problem solved",
		zap.Stringer("status", solution.Status),
		zap.Int64("objective", solution.Objective),
		zap.Duration("elapsed", time.Since(start)),
	)

	result := BuildResult{
		Status:      solution.Status,
		Objective:   solution.Objective,
		Variables:   problem.Variables,
		Constraints: uint64(len(problem.Constraints)),
	}
	if !solution.Status.Solved() { // Infeasible and Unknown carry no timetable
		return result, nil
	}

	result.Timetable = extract(solution.Assignment, state)
	result.Penalty = realizedPenalty(result.Timetable, modelInput, rules)
	return result, nil
}

func (timetabler *pseudoBooleanTimetabler) Verify(timetable Timetable, modelInput ModelInput) []Finding {
	return verify(timetable, modelInput)
}
