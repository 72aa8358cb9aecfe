package model

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	sat.ServeWorker()
	os.Exit(m.Run())
}

type fakeSolver struct {
	result sat.Result
	err    error
	calls  int
}

func (solver *fakeSolver) Solve(problem sat.Problem, budget time.Duration) (sat.Result, error) {
	solver.calls++
	return solver.result, solver.err
}

func roundTripInput(t *testing.T) ModelInput {
	return processInput(t, RawModelInput{
		Exams: []RawExam{
			{Name: "Algebra", Core: true, Leaders: []string{"Dr A"}},
			{Name: "Geometry", Leaders: []string{"Dr A"}},
			{Name: "Programming", Style: ComputerStyle, Leaders: []string{"Dr B"}},
			{Name: "History", Fixed: true, Pin: &Sitting{Day: 1, Slot: 1}},
		},
		Students: []RawStudent{
			{Name: "S1", Exams: []string{"Algebra", "Geometry", "History"}},
			{Name: "S2", Tier: ExtraTime50Tier, Exams: []string{"Algebra", "Programming"}},
			{Name: "S3", Tier: ExtraTime25Tier, Exams: []string{"Geometry", "Programming", "History"}},
		},
		Rooms: []RawRoom{
			hall("Hall", 40),
			{Name: "Lab", Capabilities: []Capability{AccessibleCapability, StandardCapability, ComputerCapability}, Capacity: 20},
			{Name: "Placeholder", Placeholder: true},
		},
		Calendar: &Calendar{
			Days:      7,
			Slots:     2,
			Forbidden: []Sitting{{Day: 5, Slot: 0}, {Day: 5, Slot: 1}, {Day: 6, Slot: 0}, {Day: 6, Slot: 1}},
		},
	})
}

func TestPseudoBooleanTimetabler(t *testing.T) {
	t.Run("Generated timetables pass the checker", func(t *testing.T) {
		//** Arrange
		input := roundTripInput(t)
		timetabler := NewPseudoBooleanTimetabler(sat.NewGophersatSolver(), nil)

		//** Act
		result, err := timetabler.Build(input)

		//** Assert
		require.NoError(t, err)
		require.True(t, result.Status.Solved())
		require.Len(t, result.Timetable, len(input.Exams))

		findings := timetabler.Verify(result.Timetable, input)
		assert.Empty(t, HardFindings(findings))
		assert.Equal(t, Penalty(findings), result.Penalty)
		if result.Status == sat.Optimal {
			assert.Equal(t, result.Objective, result.Penalty)
		}

		assert.Equal(t, Sitting{Day: 1, Slot: 1}, result.Timetable["History"].Sitting())
		assert.Equal(t, []string{"Placeholder"}, result.Timetable["History"].Rooms)
		assert.Equal(t, []string{"Lab"}, result.Timetable["Programming"].Rooms)
		assert.Positive(t, result.Variables)
		assert.Positive(t, result.Constraints)
	})

	t.Run("Insufficient capacity is infeasible", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams: []RawExam{{Name: "E1"}},
			Students: []RawStudent{
				{Name: "S1", Exams: []string{"E1"}},
				{Name: "S2", Exams: []string{"E1"}},
				{Name: "S3", Exams: []string{"E1"}},
			},
			Rooms: []RawRoom{hall("Small", 2)},
		})
		timetabler := NewPseudoBooleanTimetabler(sat.NewGophersatSolver(), nil)

		result, err := timetabler.Build(input)

		require.NoError(t, err)
		assert.Equal(t, sat.Infeasible, result.Status)
		assert.Nil(t, result.Timetable)
	})

	t.Run("Unknown is not mistaken for infeasible", func(t *testing.T) {
		input, _ := scenarioA(t)
		solver := &fakeSolver{result: sat.Result{Status: sat.Unknown}}
		timetabler := NewPseudoBooleanTimetabler(solver, nil)

		result, err := timetabler.Build(input)

		require.NoError(t, err)
		assert.Equal(t, 1, solver.calls)
		assert.Equal(t, sat.Unknown, result.Status)
		assert.Nil(t, result.Timetable)
	})

	t.Run("Solver errors are returned", func(t *testing.T) {
		input, _ := scenarioA(t)
		solverErr := errors.New("solver crashed")
		timetabler := NewPseudoBooleanTimetabler(&fakeSolver{err: solverErr}, nil)

		_, err := timetabler.Build(input)

		assert.ErrorIs(t, err, solverErr)
	})

	t.Run("Instances infeasible by construction skip the solver", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams: []RawExam{{Name: "E1"}, {Name: "E2"}, {Name: "E3"}},
			Students: []RawStudent{
				{Name: "S1", Exams: []string{"E1", "E2", "E3"}},
			},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 1, Slots: 2},
		})
		solver := &fakeSolver{}
		timetabler := NewPseudoBooleanTimetabler(solver, nil)

		result, err := timetabler.Build(input)

		require.NoError(t, err)
		assert.Zero(t, solver.calls)
		assert.Equal(t, sat.Infeasible, result.Status)
		assert.Equal(t, []string{"student S1 has more exams than available sittings"}, result.Diagnostics)
	})
}

func TestPreflight(t *testing.T) {
	t.Run("Pins on forbidden sittings", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams:    []RawExam{{Name: "E1", Core: true, Fixed: true, Pin: &Sitting{Day: 5, Slot: 0}}},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 7, Slots: 2, Forbidden: []Sitting{{Day: 5, Slot: 0}}},
		})

		diagnostics, err := preflight(input, newPredicateEvaluator(input))

		require.NoError(t, err)
		assert.Contains(t, diagnostics, "fixed exam E1 is pinned to forbidden day 5 morning")
	})

	t.Run("Fixed exams sharing a core day", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams: []RawExam{
				{Name: "Core", Core: true, Fixed: true, Pin: &Sitting{Day: 2, Slot: 0}},
				{Name: "Other", Core: true, Fixed: true, Pin: &Sitting{Day: 2, Slot: 1}},
			},
			Students: []RawStudent{{Name: "S1", Exams: []string{"Core", "Other"}}},
			Rooms:    []RawRoom{hall("R1", 50)},
		})

		diagnostics, err := preflight(input, newPredicateEvaluator(input))

		require.NoError(t, err)
		assert.Equal(t, []string{"student S1 sits fixed exams Core and Other on day 2, where one of them is core"}, diagnostics)
	})

	t.Run("Students with 50% extra time are matched against days", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams:    []RawExam{{Name: "E1"}, {Name: "E2"}},
			Students: []RawStudent{{Name: "S1", Tier: ExtraTime50Tier, Exams: []string{"E1", "E2"}}},
			Rooms:    []RawRoom{hall("R1", 50)},
			Calendar: &Calendar{Days: 1, Slots: 2},
		})

		diagnostics, err := preflight(input, newPredicateEvaluator(input))

		require.NoError(t, err)
		assert.Equal(t, []string{"student S1 has more exams than available days"}, diagnostics)
	})

	t.Run("Leaders with two pins in week three", func(t *testing.T) {
		input := processInput(t, RawModelInput{
			Exams: []RawExam{
				{Name: "E1", Core: true, Fixed: true, Pin: &Sitting{Day: 4, Slot: 0}, Leaders: []string{"Dr A"}},
				{Name: "E2", Core: true, Fixed: true, Pin: &Sitting{Day: 6, Slot: 0}, Leaders: []string{"Dr A"}},
			},
			Rooms: []RawRoom{hall("R1", 50)},
		})

		diagnostics, err := preflight(input, newPredicateEvaluator(input))

		require.NoError(t, err)
		assert.Equal(t, []string{"leader Dr A owns 2 exams pinned within week three: E1, E2"}, diagnostics)
	})

	t.Run("Feasible instances yield nothing", func(t *testing.T) {
		input := roundTripInput(t)

		diagnostics, err := preflight(input, newPredicateEvaluator(input))

		require.NoError(t, err)
		assert.Empty(t, diagnostics)
	})
}

func TestExtract(t *testing.T) {
	//** Arrange
	input, _ := scenarioA(t)
	evaluator := newPredicateEvaluator(input)
	state := newConstraintState(input, evaluator, deriveRules(input, evaluator))

	assignment := make(sat.Assignment, state.indexer.Variables())
	set := func(variable int64) { assignment[variable-1] = true }
	set(state.indexer.Placement(0, 0, 1))
	set(state.indexer.Room(0, 2))
	set(state.indexer.Placement(1, 3, 0))
	set(state.indexer.Room(1, 0))
	set(state.indexer.Room(1, 1))
	set(state.indexer.Placement(2, 6, 1))
	set(state.indexer.Room(2, 1))

	//** Act
	timetable := extract(assignment, state)

	//** Assert
	assert.Equal(t, Timetable{
		"E1": {Day: 0, Slot: 1, Rooms: []string{"R3"}},
		"E2": {Day: 3, Slot: 0, Rooms: []string{"R1", "R2"}},
		"E3": {Day: 6, Slot: 1, Rooms: []string{"R2"}},
	}, timetable)
	assert.Empty(t, Check(timetable, input))
}

func TestTieredPenalty(t *testing.T) {
	solver := sat.NewGophersatSolver()

	for _, testCase := range []struct {
		name     string
		forced   int
		expected int64
	}{
		{name: "Below the first tier", forced: 2, expected: 0},
		{name: "First tier", forced: 3, expected: 5},
		{name: "Highest tier", forced: 5, expected: 10},
	} {
		t.Run(testCase.name, func(t *testing.T) {
			//** Arrange
			problem := sat.Problem{Variables: 5}
			literals := []int64{1, 2, 3, 4, 5}
			for _, literal := range literals[:testCase.forced] {
				problem.Clause(literal)
			}
			for _, literal := range literals[testCase.forced:] {
				problem.Clause(-literal)
			}
			tieredPenalty(&problem, literals, congestionPenalty)

			//** Act
			result, err := solver.Solve(problem, 10*time.Second)

			//** Assert
			require.NoError(t, err)
			assert.Equal(t, sat.Optimal, result.Status)
			assert.Equal(t, testCase.expected, result.Objective)
		})
	}
}
