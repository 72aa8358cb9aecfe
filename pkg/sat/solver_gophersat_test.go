package sat

import (
	"bytes"
	"encoding/json"
	"os"
	"runtime"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	ServeWorker()
	os.Exit(m.Run())
}

// pigeonhole places pigeons into holes holding one pigeon each. Unless placements may be skipped, more pigeons than
// holes is infeasible and hard to refute
func pigeonhole(pigeons, holes int, skippable bool) Problem {
	problem := Problem{}
	placements := make([][]int64, pigeons)
	for pigeon := range placements {
		for range holes {
			placements[pigeon] = append(placements[pigeon], problem.NewVariable())
		}
	}
	for pigeon := range placements {
		literals := placements[pigeon]
		if skippable {
			skipped := problem.NewVariable()
			problem.AddTerm(skipped, 1)
			literals = append(slices.Clone(literals), skipped)
		}
		problem.AtLeast(literals, 1)
	}
	for hole := range holes {
		problem.AtMost(lo.Map(placements, func(row []int64, _ int) int64 { return row[hole] }), 1)
	}
	return problem
}

func TestGophersat(t *testing.T) {
	solver := NewGophersatSolver()

	t.Run("Minimizes the objective", func(t *testing.T) {
		//** Arrange
		problem := Problem{Variables: 3}
		problem.Clause(1, 2)
		problem.Clause(2, 3)
		problem.AddTerm(1, 1)
		problem.AddTerm(2, 5)
		problem.AddTerm(3, 1)

		//** Act
		result, err := solver.Solve(problem, 10*time.Second)

		//** Assert
		assert.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, int64(2), result.Objective)
		assert.Equal(t, Assignment{true, false, true}, result.Assignment)
	})

	t.Run("Decision problems are solved", func(t *testing.T) {
		problem := Problem{Variables: 3}
		problem.ExactlyOne([]int64{1, 2, 3})
		problem.Clause(-1)
		problem.Clause(-3)

		result, err := solver.Solve(problem, 10*time.Second)

		assert.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.True(t, result.Assignment.Value(2))
	})

	t.Run("Infeasibility is reported", func(t *testing.T) {
		problem := Problem{Variables: 2}
		problem.AtMost([]int64{1, 2}, 1)
		problem.Clause(1)
		problem.Clause(2)

		result, err := solver.Solve(problem, 10*time.Second)

		assert.NoError(t, err)
		assert.Equal(t, Infeasible, result.Status)
		assert.Nil(t, result.Assignment)
	})

	t.Run("Capacity pools are honored", func(t *testing.T) {
		// 20*r1 + 5*r2 + 30*r3 >= 30 while preferring fewer rooms
		problem := Problem{Variables: 3}
		problem.AddConstraint(Constraint{Literals: []int64{1, 2, 3}, Weights: []int64{20, 5, 30}, Relation: GreaterOrEqual, Bound: 30})
		problem.AddTerm(1, 1)
		problem.AddTerm(2, 1)
		problem.AddTerm(3, 1)

		result, err := solver.Solve(problem, 10*time.Second)

		assert.NoError(t, err)
		assert.Equal(t, Optimal, result.Status)
		assert.Equal(t, int64(1), result.Objective)
		assert.True(t, result.Assignment.Value(3))
	})

	t.Run("The best model survives an exhausted budget", func(t *testing.T) {
		// Some placement is found at once, while proving that every pigeon fits is a pigeonhole refutation
		problem := pigeonhole(13, 12, true)

		result, err := solver.Solve(problem, 2*time.Second)

		assert.NoError(t, err)
		assert.Equal(t, Feasible, result.Status)
		assert.Len(t, result.Assignment, int(problem.Variables))
		assert.GreaterOrEqual(t, result.Objective, int64(1))
	})

	t.Run("No model within the budget is unknown", func(t *testing.T) {
		problem := pigeonhole(13, 12, false)

		result, err := solver.Solve(problem, 200*time.Millisecond)

		assert.NoError(t, err)
		assert.Equal(t, Unknown, result.Status)
		assert.Nil(t, result.Assignment)
	})

	t.Run("An exhausted budget stops the search", func(t *testing.T) {
		//** Arrange
		problem := pigeonhole(13, 12, false)
		start := time.Now()

		//** Act
		result, err := solver.Solve(problem, 200*time.Millisecond)

		//** Assert
		require.NoError(t, err)
		assert.Equal(t, Unknown, result.Status)
		assert.Less(t, time.Since(start), 3*time.Second)
		assert.Never(t, func() bool {
			stacks := make([]byte, 1<<20)
			return strings.Contains(string(stacks[:runtime.Stack(stacks, true)]), "gophersat/solver")
		}, time.Second, 100*time.Millisecond)
	})
}

func TestGophersatWorker(t *testing.T) {
	t.Run("Every improving model is written before the outcome", func(t *testing.T) {
		//** Arrange
		problem := Problem{Variables: 2}
		problem.Clause(1, 2)
		problem.AddTerm(1, 3)
		problem.AddTerm(2, 1)
		payload, _ := json.Marshal(problem)
		var output bytes.Buffer

		//** Act
		err := serveGophersat(bytes.NewReader(payload), &output)
		best, outcome, readErr := readWorkerOutput(&output, problem.Variables)

		//** Assert
		require.NoError(t, err)
		require.NoError(t, readErr)
		assert.Equal(t, outcomeSolved, outcome)
		assert.Equal(t, int64(1), best.Objective)
		assert.Equal(t, Assignment{false, true}, best.Assignment)
	})

	t.Run("Contradictions are reported without searching", func(t *testing.T) {
		problem := Problem{Variables: 1}
		problem.AtLeast([]int64{1}, 2)
		payload, _ := json.Marshal(problem)
		var output bytes.Buffer

		err := serveGophersat(bytes.NewReader(payload), &output)

		assert.NoError(t, err)
		assert.Equal(t, "s infeasible\n", output.String())
	})

	t.Run("A truncated stream keeps the last complete model", func(t *testing.T) {
		best, outcome, err := readWorkerOutput(strings.NewReader("o 4 101\no 2 001\no 1 0"), 3)

		assert.NoError(t, err)
		assert.Empty(t, outcome)
		assert.Equal(t, int64(2), best.Objective)
		assert.Equal(t, Assignment{false, false, true}, best.Assignment)
	})

	t.Run("Garbage is rejected", func(t *testing.T) {
		_, _, err := readWorkerOutput(strings.NewReader("panic: boom\n"), 1)

		assert.Error(t, err)
	})
}
