package sat

import (
	"fmt"
	"strings"
)

// SATSolution holds the literals reported by a DIMACS solver, positive when the variable is true
type SATSolution []int64

// SAT is a problem in conjunctive normal form
type SAT struct {
	Variables uint64
	Clauses   [][]int64
}

func (s SAT) ToDIMACS() string {
	var builder strings.Builder
	fmt.Fprintf(&builder, "p cnf %d %d\n", s.Variables, len(s.Clauses))
	for _, clause := range s.Clauses {
		for _, literal := range clause {
			fmt.Fprintf(&builder, "%d ", literal)
		}
		builder.WriteString("0\n")
	}
	return builder.String()
}

// Assignment returns the values of the first variables of the solution, indexed from zero
func (solution SATSolution) Assignment(variables uint64) Assignment {
	assignment := make(Assignment, variables)
	for _, literal := range solution {
		if literal > 0 && uint64(literal) <= variables {
			assignment[literal-1] = true
		}
	}
	return assignment
}
