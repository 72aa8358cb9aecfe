package sat

import (
	"time"

	"github.com/samber/lo"
)

type Relation int

const (
	LessOrEqual Relation = iota
	GreaterOrEqual
)

// Constraint stands for sum(Weights[i] * Literals[i]) <Relation> Bound, where a negative literal is true when its variable is false
type Constraint struct {
	Literals []int64
	Weights  []int64 // Nil means every weight is 1
	Relation Relation
	Bound    int64

	// Defining constraints only tie penalty indicators to the rest of the assignment, hence a backend that ignores the objective may drop them
	Defining bool
}

// Term is a weighted literal of the objective to minimize
type Term struct {
	Literal int64
	Weight  int64
}

// Problem is a pseudo-boolean optimization instance: boolean variables, linear constraints and a linear objective to minimize
type Problem struct {
	Variables   uint64
	Constraints []Constraint
	Objective   []Term
}

type Status int

const (
	Unknown Status = iota // The budget ran out before any assignment was found
	Optimal
	Feasible // An assignment was found but its optimality was not proven
	Infeasible
)

func (status Status) String() string {
	switch status {
	case Optimal:
		return "optimal"
	case Feasible:
		return "feasible"
	case Infeasible:
		return "infeasible"
	default:
		return "unknown"
	}
}

// Solved reports whether the result carries an assignment
func (status Status) Solved() bool {
	return status == Optimal || status == Feasible
}

// Assignment holds the value of every variable, variable v being stored at index v-1
type Assignment []bool

func (assignment Assignment) Value(literal int64) bool {
	variable := literal
	if variable < 0 {
		variable = -variable
	}
	if variable == 0 || variable > int64(len(assignment)) {
		return literal < 0
	}
	return assignment[variable-1] == (literal > 0)
}

type Result struct {
	Status     Status
	Assignment Assignment
	Objective  int64
}

type Solver interface {
	// Returns the best assignment found within the budget. Infeasible and Unknown are valid results, where error shall be nil
	Solve(problem Problem, budget time.Duration) (Result, error)
}

func (problem *Problem) NewVariable() int64 {
	problem.Variables++
	return int64(problem.Variables)
}

func (problem *Problem) AddConstraint(constraint Constraint) {
	problem.Constraints = append(problem.Constraints, constraint)
}

func (problem *Problem) AddTerm(literal, weight int64) {
	if weight == 0 {
		return
	}
	problem.Objective = append(problem.Objective, Term{Literal: literal, Weight: weight})
}

func (problem *Problem) Clause(literals ...int64) {
	problem.AddConstraint(Constraint{Literals: literals, Relation: GreaterOrEqual, Bound: 1})
}

func (problem *Problem) AtMost(literals []int64, k int64) {
	if int64(len(literals)) <= k {
		return // Trivially satisfied
	}
	problem.AddConstraint(Constraint{Literals: literals, Relation: LessOrEqual, Bound: k})
}

func (problem *Problem) AtLeast(literals []int64, k int64) {
	problem.AddConstraint(Constraint{Literals: literals, Relation: GreaterOrEqual, Bound: k})
}

func (problem *Problem) ExactlyOne(literals []int64) {
	problem.AtLeast(literals, 1)
	problem.AtMost(literals, 1)
}

// Merge appends the constraints and terms of fragment, whose own variables were numbered from base+1, renumbering them after the variables already declared in problem
func (problem *Problem) Merge(fragment Problem, base uint64) {
	offset := int64(problem.Variables - base)
	shift := func(literal int64) int64 {
		switch {
		case literal > int64(base):
			return literal + offset
		case literal < -int64(base):
			return literal - offset
		}
		return literal
	}

	for _, constraint := range fragment.Constraints {
		constraint.Literals = lo.Map(constraint.Literals, func(literal int64, _ int) int64 { return shift(literal) })
		problem.Constraints = append(problem.Constraints, constraint)
	}
	for _, term := range fragment.Objective {
		problem.Objective = append(problem.Objective, Term{Literal: shift(term.Literal), Weight: term.Weight})
	}
	if fragment.Variables > base {
		problem.Variables += fragment.Variables - base
	}
}

// normalized returns the equivalent constraint sum(weights[i] * literals[i]) >= bound where every weight is positive and no greater than bound
func (constraint Constraint) normalized() (literals []int64, weights []int64, bound int64) {
	literals = make([]int64, 0, len(constraint.Literals))
	weights = make([]int64, 0, len(constraint.Literals))
	bound = constraint.Bound

	sign := int64(1)
	if constraint.Relation == LessOrEqual {
		// sum(w*l) <= k  <=>  sum(-w*l) >= -k
		sign, bound = -1, -bound
	}

	for i, literal := range constraint.Literals {
		weight := int64(1)
		if constraint.Weights != nil {
			weight = constraint.Weights[i]
		}
		weight *= sign

		switch {
		case weight == 0:
			continue
		case weight < 0:
			// w*l = w - w*(-l), so the constant moves to the bound
			literal, weight = -literal, -weight
			bound += weight
		}
		literals = append(literals, literal)
		weights = append(weights, weight)
	}

	if bound > 0 {
		weights = lo.Map(weights, func(weight int64, _ int) int64 { return min(weight, bound) })
	}
	return literals, weights, bound
}
