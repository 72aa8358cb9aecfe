package model

import "github.com/limaJavier/examtabling/pkg/sat"

type BuildResult struct {
	Status      sat.Status
	Timetable   Timetable // Nil unless the status is Optimal or Feasible
	Penalty     int64     // Realized penalty of the timetable
	Objective   int64     // Objective reported by the solver
	Variables   uint64
	Constraints uint64
	Diagnostics []string // Reasons an instance is infeasible by construction
}

type Timetabler interface {
	Build(
		modelInput ModelInput,
	) (BuildResult, error)

	Verify(
		timetable Timetable,
		modelInput ModelInput,
	) []Finding
}
