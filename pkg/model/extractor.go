package model

import (
	"github.com/limaJavier/examtabling/pkg/sat"
)

// extract reads the sitting and the rooms of every exam out of a solved assignment
func extract(assignment sat.Assignment, state constraintState) Timetable {
	placements := make([]Placement, len(state.modelInput.Exams))
	for i := range placements {
		placements[i].Rooms = make([]string, 0)
	}

	// Only decision variables are read, auxiliary ones follow them
	for variable := int64(1); variable <= int64(state.indexer.Variables()); variable++ {
		if !assignment.Value(variable) {
			continue
		}

		placement, exam, day, slot, room := state.indexer.Attributes(variable)
		if placement {
			placements[exam].Day, placements[exam].Slot = day, slot
		} else {
			placements[exam].Rooms = append(placements[exam].Rooms, state.modelInput.Rooms[room].Name)
		}
	}

	timetable := make(Timetable, len(placements))
	for _, exam := range state.modelInput.Exams {
		timetable[exam.Name] = placements[exam.Id]
	}
	return timetable
}

// realizedPenalty sums the soft rules evaluated on the timetable
func realizedPenalty(timetable Timetable, modelInput ModelInput, rules ruleSet) int64 {
	state, _ := resolve(timetable, modelInput)
	return Penalty(softFindings(rules, state, modelInput))
}
