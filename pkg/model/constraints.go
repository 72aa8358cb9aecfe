package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/limaJavier/examtabling/pkg/sat"
	"github.com/samber/lo"
)

type constraintState struct {
	evaluator  predicateEvaluator
	indexer    indexer
	rules      ruleSet
	modelInput ModelInput
	allowed    []map[Sitting]bool // Indexed by exam
}

func newConstraintState(modelInput ModelInput, evaluator predicateEvaluator, rules ruleSet) constraintState {
	return constraintState{
		evaluator: evaluator,
		indexer: newIndexer(
			uint64(len(modelInput.Exams)),
			modelInput.Calendar.Days,
			modelInput.Calendar.Slots,
			uint64(len(modelInput.Rooms)),
		),
		rules:      rules,
		modelInput: modelInput,
		allowed: lo.Map(modelInput.Exams, func(exam Exam, _ int) map[Sitting]bool {
			return lo.SliceToMap(evaluator.Allowed(exam.Id), func(sitting Sitting) (Sitting, bool) { return sitting, true })
		}),
	}
}

// placements returns the placement variables of the exams within the sittings, skipping those that cannot hold
func (state constraintState) placements(exams []uint64, sittings []Sitting) []int64 {
	literals := make([]int64, 0, len(exams)*len(sittings))
	for _, exam := range exams {
		for _, sitting := range sittings {
			if state.allowed[exam][sitting] {
				literals = append(literals, state.indexer.Placement(exam, sitting.Day, sitting.Slot))
			}
		}
	}
	return literals
}

func (state constraintState) hosting(exam uint64) []uint64 {
	rooms := make([]uint64, 0)
	for _, room := range state.modelInput.Rooms {
		if state.evaluator.Hosts(room.Id, exam) {
			rooms = append(rooms, room.Id)
		}
	}
	return rooms
}

// Every exam sits exactly once
func placementConstraints(state constraintState, fragment *sat.Problem) {
	sittings := state.modelInput.Calendar.Sittings()
	for _, exam := range state.modelInput.Exams {
		fragment.ExactlyOne(lo.Map(sittings, func(sitting Sitting, _ int) int64 {
			return state.indexer.Placement(exam.Id, sitting.Day, sitting.Slot)
		}))
	}
}

func forbiddenConstraints(state constraintState, fragment *sat.Problem) {
	for _, exam := range state.modelInput.Exams {
		for _, sitting := range state.rules.forbidden {
			fragment.Clause(-state.indexer.Placement(exam.Id, sitting.Day, sitting.Slot))
		}
	}
}

func pinConstraints(state constraintState, fragment *sat.Problem) {
	for _, pin := range state.rules.pins {
		fragment.Clause(state.indexer.Placement(pin.exam, pin.sitting.Day, pin.sitting.Slot))
	}
}

func limitConstraints(state constraintState, fragment *sat.Problem) {
	// Students sharing the same exams yield the same limits
	encoded := make(map[string]bool)
	for _, limit := range state.rules.limits {
		literals := state.placements(limit.exams, limit.sittings)
		if uint64(len(literals)) <= limit.max {
			continue
		}

		key := literalsKey(literals, limit.max)
		if encoded[key] {
			continue
		}
		encoded[key] = true

		fragment.AtMost(literals, int64(limit.max))
	}
}

func roomConstraints(state constraintState, fragment *sat.Problem) {
	for _, requirement := range state.rules.rooms {
		hosting := state.hosting(requirement.exam)

		for _, room := range state.modelInput.Rooms {
			if !slices.Contains(hosting, room.Id) {
				fragment.Clause(-state.indexer.Room(requirement.exam, room.Id))
			}
		}

		roomVariables := lo.Map(hosting, func(room uint64, _ int) int64 { return state.indexer.Room(requirement.exam, room) })
		if requirement.placeholder {
			// Exactly the placeholder, the only hosting room of such exams
			for _, variable := range roomVariables {
				fragment.Clause(variable)
			}
			if len(roomVariables) == 0 {
				fragment.AtLeast(roomVariables, 1)
			}
			continue
		}

		fragment.AtLeast(roomVariables, 1)

		// Both capacity pools are independent
		pools := []lo.Tuple2[Capability, uint64]{
			lo.T2(AccessibleCapability, requirement.headcount.Accessible),
			lo.T2(StandardCapability, requirement.headcount.Standard),
		}
		for _, pool := range pools {
			capability, headcount := pool.Unpack()
			if headcount == 0 {
				continue
			}

			pooled := lo.Filter(hosting, func(room uint64, _ int) bool { return state.evaluator.Supports(room, capability) })
			fragment.AddConstraint(sat.Constraint{
				Literals: lo.Map(pooled, func(room uint64, _ int) int64 { return state.indexer.Room(requirement.exam, room) }),
				Weights:  lo.Map(pooled, func(room uint64, _ int) int64 { return int64(state.modelInput.Rooms[room].Capacity) }),
				Relation: sat.GreaterOrEqual,
				Bound:    int64(headcount),
			})
		}
	}
}

// A room hosts at most one exam per sitting. An occupancy variable stands for each exam using the room at the sitting
func roomExclusivityConstraints(state constraintState, fragment *sat.Problem) {
	for _, room := range state.rules.exclusiveRooms {
		candidates := lo.Filter(state.modelInput.Exams, func(exam Exam, _ int) bool { return state.evaluator.Hosts(room, exam.Id) })
		if len(candidates) < 2 {
			continue
		}

		for _, sitting := range state.modelInput.Calendar.Sittings() {
			occupants := lo.Filter(candidates, func(exam Exam, _ int) bool { return state.allowed[exam.Id][sitting] })
			if len(occupants) < 2 {
				continue
			}

			occupancy := make([]int64, 0, len(occupants))
			for _, exam := range occupants {
				variable := fragment.NewVariable()
				fragment.Clause(
					-state.indexer.Room(exam.Id, room),
					-state.indexer.Placement(exam.Id, sitting.Day, sitting.Slot),
					variable,
				)
				occupancy = append(occupancy, variable)
			}
			fragment.AtMost(occupancy, 1)
		}
	}
}

func penaltyConstraints(state constraintState, fragment *sat.Problem) {
	for _, penalty := range state.rules.penalties {
		tieredPenalty(fragment, state.placements(penalty.exams, penalty.sittings), penalty.tiers)
	}
}

func gapConstraints(state constraintState, fragment *sat.Problem) {
	for _, gap := range state.rules.gaps {
		first, second := gap.exams[0], gap.exams[1]
		firstSittings, secondSittings := state.evaluator.Allowed(first), state.evaluator.Allowed(second)

		for distance, penalty := range gap.penalties {
			if penalty <= 0 {
				continue
			}

			pairs := make([][2]int64, 0)
			for _, sitting1 := range firstSittings {
				for _, sitting2 := range secondSittings {
					if max(sitting1.Day, sitting2.Day)-min(sitting1.Day, sitting2.Day) == uint64(distance) {
						pairs = append(pairs, [2]int64{
							state.indexer.Placement(first, sitting1.Day, sitting1.Slot),
							state.indexer.Placement(second, sitting2.Day, sitting2.Slot),
						})
					}
				}
			}
			if len(pairs) == 0 {
				continue
			}

			// Both exams at this distance force the indicator
			indicator := fragment.NewVariable()
			for _, pair := range pairs {
				fragment.AddConstraint(sat.Constraint{
					Literals: []int64{-pair[0], -pair[1], indicator},
					Relation: sat.GreaterOrEqual,
					Bound:    1,
					Defining: true,
				})
			}
			fragment.AddTerm(indicator, penalty)
		}
	}
}

func sittingPenaltyTerms(state constraintState, fragment *sat.Problem) {
	for _, penalty := range state.rules.sittingPenalties {
		for _, variable := range state.placements([]uint64{penalty.exam}, penalty.sittings) {
			fragment.AddTerm(variable, penalty.penalty)
		}
	}
}

func roomPenaltyConstraints(state constraintState, fragment *sat.Problem) {
	for _, penalty := range state.rules.roomPenalties {
		hosting := state.hosting(penalty.exam)
		tieredPenalty(
			fragment,
			lo.Map(hosting, func(room uint64, _ int) int64 { return state.indexer.Room(penalty.exam, room) }),
			penalty.surplus,
		)

		if penalty.misuse <= 0 {
			continue
		}
		for _, room := range hosting {
			if slices.Contains(state.modelInput.Rooms[room].Capabilities, ComputerCapability) {
				fragment.AddTerm(state.indexer.Room(penalty.exam, room), penalty.misuse)
			}
		}
	}
}

// tieredPenalty charges the highest tier reached by the amount of true literals, through one indicator per tier carrying
// the increment over the previous tier
func tieredPenalty(fragment *sat.Problem, literals []int64, tiers []tier) {
	previous := int64(0)
	for _, tier := range tiers {
		increment := tier.penalty - previous
		previous = tier.penalty
		if increment <= 0 || uint64(len(literals)) < tier.atLeast {
			continue
		}

		// sum(literals) - slack*indicator <= atLeast-1, so reaching the tier forces the indicator
		indicator := fragment.NewVariable()
		slack := int64(len(literals)) - int64(tier.atLeast) + 1
		weights := make([]int64, len(literals)+1)
		for i := range literals {
			weights[i] = 1
		}
		weights[len(literals)] = -slack

		fragment.AddConstraint(sat.Constraint{
			Literals: append(slices.Clone(literals), indicator),
			Weights:  weights,
			Relation: sat.LessOrEqual,
			Bound:    int64(tier.atLeast) - 1,
			Defining: true,
		})
		fragment.AddTerm(indicator, increment)
	}
}

func literalsKey(literals []int64, bound uint64) string {
	sorted := slices.Clone(literals)
	slices.Sort(sorted)

	var builder strings.Builder
	for _, literal := range sorted {
		fmt.Fprintf(&builder, "%d ", literal)
	}
	fmt.Fprintf(&builder, "<= %d", bound)
	return builder.String()
}

func buildProblem(state constraintState, generators []func(state constraintState, fragment *sat.Problem)) sat.Problem {
	base := state.indexer.Variables()
	problem := sat.Problem{Variables: base}

	type generated struct {
		index    int
		fragment sat.Problem
	}
	fragments := make([]sat.Problem, len(generators))
	fragmentsChannel := make(chan generated) // Channel to collect fragments

	// Execute generators on different goroutines to improve performance
	for index, generator := range generators {
		go func() {
			fragment := sat.Problem{Variables: base}
			generator(state, &fragment)
			fragmentsChannel <- generated{index: index, fragment: fragment}
		}()
	}
	for range generators {
		result := <-fragmentsChannel
		fragments[result.index] = result.fragment
	}

	// Merge in generator order so the problem does not depend on scheduling
	for _, fragment := range fragments {
		problem.Merge(fragment, base)
	}
	return problem
}
