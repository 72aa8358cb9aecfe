package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
)

// Check evaluates every rule against the timetable without solving anything. Equal inputs yield equal findings
func Check(timetable Timetable, modelInput ModelInput) []Finding {
	return verify(timetable, modelInput)
}

func verify(timetable Timetable, modelInput ModelInput) []Finding {
	evaluator := newPredicateEvaluator(modelInput)
	rules := deriveRules(modelInput, evaluator)

	state, findings := resolve(timetable, modelInput)
	findings = append(findings, sittingFindings(rules, state, modelInput, evaluator)...)
	findings = append(findings, limitFindings(rules, state, modelInput)...)
	findings = append(findings, roomFindings(timetable, rules, modelInput, evaluator)...)
	findings = append(findings, roomClashFindings(timetable, modelInput)...)
	findings = append(findings, softFindings(rules, state, modelInput)...)
	return findings
}

// resolve maps the timetable onto the model. Missing exams, unknown exams or rooms and sittings outside the calendar are
// reported and left out of the returned state
func resolve(timetable Timetable, modelInput ModelInput) (placementState, []Finding) {
	state := placementState{
		sittings: make(map[uint64]Sitting),
		rooms:    make(map[uint64][]uint64),
	}
	findings := make([]Finding, 0)
	roomIds := roomIdsByName(modelInput)

	examNames := make(map[string]bool, len(modelInput.Exams))
	for _, exam := range modelInput.Exams {
		examNames[exam.Name] = true
		if _, ok := timetable[exam.Name]; !ok {
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     MissingExamRule,
				Message:  fmt.Sprintf("exam %v is not scheduled", exam.Name),
				Exams:    []string{exam.Name},
			})
		}
	}

	unknown := lo.Filter(lo.Keys(timetable), func(name string, _ int) bool { return !examNames[name] })
	slices.Sort(unknown)
	for _, name := range unknown {
		findings = append(findings, Finding{
			Severity: SoftWarning,
			Rule:     UnknownExamRule,
			Message:  fmt.Sprintf("exam %v is not part of the roster, its capacity and style are not checked", name),
			Exams:    []string{name},
		})
	}

	for _, exam := range modelInput.Exams {
		placement, ok := timetable[exam.Name]
		if !ok {
			continue
		}

		if modelInput.Calendar.Contains(placement.Sitting()) {
			state.sittings[exam.Id] = placement.Sitting()
		} else {
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     OutsideCalendarRule,
				Message: fmt.Sprintf("exam %v is placed at day %v slot %v, outside of %v days with %v slots",
					exam.Name, placement.Day, placement.Slot, modelInput.Calendar.Days, modelInput.Calendar.Slots),
				Exams: []string{exam.Name},
			})
		}

		rooms := make([]uint64, 0, len(placement.Rooms))
		for _, name := range lo.Uniq(placement.Rooms) {
			room, ok := roomIds[name]
			if !ok {
				findings = append(findings, Finding{
					Severity: HardViolation,
					Rule:     UnknownRoomRule,
					Message:  fmt.Sprintf("exam %v is assigned room %v, which is not in the catalog", exam.Name, name),
					Exams:    []string{exam.Name},
				})
				continue
			}
			rooms = append(rooms, room)
		}
		state.rooms[exam.Id] = rooms
	}

	return state, findings
}

func sittingFindings(rules ruleSet, state placementState, modelInput ModelInput, evaluator predicateEvaluator) []Finding {
	findings := make([]Finding, 0)

	for _, exam := range modelInput.Exams {
		sitting, ok := state.sittings[exam.Id]
		if ok && evaluator.Forbidden(sitting) {
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     ForbiddenSittingRule,
				Message:  fmt.Sprintf("exam %v is placed at forbidden %v", exam.Name, modelInput.Calendar.Label(sitting)),
				Exams:    []string{exam.Name},
			})
		}
	}

	for _, pin := range rules.pins {
		sitting, ok := state.sittings[pin.exam]
		if ok && sitting != pin.sitting {
			name := modelInput.Exams[pin.exam].Name
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     PinRule,
				Message: fmt.Sprintf("fixed exam %v must sit at %v but is placed at %v",
					name, modelInput.Calendar.Label(pin.sitting), modelInput.Calendar.Label(sitting)),
				Exams: []string{name},
			})
		}
	}

	return findings
}

func limitFindings(rules ruleSet, state placementState, modelInput ModelInput) []Finding {
	findings := make([]Finding, 0)
	for _, limit := range rules.limits {
		placed := limit.placed(state)
		if uint64(len(placed)) <= limit.max {
			continue
		}
		findings = append(findings, Finding{
			Severity: HardViolation,
			Rule:     limit.rule,
			Message: fmt.Sprintf("%v, %v: %v (%v exams, limit %v)",
				limit.subject, limit.scope, ruleDescriptions[limit.rule], len(placed), limit.max),
			Exams: examNames(placed, modelInput),
		})
	}
	return findings
}

func roomFindings(timetable Timetable, rules ruleSet, modelInput ModelInput, evaluator predicateEvaluator) []Finding {
	findings := make([]Finding, 0)
	roomIds := roomIdsByName(modelInput)

	for _, requirement := range rules.rooms {
		exam := modelInput.Exams[requirement.exam]
		placement, ok := timetable[exam.Name]
		if !ok {
			continue
		}

		names := lo.Uniq(placement.Rooms)
		if len(names) == 0 {
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     RoomCountRule,
				Message:  fmt.Sprintf("exam %v has no room", exam.Name),
				Exams:    []string{exam.Name},
			})
			continue
		}

		rooms := lo.FilterMap(names, func(name string, _ int) (Room, bool) {
			room, ok := roomIds[name]
			if !ok {
				return Room{}, false
			}
			return modelInput.Rooms[room], true
		})
		withPlaceholder := lo.SomeBy(rooms, func(room Room) bool { return room.Placeholder })

		if requirement.placeholder {
			physical := lo.Filter(rooms, func(room Room, _ int) bool { return !room.Placeholder })
			if !withPlaceholder || len(physical) > 0 {
				findings = append(findings, Finding{
					Severity: HardViolation,
					Rule:     PlaceholderRule,
					Message:  fmt.Sprintf("fixed exam %v must be assigned exactly the placeholder, found %v", exam.Name, strings.Join(names, ", ")),
					Exams:    []string{exam.Name},
				})
			}
			continue
		}

		if withPlaceholder {
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     PlaceholderRule,
				Message:  fmt.Sprintf("exam %v is assigned the placeholder, reserved for fixed non-core exams", exam.Name),
				Exams:    []string{exam.Name},
			})
		}

		if requirement.computer {
			for _, room := range rooms {
				if !evaluator.Supports(room.Id, ComputerCapability) {
					findings = append(findings, Finding{
						Severity: HardViolation,
						Rule:     ComputerRoomRule,
						Message:  fmt.Sprintf("computer-based exam %v is assigned room %v, which has no computers", exam.Name, room.Name),
						Exams:    []string{exam.Name},
					})
				}
			}
		}

		if withPlaceholder {
			continue // Unbounded capacity
		}
		pools := []lo.Tuple2[Capability, uint64]{
			lo.T2(AccessibleCapability, requirement.headcount.Accessible),
			lo.T2(StandardCapability, requirement.headcount.Standard),
		}
		for _, pool := range pools {
			capability, headcount := pool.Unpack()
			capacity := lo.SumBy(rooms, func(room Room) uint64 {
				return lo.Ternary(evaluator.Supports(room.Id, capability), room.Capacity, 0)
			})
			if capacity < headcount {
				findings = append(findings, Finding{
					Severity: HardViolation,
					Rule:     CapacityRule,
					Message:  fmt.Sprintf("exam %v needs %v %v seats but its rooms provide %v", exam.Name, headcount, capability, capacity),
					Exams:    []string{exam.Name},
				})
			}
		}
	}

	return findings
}

// roomClashFindings reports every physical room hosting more than one exam at a sitting, unknown exams included
func roomClashFindings(timetable Timetable, modelInput ModelInput) []Finding {
	findings := make([]Finding, 0)
	roomIds := roomIdsByName(modelInput)

	occupants := make(map[lo.Tuple2[uint64, Sitting]][]string)
	for name, placement := range timetable {
		if !modelInput.Calendar.Contains(placement.Sitting()) {
			continue
		}
		for _, roomName := range lo.Uniq(placement.Rooms) {
			room, ok := roomIds[roomName]
			if !ok || modelInput.Rooms[room].Placeholder {
				continue
			}
			key := lo.T2(room, placement.Sitting())
			occupants[key] = append(occupants[key], name)
		}
	}

	for _, room := range modelInput.Rooms {
		for _, sitting := range modelInput.Calendar.Sittings() {
			exams := occupants[lo.T2(room.Id, sitting)]
			if len(exams) < 2 {
				continue
			}
			slices.Sort(exams)
			findings = append(findings, Finding{
				Severity: HardViolation,
				Rule:     RoomClashRule,
				Message:  fmt.Sprintf("room %v hosts %v at %v", room.Name, strings.Join(exams, ", "), modelInput.Calendar.Label(sitting)),
				Exams:    exams,
			})
		}
	}

	return findings
}

// softFindings carries the realized penalty of every soft rule, hence their sum is the penalty of the timetable
func softFindings(rules ruleSet, state placementState, modelInput ModelInput) []Finding {
	findings := make([]Finding, 0)

	for _, penalty := range rules.penalties {
		placed, amount := penalty.evaluate(state)
		if amount <= 0 {
			continue
		}
		findings = append(findings, Finding{
			Severity: SoftWarning,
			Rule:     penalty.rule,
			Message: fmt.Sprintf("%v, %v: %v (%v exams, penalty %v)",
				penalty.subject, penalty.scope, ruleDescriptions[penalty.rule], len(placed), amount),
			Exams:   examNames(placed, modelInput),
			Penalty: amount,
		})
	}

	for _, gap := range rules.gaps {
		days, amount := gap.evaluate(state)
		if amount <= 0 {
			continue
		}
		exams := examNames(gap.exams[:], modelInput)
		findings = append(findings, Finding{
			Severity: SoftWarning,
			Rule:     gap.rule,
			Message:  fmt.Sprintf("%v: exams %v are %v days apart (penalty %v)", gap.subject, strings.Join(exams, " and "), days, amount),
			Exams:    exams,
			Penalty:  amount,
		})
	}

	for _, penalty := range rules.sittingPenalties {
		amount := penalty.evaluate(state)
		if amount <= 0 {
			continue
		}
		name := modelInput.Exams[penalty.exam].Name
		findings = append(findings, Finding{
			Severity: SoftWarning,
			Rule:     penalty.rule,
			Message:  fmt.Sprintf("exam %v is placed at discouraged %v (penalty %v)", name, modelInput.Calendar.Label(state.sittings[penalty.exam]), amount),
			Exams:    []string{name},
			Penalty:  amount,
		})
	}

	for _, penalty := range rules.roomPenalties {
		surplus, misuse := penalty.evaluate(state, modelInput)
		name := modelInput.Exams[penalty.exam].Name
		if surplus > 0 {
			findings = append(findings, Finding{
				Severity: SoftWarning,
				Rule:     RoomSurplusRule,
				Message:  fmt.Sprintf("exam %v uses %v rooms (penalty %v)", name, len(state.rooms[penalty.exam]), surplus),
				Exams:    []string{name},
				Penalty:  surplus,
			})
		}
		if misuse > 0 {
			findings = append(findings, Finding{
				Severity: SoftWarning,
				Rule:     ComputerRoomUseRule,
				Message:  fmt.Sprintf("standard exam %v uses computer rooms (penalty %v)", name, misuse),
				Exams:    []string{name},
				Penalty:  misuse,
			})
		}
	}

	return findings
}

func roomIdsByName(modelInput ModelInput) map[string]uint64 {
	return lo.SliceToMap(modelInput.Rooms, func(room Room) (string, uint64) { return room.Name, room.Id })
}

func examNames(exams []uint64, modelInput ModelInput) []string {
	return lo.Map(exams, func(exam uint64, _ int) string { return modelInput.Exams[exam].Name })
}
