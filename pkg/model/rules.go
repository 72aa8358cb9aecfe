package model

import (
	"fmt"
	"slices"

	"github.com/samber/lo"
)

// Rules are stated once, as backend-agnostic primitives. The builder encodes them as constraints and the checker evaluates
// them against a timetable, so both always agree on their meaning

// Base penalty units, scaled by the configured weights
var (
	extraTimePenalty   = []tier{{atLeast: 2, penalty: 5}}
	leaderGapPenalties = []int64{5, 4, 3, 1} // Indexed by the day gap between two exams of the same leader
	discouragedPenalty = int64(5)
	congestionPenalty  = []tier{{atLeast: 3, penalty: 5}, {atLeast: 4, penalty: 10}}
	roomSurplusPenalty = []tier{{atLeast: 3, penalty: 4}, {atLeast: 4, penalty: 6}, {atLeast: 5, penalty: 9}, {atLeast: 6, penalty: 15}}
	computerUsePenalty = int64(5)
)

// tier charges penalty once a count reaches atLeast; tiers are cumulative, the highest reached one applies
type tier struct {
	atLeast uint64
	penalty int64
}

func tierPenalty(count uint64, tiers []tier) int64 {
	penalty := int64(0)
	for _, tier := range tiers {
		if count >= tier.atLeast {
			penalty = tier.penalty
		}
	}
	return penalty
}

func scaleTiers(tiers []tier, weight int64) []tier {
	return lo.Map(tiers, func(t tier, _ int) tier { return tier{atLeast: t.atLeast, penalty: t.penalty * weight} })
}

// placementState is the view of a timetable the rules are evaluated against
type placementState struct {
	sittings map[uint64]Sitting  // Known exams placed within the calendar
	rooms    map[uint64][]uint64 // Catalog rooms assigned to known exams
}

// countLimit bounds how many of the exams may be placed within the sittings
type countLimit struct {
	rule     Rule
	subject  string
	scope    string
	exams    []uint64
	sittings []Sitting
	max      uint64
}

func (limit countLimit) placed(state placementState) []uint64 {
	return placedWithin(limit.exams, limit.sittings, state)
}

// countPenalty charges tiers on how many of the exams are placed within the sittings
type countPenalty struct {
	rule     Rule
	subject  string
	scope    string
	exams    []uint64
	sittings []Sitting
	tiers    []tier
}

func (penalty countPenalty) evaluate(state placementState) ([]uint64, int64) {
	placed := placedWithin(penalty.exams, penalty.sittings, state)
	return placed, tierPenalty(uint64(len(placed)), penalty.tiers)
}

// gapPenalty charges two exams by the day gap between them
type gapPenalty struct {
	rule      Rule
	subject   string
	exams     [2]uint64
	penalties []int64 // Indexed by day gap, larger gaps are free
}

func (penalty gapPenalty) evaluate(state placementState) (uint64, int64) {
	first, ok1 := state.sittings[penalty.exams[0]]
	second, ok2 := state.sittings[penalty.exams[1]]
	if !ok1 || !ok2 {
		return 0, 0
	}

	gap := max(first.Day, second.Day) - min(first.Day, second.Day)
	if gap >= uint64(len(penalty.penalties)) {
		return gap, 0
	}
	return gap, penalty.penalties[gap]
}

// sittingPenalty charges an exam placed within the sittings
type sittingPenalty struct {
	rule     Rule
	exam     uint64
	sittings []Sitting
	penalty  int64
}

func (penalty sittingPenalty) evaluate(state placementState) int64 {
	if len(placedWithin([]uint64{penalty.exam}, penalty.sittings, state)) > 0 {
		return penalty.penalty
	}
	return 0
}

type pin struct {
	exam    uint64
	sitting Sitting
}

// roomRequirement gathers the hard room rules of an exam: both capacity pools, computer rooms and the placeholder
type roomRequirement struct {
	exam        uint64
	headcount   Headcount
	computer    bool
	placeholder bool // The exam must be assigned exactly the placeholder
}

// roomPenalty charges the amount of rooms of an exam and the computer rooms used by a standard exam
type roomPenalty struct {
	exam    uint64
	surplus []tier
	misuse  int64 // Per computer room
}

func (penalty roomPenalty) evaluate(state placementState, modelInput ModelInput) (surplus, misuse int64) {
	rooms := state.rooms[penalty.exam]
	surplus = tierPenalty(uint64(len(rooms)), penalty.surplus)
	for _, room := range rooms {
		if !modelInput.Rooms[room].Placeholder && slices.Contains(modelInput.Rooms[room].Capabilities, ComputerCapability) {
			misuse += penalty.misuse
		}
	}
	return surplus, misuse
}

type ruleSet struct {
	forbidden        []Sitting
	pins             []pin
	limits           []countLimit
	rooms            []roomRequirement
	exclusiveRooms   []uint64 // Rooms hosting at most one exam per sitting
	penalties        []countPenalty
	gaps             []gapPenalty
	sittingPenalties []sittingPenalty
	roomPenalties    []roomPenalty
}

func deriveRules(modelInput ModelInput, evaluator predicateEvaluator) ruleSet {
	config, calendar, weights := modelInput.Config, modelInput.Calendar, modelInput.Config.Weights
	sittings := calendar.Sittings()

	rules := ruleSet{
		forbidden: calendar.Forbidden,
		pins:      make([]pin, 0),
		limits:    make([]countLimit, 0),
		penalties: make([]countPenalty, 0),
		gaps:      make([]gapPenalty, 0),
	}

	//** Fixed pins
	for _, exam := range modelInput.Exams {
		if exam.Fixed {
			rules.pins = append(rules.pins, pin{exam: exam.Id, sitting: exam.Pin})
		}
	}

	//** Student rules
	corePairs := make(map[[2]uint64][]string)
	corePairsOrder := make([][2]uint64, 0)
	for _, student := range modelInput.Students {
		exams := student.Exams
		if len(exams) < 2 {
			continue
		}
		subject := fmt.Sprintf("student %v", student.Name)

		// No student sits two exams at once
		for _, sitting := range sittings {
			rules.limits = append(rules.limits, countLimit{
				rule:     StudentClashRule,
				subject:  subject,
				scope:    calendar.Label(sitting),
				exams:    exams,
				sittings: []Sitting{sitting},
				max:      1,
			})
		}

		// Core exams get a day of their own
		for i := range len(exams) - 1 {
			for j := i + 1; j < len(exams); j++ {
				if !modelInput.Exams[exams[i]].Core && !modelInput.Exams[exams[j]].Core {
					continue
				}
				key := [2]uint64{exams[i], exams[j]}
				if _, ok := corePairs[key]; !ok {
					corePairsOrder = append(corePairsOrder, key)
				}
				corePairs[key] = append(corePairs[key], student.Name)
			}
		}

		// Density over adjacent days
		if uint64(len(exams)) > config.TwoDayLimit {
			for day := uint64(0); day+1 < calendar.Days; day++ {
				rules.limits = append(rules.limits, countLimit{
					rule:     TwoDayWindowRule,
					subject:  subject,
					scope:    fmt.Sprintf("days %v-%v", day, day+1),
					exams:    exams,
					sittings: calendar.Span(day, day+1),
					max:      config.TwoDayLimit,
				})
			}
		}

		// Density over the sliding window, enforced for every student
		if uint64(len(exams)) > config.WindowLimit {
			for start := uint64(0); start+config.WindowDays <= calendar.Days; start++ {
				rules.limits = append(rules.limits, countLimit{
					rule:     WindowRule,
					subject:  subject,
					scope:    fmt.Sprintf("days %v-%v", start, start+config.WindowDays-1),
					exams:    exams,
					sittings: calendar.Span(start, start+config.WindowDays-1),
					max:      config.WindowLimit,
				})
			}
		}

		for day := range calendar.Days {
			switch student.Tier {
			case ExtraTime50Tier:
				rules.limits = append(rules.limits, countLimit{
					rule:     ExtraTime50Rule,
					subject:  subject,
					scope:    fmt.Sprintf("day %v", day),
					exams:    exams,
					sittings: calendar.Span(day, day),
					max:      1,
				})
			case ExtraTime25Tier:
				rules.penalties = append(rules.penalties, countPenalty{
					rule:     ExtraTime25Rule,
					subject:  subject,
					scope:    fmt.Sprintf("day %v", day),
					exams:    exams,
					sittings: calendar.Span(day, day),
					tiers:    scaleTiers(extraTimePenalty, weights.ExtraTime),
				})
			}
		}
	}

	for _, key := range corePairsOrder {
		students := corePairs[key]
		subject := fmt.Sprintf("student %v", students[0])
		if len(students) > 1 {
			subject = fmt.Sprintf("students %v and %v more", students[0], len(students)-1)
		}
		for day := range calendar.Days {
			rules.limits = append(rules.limits, countLimit{
				rule:     CoreIsolationRule,
				subject:  subject,
				scope:    fmt.Sprintf("day %v", day),
				exams:    key[:],
				sittings: calendar.Span(day, day),
				max:      1,
			})
		}
	}

	//** Leader rules
	weekThree := lo.Filter(sittings, func(sitting Sitting, _ int) bool { return evaluator.InWeekThree(sitting.Day) })
	for _, leader := range modelInput.Leaders {
		if len(leader.Exams) < 2 {
			continue
		}
		subject := fmt.Sprintf("leader %v", leader.Name)

		if len(weekThree) > 0 {
			rules.limits = append(rules.limits, countLimit{
				rule:     WeekThreeRule,
				subject:  subject,
				scope:    fmt.Sprintf("days %v-%v", config.WeekThree.Start, config.WeekThree.End),
				exams:    leader.Exams,
				sittings: weekThree,
				max:      1,
			})
		}

		for i := range len(leader.Exams) - 1 {
			for j := i + 1; j < len(leader.Exams); j++ {
				rules.gaps = append(rules.gaps, gapPenalty{
					rule:      LeaderSpreadRule,
					subject:   subject,
					exams:     [2]uint64{leader.Exams[i], leader.Exams[j]},
					penalties: lo.Map(leaderGapPenalties, func(penalty int64, _ int) int64 { return penalty * weights.LeaderSpread }),
				})
			}
		}
	}

	//** Sitting rules
	allExams := lo.Map(modelInput.Exams, func(exam Exam, _ int) uint64 { return exam.Id })
	for _, sitting := range sittings {
		if !evaluator.Early(sitting.Day) || evaluator.Forbidden(sitting) {
			continue
		}
		rules.penalties = append(rules.penalties, countPenalty{
			rule:     CongestionRule,
			subject:  "timetable",
			scope:    calendar.Label(sitting),
			exams:    allExams,
			sittings: []Sitting{sitting},
			tiers:    scaleTiers(congestionPenalty, weights.Congestion),
		})
	}

	discouraged := lo.Filter(sittings, func(sitting Sitting, _ int) bool { return evaluator.Discouraged(sitting) })
	if len(discouraged) > 0 {
		for _, exam := range modelInput.Exams {
			rules.sittingPenalties = append(rules.sittingPenalties, sittingPenalty{
				rule:     DiscouragedRule,
				exam:     exam.Id,
				sittings: discouraged,
				penalty:  discouragedPenalty * weights.Discouraged,
			})
		}
	}

	//** Room rules
	for _, exam := range modelInput.Exams {
		placeholder := evaluator.PlaceholderBound(exam.Id)
		rules.rooms = append(rules.rooms, roomRequirement{
			exam:        exam.Id,
			headcount:   modelInput.Headcounts[exam.Id],
			computer:    exam.Style == ComputerStyle,
			placeholder: placeholder,
		})

		if !placeholder {
			rules.roomPenalties = append(rules.roomPenalties, roomPenalty{
				exam:    exam.Id,
				surplus: scaleTiers(roomSurplusPenalty, weights.RoomSurplus),
				misuse:  lo.Ternary(exam.Style == ComputerStyle, 0, computerUsePenalty*weights.ComputerRoom),
			})
		}
	}
	for _, room := range modelInput.Rooms {
		if !room.Placeholder {
			rules.exclusiveRooms = append(rules.exclusiveRooms, room.Id)
		}
	}

	return rules
}

func placedWithin(exams []uint64, sittings []Sitting, state placementState) []uint64 {
	return lo.Filter(exams, func(exam uint64, _ int) bool {
		sitting, ok := state.sittings[exam]
		return ok && slices.Contains(sittings, sitting)
	})
}
