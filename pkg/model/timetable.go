package model

import (
	"fmt"

	"github.com/samber/lo"
)

type Placement struct {
	Day   uint64
	Slot  uint64
	Rooms []string
}

func (placement Placement) Sitting() Sitting {
	return Sitting{Day: placement.Day, Slot: placement.Slot}
}

// Timetable maps exam names to their placement. It may be partial or mention exams and rooms unknown to the model
type Timetable map[string]Placement

type Severity string

const (
	HardViolation Severity = "hard"
	SoftWarning   Severity = "soft"
)

type Rule string

const (
	MissingExamRule      Rule = "missing-exam"
	UnknownExamRule      Rule = "unknown-exam"
	UnknownRoomRule      Rule = "unknown-room"
	OutsideCalendarRule  Rule = "outside-calendar"
	StudentClashRule     Rule = "student-clash"
	CoreIsolationRule    Rule = "core-isolation"
	PinRule              Rule = "fixed-pin"
	ForbiddenSittingRule Rule = "forbidden-sitting"
	TwoDayWindowRule     Rule = "two-day-window"
	WindowRule           Rule = "sliding-window"
	WeekThreeRule        Rule = "week-three-leader"
	ExtraTime50Rule      Rule = "extra-time-50"
	CapacityRule         Rule = "capacity"
	RoomClashRule        Rule = "room-clash"
	ComputerRoomRule     Rule = "computer-room"
	RoomCountRule        Rule = "room-count"
	PlaceholderRule      Rule = "placeholder"

	ExtraTime25Rule     Rule = "extra-time-25"
	LeaderSpreadRule    Rule = "leader-spread"
	DiscouragedRule     Rule = "discouraged-sitting"
	CongestionRule      Rule = "congestion"
	RoomSurplusRule     Rule = "room-surplus"
	ComputerRoomUseRule Rule = "computer-room-use"
	DuplicateRowRule    Rule = "duplicate-row"
)

var ruleDescriptions = map[Rule]string{
	StudentClashRule:  "simultaneous exams",
	CoreIsolationRule: "core exam shares its day",
	TwoDayWindowRule:  "too many exams over two days",
	WindowRule:        "too many exams inside the sliding window",
	WeekThreeRule:     "too many owned exams in week three",
	ExtraTime50Rule:   "more than one exam per day with 50% extra time",
	ExtraTime25Rule:   "more than one exam per day with 25% extra time",
	CongestionRule:    "congested sitting",
}

type Finding struct {
	Severity Severity
	Rule     Rule
	Message  string
	Exams    []string
	Penalty  int64 // Realized penalty of soft warnings
}

func (finding Finding) String() string {
	return fmt.Sprintf("[%v] %v: %v", finding.Severity, finding.Rule, finding.Message)
}

func HardFindings(findings []Finding) []Finding {
	return lo.Filter(findings, func(finding Finding, _ int) bool { return finding.Severity == HardViolation })
}

func SoftFindings(findings []Finding) []Finding {
	return lo.Filter(findings, func(finding Finding, _ int) bool { return finding.Severity == SoftWarning })
}

// Penalty sums the realized penalties of the findings
func Penalty(findings []Finding) int64 {
	return lo.SumBy(findings, func(finding Finding) int64 { return finding.Penalty })
}
