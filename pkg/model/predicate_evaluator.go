package model

type predicateEvaluator interface {
	// Checks whether the sitting is hard-excluded from the calendar
	Forbidden(sitting Sitting) bool

	// Checks whether the sitting is soft-discouraged
	Discouraged(sitting Sitting) bool

	// Returns the sittings the exam can be placed at: its pin for fixed exams, every non-forbidden sitting otherwise
	Allowed(exam uint64) []Sitting

	// Checks whether the room supports the capability (the placeholder supports every capability)
	Supports(room uint64, capability Capability) bool

	// Checks whether the exam must be assigned exactly the placeholder room (i.e. it is fixed and non-core)
	PlaceholderBound(exam uint64) bool

	// Checks whether the room may be assigned to the exam at all
	Hosts(room, exam uint64) bool

	// Checks whether the day falls within the week-three range
	InWeekThree(day uint64) bool

	// Checks whether the day falls within the early congestion window
	Early(day uint64) bool
}
