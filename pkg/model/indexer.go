package model

// indexer interface is design to give a unique index to every decision variable and vice versa
type indexer interface {
	// Returns the variable standing for the exam being placed at the given day and slot
	Placement(exam, day, slot uint64) int64

	// Returns the variable standing for the room being assigned to the exam
	Room(exam, room uint64) int64

	// Returns the attributes of a decision variable from its index, where placement tells both kinds apart
	Attributes(index int64) (placement bool, exam, day, slot, room uint64)

	// Returns the amount of decision variables
	Variables() uint64
}

func newIndexer(exams, days, slots, rooms uint64) indexer {
	return &indexerImplementation{
		exams: exams,
		days:  days,
		slots: slots,
		rooms: rooms,
	}
}
