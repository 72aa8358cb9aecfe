package model

// Placement variables come first, followed by room variables. Both are laid out in mixed radix
type indexerImplementation struct {
	exams uint64
	days  uint64
	slots uint64
	rooms uint64
}

func (indexer *indexerImplementation) placements() uint64 {
	return indexer.exams * indexer.days * indexer.slots
}

func (indexer *indexerImplementation) Placement(exam, day, slot uint64) int64 {
	return int64(slot + indexer.slots*day + indexer.slots*indexer.days*exam + 1)
}

func (indexer *indexerImplementation) Room(exam, room uint64) int64 {
	return int64(indexer.placements() + room + indexer.rooms*exam + 1)
}

func (indexer *indexerImplementation) Attributes(index int64) (placement bool, exam, day, slot, room uint64) {
	value := uint64(index) - 1

	if value < indexer.placements() {
		slot = value % indexer.slots
		value = value / indexer.slots

		day = value % indexer.days
		value = value / indexer.days

		exam = value
		return true, exam, day, slot, 0
	}

	value -= indexer.placements()
	room = value % indexer.rooms
	exam = value / indexer.rooms
	return false, exam, 0, 0, room
}

func (indexer *indexerImplementation) Variables() uint64 {
	return indexer.placements() + indexer.exams*indexer.rooms
}
