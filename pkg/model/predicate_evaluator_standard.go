package model

import (
	"slices"

	"github.com/samber/lo"
)

type standardPredicateEvaluator struct {
	modelInput  ModelInput
	forbidden   map[Sitting]bool
	discouraged map[Sitting]bool
	allowed     [][]Sitting
}

func newPredicateEvaluator(modelInput ModelInput) predicateEvaluator {
	evaluator := &standardPredicateEvaluator{
		modelInput:  modelInput,
		forbidden:   lo.SliceToMap(modelInput.Calendar.Forbidden, func(sitting Sitting) (Sitting, bool) { return sitting, true }),
		discouraged: lo.SliceToMap(modelInput.Calendar.Discouraged, func(sitting Sitting) (Sitting, bool) { return sitting, true }),
	}

	free := lo.Filter(modelInput.Calendar.Sittings(), func(sitting Sitting, _ int) bool { return !evaluator.forbidden[sitting] })
	evaluator.allowed = lo.Map(modelInput.Exams, func(exam Exam, _ int) []Sitting {
		if exam.Fixed {
			if evaluator.forbidden[exam.Pin] || !modelInput.Calendar.Contains(exam.Pin) {
				return []Sitting{}
			}
			return []Sitting{exam.Pin}
		}
		return free
	})

	return evaluator
}

func (evaluator *standardPredicateEvaluator) Forbidden(sitting Sitting) bool {
	return evaluator.forbidden[sitting]
}

func (evaluator *standardPredicateEvaluator) Discouraged(sitting Sitting) bool {
	return evaluator.discouraged[sitting]
}

func (evaluator *standardPredicateEvaluator) Allowed(exam uint64) []Sitting {
	return evaluator.allowed[exam]
}

func (evaluator *standardPredicateEvaluator) Supports(room uint64, capability Capability) bool {
	candidate := evaluator.modelInput.Rooms[room]
	return candidate.Placeholder || slices.Contains(candidate.Capabilities, capability)
}

func (evaluator *standardPredicateEvaluator) PlaceholderBound(exam uint64) bool {
	candidate := evaluator.modelInput.Exams[exam]
	return candidate.Fixed && !candidate.Core
}

func (evaluator *standardPredicateEvaluator) Hosts(room, exam uint64) bool {
	if evaluator.PlaceholderBound(exam) {
		return evaluator.modelInput.Rooms[room].Placeholder
	}
	return !evaluator.modelInput.Rooms[room].Placeholder &&
		(evaluator.modelInput.Exams[exam].Style != ComputerStyle || evaluator.Supports(room, ComputerCapability))
}

func (evaluator *standardPredicateEvaluator) InWeekThree(day uint64) bool {
	return evaluator.modelInput.Config.WeekThree.Contains(day)
}

func (evaluator *standardPredicateEvaluator) Early(day uint64) bool {
	return day < evaluator.modelInput.Config.EarlyDays
}
