package model

import (
	"fmt"
	"slices"
	"strings"

	"github.com/onsi/gomega/matchers/support/goraph/bipartitegraph"
	"github.com/samber/lo"
)

// preflight looks for instances that are infeasible by construction, so they can be reported without solving anything
func preflight(modelInput ModelInput, evaluator predicateEvaluator) ([]string, error) {
	diagnostics := make([]string, 0)
	calendar := modelInput.Calendar

	//** Pins
	for _, exam := range modelInput.Exams {
		if exam.Fixed && evaluator.Forbidden(exam.Pin) {
			diagnostics = append(diagnostics, fmt.Sprintf("fixed exam %v is pinned to forbidden %v", exam.Name, calendar.Label(exam.Pin)))
		}
	}

	//** Students
	starved := make(map[string]bool) // Students sharing exams and tier share the outcome
	for _, student := range modelInput.Students {
		fixed := lo.Filter(student.Exams, func(exam uint64, _ int) bool { return modelInput.Exams[exam].Fixed })
		for i := range len(fixed) {
			for j := i + 1; j < len(fixed); j++ {
				first, second := modelInput.Exams[fixed[i]], modelInput.Exams[fixed[j]]
				switch {
				case first.Pin == second.Pin:
					diagnostics = append(diagnostics, fmt.Sprintf("student %v sits fixed exams %v and %v at the same %v",
						student.Name, first.Name, second.Name, calendar.Label(first.Pin)))
				case first.Pin.Day == second.Pin.Day && (first.Core || second.Core):
					diagnostics = append(diagnostics, fmt.Sprintf("student %v sits fixed exams %v and %v on day %v, where one of them is core",
						student.Name, first.Name, second.Name, first.Pin.Day))
				}
			}
		}

		key := fmt.Sprint(student.Tier == ExtraTime50Tier, student.Exams)
		outcome, ok := starved[key]
		if !ok {
			matched, err := matchSittings(student, modelInput, evaluator)
			if err != nil {
				return nil, err
			}
			outcome = matched < len(student.Exams)
			starved[key] = outcome
		}
		if outcome {
			diagnostics = append(diagnostics, fmt.Sprintf("student %v has more exams than available %v",
				student.Name, lo.Ternary(student.Tier == ExtraTime50Tier, "days", "sittings")))
		}
	}

	//** Leaders
	for _, leader := range modelInput.Leaders {
		pinned := lo.Filter(leader.Exams, func(exam uint64, _ int) bool {
			return modelInput.Exams[exam].Fixed && evaluator.InWeekThree(modelInput.Exams[exam].Pin.Day)
		})
		if len(pinned) > 1 {
			diagnostics = append(diagnostics, fmt.Sprintf("leader %v owns %v exams pinned within week three: %v",
				leader.Name, len(pinned), strings.Join(examNames(pinned, modelInput), ", ")))
		}
	}

	return diagnostics, nil
}

// matchSittings returns the size of the largest matching between the exams of the student and their allowed sittings.
// Students with 50% extra time are matched against days instead
func matchSittings(student Student, modelInput ModelInput, evaluator predicateEvaluator) (int, error) {
	if len(student.Exams) < 2 {
		return len(lo.Filter(student.Exams, func(exam uint64, _ int) bool { return len(evaluator.Allowed(exam)) > 0 })), nil
	}

	perDay := student.Tier == ExtraTime50Tier
	candidates := make([]any, 0)
	slots := make(map[uint64][]any)
	for _, exam := range student.Exams {
		for _, sitting := range evaluator.Allowed(exam) {
			slot := any(sitting)
			if perDay {
				slot = sitting.Day
			}
			if !slices.Contains(slots[exam], slot) {
				slots[exam] = append(slots[exam], slot)
			}
			if !slices.Contains(candidates, slot) {
				candidates = append(candidates, slot)
			}
		}
	}

	// Build neighbors predicate based on allowed slots
	neighbors := func(examAny any, slotAny any) (bool, error) {
		return slices.Contains(slots[examAny.(uint64)], slotAny), nil
	}

	exams := lo.Map(student.Exams, func(exam uint64, _ int) any { return exam })
	graph, err := bipartitegraph.NewBipartiteGraph(exams, candidates, neighbors)
	if err != nil {
		return 0, err
	}
	return len(graph.LargestMatching()), nil
}
