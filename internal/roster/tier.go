package roster

import (
	"strings"

	"github.com/limaJavier/examtabling/pkg/model"
)

// ParseTier reads the accessibility tier out of the free-text arrangement of a student
func ParseTier(arrangement string) model.Tier {
	text := strings.ToLower(strings.TrimSpace(arrangement))
	switch {
	case text == "" || text == "#n/a" || text == "nan":
		return model.NoTier
	case strings.HasPrefix(text, "15min/hour") || strings.HasPrefix(text, "25% extra time"):
		return model.ExtraTime25Tier
	case strings.HasPrefix(text, "30min/hour") || strings.HasPrefix(text, "50% extra time"):
		return model.ExtraTime50Tier
	case strings.Contains(text, "computer") || containsWord(text, "pc"):
		return model.ComputerOnlyTier
	}
	return model.ArrangementTier
}

func containsWord(text, word string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool { return r == ' ' || r == ',' || r == ';' || r == '/' || r == '.' }) {
		if field == word {
			return true
		}
	}
	return false
}
