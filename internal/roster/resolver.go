package roster

import (
	"slices"
	"strings"
	"unicode"

	"github.com/agnivade/levenshtein"
)

const DefaultThreshold = 70

// Resolver associates free-text module names with exam names by token-sort similarity. It is a best-effort heuristic:
// names scoring below the threshold stay unmatched
type Resolver struct {
	candidates []string
	normalized []string
	threshold  int
}

func NewResolver(candidates []string, threshold int) *Resolver {
	normalized := make([]string, len(candidates))
	for i, candidate := range candidates {
		normalized[i] = sortTokens(candidate)
	}
	return &Resolver{
		candidates: candidates,
		normalized: normalized,
		threshold:  threshold,
	}
}

// Resolve returns the most similar candidate and its score between 0 and 100. Ties go to the earliest candidate
func (resolver *Resolver) Resolve(name string) (match string, score int, ok bool) {
	normalized := sortTokens(name)
	best := -1
	for i, candidate := range resolver.normalized {
		if similarity := Similarity(normalized, candidate); similarity > score || best < 0 {
			best, score = i, similarity
		}
	}
	if best < 0 || score < resolver.threshold {
		return "", score, false
	}
	return resolver.candidates[best], score, true
}

// Similarity scores two already normalized strings by their edit distance relative to the longest one
func Similarity(a, b string) int {
	longest := max(len([]rune(a)), len([]rune(b)))
	if longest == 0 {
		return 100
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 100 * (longest - distance) / longest
}

// sortTokens lower-cases the text and sorts its alphanumeric tokens, so word order does not matter
func sortTokens(text string) string {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}
