package sat

import (
	"fmt"
	"math/bits"
	"slices"

	"github.com/samber/lo"
)

// Weighted constraints are lowered by enumerating subsets of their literals, which is only tractable for narrow ones
const maxWeightedWidth = 16

type EncodingError struct {
	Width int
}

func (err EncodingError) Error() string {
	return fmt.Sprintf("weighted constraint over %d literals is too wide to be encoded as CNF (at most %d)", err.Width, maxWeightedWidth)
}

type cnfLowering struct {
	sat SAT
}

func (lowering *cnfLowering) newVariable() int64 {
	lowering.sat.Variables++
	return int64(lowering.sat.Variables)
}

func (lowering *cnfLowering) clause(literals ...int64) {
	lowering.sat.Clauses = append(lowering.sat.Clauses, literals)
}

// ToSAT lowers the problem into CNF. The objective and the defining constraints are dropped, therefore any model of the CNF satisfies the hard constraints only
func (problem Problem) ToSAT() (SAT, error) {
	lowering := &cnfLowering{sat: SAT{Variables: problem.Variables, Clauses: [][]int64{}}}

	for _, constraint := range problem.Constraints {
		if constraint.Defining {
			continue
		}

		literals, weights, bound := constraint.normalized()
		total := lo.Sum(weights)

		switch {
		case bound <= 0:
			continue
		case bound > total:
			// Unsatisfiable constraint
			contradiction := lowering.newVariable()
			lowering.clause(contradiction)
			lowering.clause(-contradiction)
		case bound == 1:
			lowering.clause(literals...)
		case lo.EveryBy(weights, func(weight int64) bool { return weight == weights[0] }):
			// At least k literals true is at most n-k negated literals true
			k := (bound + weights[0] - 1) / weights[0]
			negated := lo.Map(literals, func(literal int64, _ int) int64 { return -literal })
			lowering.atMost(negated, int(int64(len(literals))-k))
		default:
			if len(literals) > maxWeightedWidth {
				return SAT{}, EncodingError{Width: len(literals)}
			}
			lowering.weighted(literals, weights, bound)
		}
	}

	return lowering.sat, nil
}

// atMost adds the sequential counter encoding of sum(literals) <= k
func (lowering *cnfLowering) atMost(literals []int64, k int) {
	n := len(literals)
	if k >= n {
		return
	} else if k <= 0 {
		for _, literal := range literals {
			lowering.clause(-literal)
		}
		return
	}

	// registers[i][j] is true when at least j+1 of the first i+1 literals are true
	registers := make([][]int64, n-1)
	for i := range registers {
		registers[i] = make([]int64, k)
		for j := range k {
			registers[i][j] = lowering.newVariable()
		}
	}

	lowering.clause(-literals[0], registers[0][0])
	for j := 1; j < k; j++ {
		lowering.clause(-registers[0][j])
	}
	for i := 1; i < n-1; i++ {
		lowering.clause(-literals[i], registers[i][0])
		lowering.clause(-registers[i-1][0], registers[i][0])
		for j := 1; j < k; j++ {
			lowering.clause(-literals[i], -registers[i-1][j-1], registers[i][j])
			lowering.clause(-registers[i-1][j], registers[i][j])
		}
		lowering.clause(-literals[i], -registers[i-1][k-1])
	}
	lowering.clause(-literals[n-1], -registers[n-2][k-1])
}

// weighted forbids every maximal subset of literals whose weight falls short of the bound: at least one literal outside it must hold
func (lowering *cnfLowering) weighted(literals, weights []int64, bound int64) {
	n := len(literals)
	full := uint32(1)<<n - 1

	for subset := uint32(0); subset <= full; subset++ {
		weight := int64(0)
		for i := range n {
			if subset&(1<<i) != 0 {
				weight += weights[i]
			}
		}
		if weight >= bound {
			continue
		}

		// Only maximal subsets matter since their clauses subsume the rest
		maximal := true
		for i := range n {
			if subset&(1<<i) == 0 && weight+weights[i] < bound {
				maximal = false
				break
			}
		}
		if !maximal {
			continue
		}

		clause := make([]int64, 0, n-bits.OnesCount32(subset))
		for i := range n {
			if subset&(1<<i) == 0 {
				clause = append(clause, literals[i])
			}
		}
		lowering.clause(slices.Clip(clause)...)
	}
}
