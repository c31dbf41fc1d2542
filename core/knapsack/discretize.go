package knapsack

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// plan is the integer form of a problem
type plan struct {
	// weights holds the reduced cost of every frontier candidate; -1 marks
	// a candidate that can never fit
	weights [][]int

	capacity    int
	approximate bool

	// unbounded reports that every selection fits
	unbounded bool

	// capped is the exact problem cut off at maxCapacity; set alongside a
	// coarse plan
	capped *plan
}

// discretize converts frontier costs to small integers.
//
// Costs are shifted to exact integer minor units, and each group's cheapest
// cost is moved out of the capacity so feasibility is decided exactly. The
// remaining increments are divided by their greatest common divisor. Only if
// the capacity is still above maxCapacity are increments rounded up to a
// coarser unit. That unit depends on the increments alone, so for a fixed
// catalogue a larger budget never shrinks the set of coarse selections.
func discretize(frontiers [][]candidate, capacity decimal.Decimal, maxCapacity int) (*plan, error) {
	shift := minorUnitShift(frontiers)

	residual := capacity.Shift(shift).Floor().BigInt()
	increments := make([][]*big.Int, len(frontiers))
	for i, f := range frontiers {
		cheapest := f[0].cost.Shift(shift).BigInt()
		residual.Sub(residual, cheapest)

		increments[i] = make([]*big.Int, len(f))
		for j, c := range f {
			inc := c.cost.Shift(shift).BigInt()
			increments[i][j] = inc.Sub(inc, cheapest)
		}
	}
	if residual.Sign() < 0 {
		return nil, ErrInfeasible
	}

	divisor := new(big.Int)
	for _, incs := range increments {
		for _, inc := range incs {
			divisor.GCD(nil, nil, divisor, inc)
		}
	}
	if divisor.Sign() == 0 {
		// every group has a single frontier candidate
		return &plan{weights: zeroWeights(frontiers), unbounded: true}, nil
	}

	spread := new(big.Int)
	for _, incs := range increments {
		for _, inc := range incs {
			inc.Quo(inc, divisor)
		}
		spread.Add(spread, incs[len(incs)-1])
	}
	residual.Quo(residual, divisor)

	if spread.Cmp(residual) <= 0 {
		return &plan{weights: zeroWeights(frontiers), unbounded: true}, nil
	}

	limit := big.NewInt(int64(maxCapacity))
	if residual.Cmp(limit) <= 0 {
		return newPlan(increments, residual, false), nil
	}

	// unit = ceil(spread / maxCapacity); rounding increments up keeps every
	// selection that fits the coarse capacity within the budget, and since
	// residual < spread the coarse capacity stays below maxCapacity
	unit := ceilQuo(spread, limit)
	coarse := make([][]*big.Int, len(increments))
	for i, incs := range increments {
		coarse[i] = make([]*big.Int, len(incs))
		for j, inc := range incs {
			coarse[i][j] = ceilQuo(inc, unit)
		}
	}
	p := newPlan(coarse, new(big.Int).Quo(residual, unit), true)
	p.capped = newPlan(increments, limit, false)
	return p, nil
}

// minorUnitShift is the number of decimal places needed to make every cost
// an integer
func minorUnitShift(frontiers [][]candidate) int32 {
	var shift int32
	for _, f := range frontiers {
		for _, c := range f {
			if e := -c.cost.Exponent(); e > shift {
				shift = e
			}
		}
	}
	return shift
}

func newPlan(increments [][]*big.Int, capacity *big.Int, approximate bool) *plan {
	p := &plan{
		weights:     make([][]int, len(increments)),
		capacity:    int(capacity.Int64()),
		approximate: approximate,
	}
	for i, incs := range increments {
		p.weights[i] = make([]int, len(incs))
		for j, inc := range incs {
			if inc.Cmp(capacity) > 0 {
				p.weights[i][j] = -1
				continue
			}
			p.weights[i][j] = int(inc.Int64())
		}
	}
	return p
}

func zeroWeights(frontiers [][]candidate) [][]int {
	w := make([][]int, len(frontiers))
	for i, f := range frontiers {
		w[i] = make([]int, len(f))
	}
	return w
}

func ceilQuo(a, b *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(a, b, new(big.Int))
	if r.Sign() > 0 {
		q.Add(q, big.NewInt(1))
	}
	return q
}
