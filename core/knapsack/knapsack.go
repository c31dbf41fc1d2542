// Package knapsack solves the multiple-choice knapsack problem: items are
// partitioned into groups, exactly one item is taken from every group, and
// the summed item value is maximized subject to the summed item cost staying
// within a capacity.
//
// Costs are exact decimals. The solver converts them to integer units and
// runs a dynamic program over groups and reduced cost. When the reduced
// capacity would exceed Options.MaxCapacity the costs are rounded up to a
// coarser unit fixed by the catalogue's cost spread, and the exact table cut
// off at MaxCapacity is solved as well; the better of the two is returned.
// Such solutions never exceed the capacity and never lose value as the
// capacity grows, but may not be optimal, and are flagged Approximate.
//
// Ties are broken deterministically: greatest value (within a relative
// tolerance of 1e-9), then lowest total cost, then the highest item index in
// group order.
package knapsack

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// DefaultMaxCapacity bounds the reduced capacity of the DP table
const DefaultMaxCapacity = 200000

// MaxItemsPerGroup is the largest group the choice table can index
const MaxItemsPerGroup = math.MaxUint8

// Tolerance is the relative tolerance under which two values are tied
const Tolerance = 1e-9

var (
	// ErrInfeasible is returned when the cheapest item of every group
	// together already exceeds the capacity
	ErrInfeasible = errors.New("knapsack: cheapest selection exceeds capacity")

	// ErrEmptyGroup is returned for a group without items
	ErrEmptyGroup = errors.New("knapsack: group has no items")

	// ErrInvalidItem is returned for negative costs or non-finite values
	ErrInvalidItem = errors.New("knapsack: invalid item")
)

// Item is one selectable option of a group
type Item struct {
	Cost  decimal.Decimal
	Value float64
}

// Group is a set of mutually exclusive items. Item order matters for tie
// breaking: later items are preferred among otherwise equal selections.
type Group struct {
	Items []Item
}

// Options tunes the solver
type Options struct {
	// MaxCapacity bounds the reduced capacity; 0 means DefaultMaxCapacity
	MaxCapacity int
}

// Solution is the selected item per group
type Solution struct {
	// Choices holds the selected item index of every group
	Choices []int

	// Cost is the exact summed cost of the selection
	Cost decimal.Decimal

	// Value is the summed value of the selection
	Value float64

	// Approximate reports that costs were rounded to fit MaxCapacity
	Approximate bool

	// Capacity is the reduced capacity the DP ran with
	Capacity int

	// Cells counts DP transitions evaluated
	Cells int64
}

// Solve selects one item from every group.
// It returns ErrInfeasible if no selection fits the capacity.
func Solve(ctx context.Context, groups []Group, capacity decimal.Decimal, opts Options) (*Solution, error) {
	if opts.MaxCapacity <= 0 {
		opts.MaxCapacity = DefaultMaxCapacity
	}

	frontiers := make([][]candidate, len(groups))
	for i, g := range groups {
		if err := validateGroup(g); err != nil {
			return nil, fmt.Errorf("group %d: %w", i, err)
		}
		frontiers[i] = reduce(g.Items)
	}

	plan, err := discretize(frontiers, capacity, opts.MaxCapacity)
	if err != nil {
		return nil, err
	}

	var (
		picks []int
		cells int64
	)
	if plan.unbounded {
		picks = richestPicks(frontiers)
	} else {
		picks, cells, err = run(ctx, frontiers, plan.weights, plan.capacity)
		if err != nil {
			return nil, err
		}
		if plan.capped != nil {
			// the exact table at maxCapacity can beat the rounded one
			alt, altCells, err := run(ctx, frontiers, plan.capped.weights, plan.capped.capacity)
			if err != nil {
				return nil, err
			}
			cells += altCells
			if preferred(frontiers, alt, picks) {
				picks = alt
			}
		}
	}

	sol := &Solution{
		Choices:     make([]int, len(groups)),
		Cost:        decimal.Zero,
		Approximate: plan.approximate,
		Capacity:    plan.capacity,
		Cells:       cells,
	}
	for i, p := range picks {
		c := frontiers[i][p]
		sol.Choices[i] = c.index
		sol.Cost = sol.Cost.Add(c.cost)
		sol.Value += c.value
	}
	return sol, nil
}

func validateGroup(g Group) error {
	if len(g.Items) == 0 {
		return ErrEmptyGroup
	}
	if len(g.Items) > MaxItemsPerGroup {
		return fmt.Errorf("%w: %d items, at most %d allowed", ErrInvalidItem, len(g.Items), MaxItemsPerGroup)
	}
	for j, it := range g.Items {
		if it.Cost.IsNegative() {
			return fmt.Errorf("%w: item %d has negative cost %s", ErrInvalidItem, j, it.Cost)
		}
		if math.IsNaN(it.Value) || math.IsInf(it.Value, 0) {
			return fmt.Errorf("%w: item %d has value %v", ErrInvalidItem, j, it.Value)
		}
	}
	return nil
}

// richestPicks selects the most valuable frontier item of every group.
// The frontier is sorted by cost with strictly increasing value, so that is
// the last one.
func richestPicks(frontiers [][]candidate) []int {
	picks := make([]int, len(frontiers))
	for i, f := range frontiers {
		picks[i] = len(f) - 1
	}
	return picks
}

// preferred reports whether picks a beat picks b: more value, then less cost
func preferred(frontiers [][]candidate, a, b []int) bool {
	costA, valueA := totals(frontiers, a)
	costB, valueB := totals(frontiers, b)
	if !tied(valueA, valueB) {
		return better(valueA, valueB)
	}
	return costA.LessThan(costB)
}

func totals(frontiers [][]candidate, picks []int) (decimal.Decimal, float64) {
	cost, value := decimal.Zero, 0.0
	for i, p := range picks {
		cost = cost.Add(frontiers[i][p].cost)
		value += frontiers[i][p].value
	}
	return cost, value
}

func tied(a, b float64) bool {
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= Tolerance*scale
}

func better(a, b float64) bool {
	return a > b && !tied(a, b)
}
