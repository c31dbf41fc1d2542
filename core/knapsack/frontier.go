package knapsack

import (
	"sort"

	"github.com/shopspring/decimal"
)

// candidate is an item that survived frontier reduction
type candidate struct {
	index int
	cost  decimal.Decimal
	value float64
}

// reduce drops every item dominated by one that costs no more and is worth
// at least as much. Among items equal in both, the highest index survives.
// The result is sorted by cost with strictly increasing value.
func reduce(items []Item) []candidate {
	all := make([]candidate, len(items))
	for i, it := range items {
		all[i] = candidate{index: i, cost: it.Cost, value: it.Value}
	}

	sort.SliceStable(all, func(a, b int) bool {
		if c := all[a].cost.Cmp(all[b].cost); c != 0 {
			return c < 0
		}
		if all[a].value != all[b].value {
			return all[a].value > all[b].value
		}
		return all[a].index > all[b].index
	})

	frontier := make([]candidate, 1, len(all))
	frontier[0] = all[0]
	for _, c := range all[1:] {
		if better(c.value, frontier[len(frontier)-1].value) {
			frontier = append(frontier, c)
		}
	}
	return frontier
}
