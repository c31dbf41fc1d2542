package knapsack

import (
	"context"
	"fmt"
	"math"
)

const noChoice = math.MaxUint8

// run fills the suffix table f[i][c], the best value of groups i..n-1 at an
// exact reduced cost c, and returns the frontier position picked per group.
//
// Groups are processed last to first so the walk back to a selection runs
// forward in group order; preferring the later candidate on ties at each
// step yields the lexicographically highest selection at the chosen cost.
func run(ctx context.Context, frontiers [][]candidate, weights [][]int, capacity int) ([]int, int64, error) {
	n := len(frontiers)
	negInf := math.Inf(-1)

	next := make([]float64, capacity+1)
	cur := make([]float64, capacity+1)
	for c := range next {
		next[c] = negInf
	}
	next[0] = 0

	choices := make([][]uint8, n)
	var cells int64

	for i := n - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, cells, fmt.Errorf("knapsack: %w", err)
		}

		items, w := frontiers[i], weights[i]
		row := make([]uint8, capacity+1)
		for c := 0; c <= capacity; c++ {
			best, pick := negInf, uint8(noChoice)
			for j := range items {
				if w[j] < 0 || w[j] > c {
					continue
				}
				rest := next[c-w[j]]
				if math.IsInf(rest, -1) {
					continue
				}
				v := rest + items[j].value
				if pick == noChoice || better(v, best) ||
					(tied(v, best) && items[j].index > items[pick].index) {
					best, pick = v, uint8(j)
				}
			}
			cur[c] = best
			row[c] = pick
		}
		cells += int64(capacity+1) * int64(len(items))
		choices[i] = row
		cur, next = next, cur
	}

	// lowest cost among the best values
	target := -1
	for c := 0; c <= capacity; c++ {
		if math.IsInf(next[c], -1) {
			continue
		}
		if target < 0 || better(next[c], next[target]) {
			target = c
		}
	}
	if target < 0 {
		return nil, cells, ErrInfeasible
	}

	picks := make([]int, n)
	c := target
	for i := 0; i < n; i++ {
		j := choices[i][c]
		if j == noChoice {
			return nil, cells, fmt.Errorf("knapsack: broken choice table at group %d cost %d", i, c)
		}
		picks[i] = int(j)
		c -= weights[i][j]
	}
	return picks, cells, nil
}
