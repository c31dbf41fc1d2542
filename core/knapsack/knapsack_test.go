package knapsack

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
)

func items(pairs ...float64) []Item {
	out := make([]Item, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, Item{Cost: decimal.NewFromFloat(pairs[i]), Value: pairs[i+1]})
	}
	return out
}

func TestReduceDropsDominated(t *testing.T) {
	tests := []struct {
		name  string
		items []Item
		want  []int
	}{
		{
			name:  "monotone levels all survive",
			items: items(10, 0.25, 20, 0.5, 35, 1),
			want:  []int{0, 1, 2},
		},
		{
			name:  "pricier and worse is dropped",
			items: items(10, 0.5, 30, 0.25, 40, 1),
			want:  []int{0, 2},
		},
		{
			name:  "same cost keeps the more valuable",
			items: items(10, 0.25, 10, 0.5),
			want:  []int{1},
		},
		{
			name:  "exact duplicates keep the highest index",
			items: items(0, 0, 0, 0, 0, 0),
			want:  []int{2},
		},
		{
			name:  "same value keeps the cheaper",
			items: items(10, 1, 20, 1),
			want:  []int{0},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := reduce(tt.items)
			if len(got) != len(tt.want) {
				t.Fatalf("frontier = %+v, want indices %v", got, tt.want)
			}
			for i, c := range got {
				if c.index != tt.want[i] {
					t.Errorf("frontier[%d] = item %d, want %d", i, c.index, tt.want[i])
				}
			}
		})
	}
}

func TestSolveSingleGroup(t *testing.T) {
	groups := []Group{{Items: items(1000, 25, 2000, 50, 3500, 100)}}

	tests := []struct {
		capacity int64
		want     int
		cost     int64
	}{
		{capacity: 3500, want: 2, cost: 3500},
		{capacity: 2500, want: 1, cost: 2000},
		{capacity: 1999, want: 0, cost: 1000},
		{capacity: 1000, want: 0, cost: 1000},
	}

	for _, tt := range tests {
		sol, err := Solve(context.Background(), groups, decimal.NewFromInt(tt.capacity), Options{})
		if err != nil {
			t.Fatalf("capacity %d: %v", tt.capacity, err)
		}
		if sol.Choices[0] != tt.want {
			t.Errorf("capacity %d: choice = %d, want %d", tt.capacity, sol.Choices[0], tt.want)
		}
		if !sol.Cost.Equal(decimal.NewFromInt(tt.cost)) {
			t.Errorf("capacity %d: cost = %s, want %d", tt.capacity, sol.Cost, tt.cost)
		}
		if sol.Approximate {
			t.Errorf("capacity %d: unexpected approximate solution", tt.capacity)
		}
	}
}

func TestSolveInfeasible(t *testing.T) {
	groups := []Group{
		{Items: items(600, 1, 900, 2)},
		{Items: items(500, 1)},
	}
	_, err := Solve(context.Background(), groups, decimal.NewFromInt(1099), Options{})
	if !errors.Is(err, ErrInfeasible) {
		t.Fatalf("err = %v, want ErrInfeasible", err)
	}

	sol, err := Solve(context.Background(), groups, decimal.NewFromInt(1100), Options{})
	if err != nil {
		t.Fatalf("cheapest selection at exact capacity: %v", err)
	}
	if sol.Choices[0] != 0 || sol.Choices[1] != 0 {
		t.Errorf("choices = %v, want [0 0]", sol.Choices)
	}
}

func TestSolvePrefersCheaperThenHigherIndex(t *testing.T) {
	// both groups offer a free item and a 10-cost item of equal value, so
	// only one of them can be upgraded with capacity 10
	groups := []Group{
		{Items: items(0, 0.5, 10, 1)},
		{Items: items(0, 0.5, 10, 1)},
	}
	sol, err := Solve(context.Background(), groups, decimal.NewFromInt(10), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sol.Choices[0] != 1 || sol.Choices[1] != 0 {
		t.Errorf("choices = %v, want the upgrade on the first group [1 0]", sol.Choices)
	}

	// equal value at two costs: the cheaper total wins
	groups = []Group{
		{Items: items(5, 1, 8, 1)},
		{Items: items(0, 1)},
	}
	sol, err = Solve(context.Background(), groups, decimal.NewFromInt(100), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if !sol.Cost.Equal(decimal.NewFromInt(5)) {
		t.Errorf("cost = %s, want 5", sol.Cost)
	}
}

func TestSolveFractionalCosts(t *testing.T) {
	groups := []Group{
		{Items: []Item{
			{Cost: decimal.RequireFromString("10.25"), Value: 0.5},
			{Cost: decimal.RequireFromString("20.5"), Value: 1},
		}},
		{Items: []Item{
			{Cost: decimal.RequireFromString("0.125"), Value: 0.25},
			{Cost: decimal.RequireFromString("10.375"), Value: 1},
		}},
	}

	sol, err := Solve(context.Background(), groups, decimal.RequireFromString("30.874"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	// 20.5 + 10.375 = 30.875 is one thousandth over
	if sol.Value != 1.5 {
		t.Errorf("value = %v, want 1.5 (choices %v)", sol.Value, sol.Choices)
	}
	if sol.Cost.GreaterThan(decimal.RequireFromString("30.874")) {
		t.Errorf("cost %s exceeds capacity", sol.Cost)
	}

	sol, err = Solve(context.Background(), groups, decimal.RequireFromString("30.875"), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if sol.Value != 2 {
		t.Errorf("value = %v, want 2", sol.Value)
	}
}

func TestSolveUnboundedCapacity(t *testing.T) {
	groups := []Group{
		{Items: items(1e9, 0.5, 3e9+7, 1)},
		{Items: items(13, 0.25, 1e10, 1)},
	}
	sol, err := Solve(context.Background(), groups, decimal.NewFromInt(1e12), Options{MaxCapacity: 10})
	if err != nil {
		t.Fatal(err)
	}
	if sol.Choices[0] != 1 || sol.Choices[1] != 1 {
		t.Errorf("choices = %v, want [1 1]", sol.Choices)
	}
	if sol.Approximate {
		t.Error("every selection fits, the solution must be exact")
	}
}

func TestSolveCoarseCapacityStaysWithinBudget(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 50; trial++ {
		groups := make([]Group, 4)
		for i := range groups {
			var its []Item
			cost := int64(rng.Intn(1000))
			for l := 0; l < 4; l++ {
				cost += int64(rng.Intn(100000) + 1)
				its = append(its, Item{Cost: decimal.NewFromInt(cost), Value: float64(l + 1)})
			}
			groups[i] = Group{Items: its}
		}
		capacity := decimal.NewFromInt(int64(rng.Intn(300000) + 4000))

		sol, err := Solve(context.Background(), groups, capacity, Options{MaxCapacity: 64})
		if errors.Is(err, ErrInfeasible) {
			continue
		}
		if err != nil {
			t.Fatal(err)
		}
		if sol.Cost.GreaterThan(capacity) {
			t.Fatalf("trial %d: cost %s exceeds capacity %s", trial, sol.Cost, capacity)
		}
		if sol.Capacity > 64 {
			t.Fatalf("trial %d: reduced capacity %d above limit", trial, sol.Capacity)
		}
	}
}

func TestSolveCancelled(t *testing.T) {
	groups := []Group{
		{Items: items(1, 0.5, 7, 1)},
		{Items: items(1, 0.5, 5, 1)},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Solve(ctx, groups, decimal.NewFromInt(8), Options{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestSolveRejectsInvalidGroups(t *testing.T) {
	tests := []struct {
		name   string
		groups []Group
		want   error
	}{
		{"empty group", []Group{{}}, ErrEmptyGroup},
		{"negative cost", []Group{{Items: items(-1, 1)}}, ErrInvalidItem},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Solve(context.Background(), tt.groups, decimal.NewFromInt(10), Options{})
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

// bruteForce enumerates every selection and applies the same ordering as
// Solve: value, then lower cost, then lexicographically higher indices.
func bruteForce(groups []Group, capacity decimal.Decimal) ([]int, bool) {
	var (
		best      []int
		bestValue float64
		bestCost  decimal.Decimal
	)
	current := make([]int, len(groups))

	var walk func(i int, cost decimal.Decimal, value float64)
	walk = func(i int, cost decimal.Decimal, value float64) {
		if cost.GreaterThan(capacity) {
			return
		}
		if i == len(groups) {
			switch {
			case best == nil, value > bestValue:
			case value < bestValue:
				return
			case cost.LessThan(bestCost):
			case cost.GreaterThan(bestCost):
				return
			default:
				if !lexGreater(current, best) {
					return
				}
			}
			best = append([]int(nil), current...)
			bestValue, bestCost = value, cost
			return
		}
		for j, it := range groups[i].Items {
			current[i] = j
			walk(i+1, cost.Add(it.Cost), value+it.Value)
		}
	}
	walk(0, decimal.Zero, 0)
	return best, best != nil
}

func lexGreater(a, b []int) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}

func randomGroups(rng *rand.Rand) []Group {
	groups := make([]Group, rng.Intn(5)+1)
	for i := range groups {
		n := rng.Intn(5) + 1
		quantity := float64(rng.Intn(4))
		its := make([]Item, n)
		for j := range its {
			// dyadic values keep float sums exact
			its[j] = Item{
				Cost:  decimal.NewFromInt(int64(rng.Intn(6) * 5)),
				Value: quantity / float64(int(1)<<rng.Intn(6)),
			}
		}
		groups[i] = Group{Items: its}
	}
	return groups
}

func TestSolveMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 500; trial++ {
		groups := randomGroups(rng)
		capacity := decimal.NewFromInt(int64(rng.Intn(60)))

		want, feasible := bruteForce(groups, capacity)
		sol, err := Solve(context.Background(), groups, capacity, Options{})

		if !feasible {
			if !errors.Is(err, ErrInfeasible) {
				t.Fatalf("trial %d: err = %v, want ErrInfeasible", trial, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("trial %d: %v", trial, err)
		}
		for i := range want {
			if sol.Choices[i] != want[i] {
				t.Fatalf("trial %d: choices = %v, want %v (groups %+v, capacity %s)", trial, sol.Choices, want, groups, capacity)
			}
		}
	}
}

func TestSolveMonotoneInCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 100; trial++ {
		groups := randomGroups(rng)
		last := -1.0
		for capacity := int64(0); capacity <= 80; capacity += 5 {
			sol, err := Solve(context.Background(), groups, decimal.NewFromInt(capacity), Options{})
			if errors.Is(err, ErrInfeasible) {
				if last >= 0 {
					t.Fatalf("trial %d: infeasible at %d after a feasible smaller capacity", trial, capacity)
				}
				continue
			}
			if err != nil {
				t.Fatal(err)
			}
			if sol.Value < last {
				t.Fatalf("trial %d: value fell from %v to %v at capacity %d", trial, last, sol.Value, capacity)
			}
			last = sol.Value
		}
	}
}

func TestSolveCoarseMonotoneInCapacity(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 40; trial++ {
		groups := make([]Group, 3)
		for i := range groups {
			var its []Item
			cost := int64(rng.Intn(50))
			for l := 0; l < 3; l++ {
				its = append(its, Item{Cost: decimal.NewFromInt(cost), Value: float64(rng.Intn(9) + 1)})
				cost += int64(rng.Intn(5000) + 1)
			}
			groups[i] = Group{Items: its}
		}

		last, coarse := -1.0, false
		for capacity := int64(150); capacity <= 16000; capacity += 97 {
			budget := decimal.NewFromInt(capacity)
			sol, err := Solve(context.Background(), groups, budget, Options{MaxCapacity: 50})
			if err != nil {
				t.Fatalf("trial %d capacity %d: %v", trial, capacity, err)
			}
			if sol.Cost.GreaterThan(budget) {
				t.Fatalf("trial %d: cost %s exceeds capacity %d", trial, sol.Cost, capacity)
			}
			if sol.Value < last && !tied(sol.Value, last) {
				t.Fatalf("trial %d: value fell from %v to %v at capacity %d", trial, last, sol.Value, capacity)
			}
			coarse = coarse || sol.Approximate
			last = sol.Value
		}
		if !coarse {
			t.Fatalf("trial %d: sweep never left the exact table", trial)
		}
	}
}
