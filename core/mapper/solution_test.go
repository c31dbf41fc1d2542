package mapper

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"housecost/core/catalogue"
	"housecost/core/knapsack"
	"housecost/core/request"
)

func TestMapNamesChoicesInCatalogueOrder(t *testing.T) {
	cat, err := catalogue.New([]catalogue.Constituent{
		{Name: "Flooring", Levels: []catalogue.QualityLevel{
			{Level: 1, Rate: decimal.NewFromInt(10)},
			{Level: 2, Rate: decimal.NewFromInt(20)},
			{Level: 3, Rate: decimal.NewFromInt(35)},
		}},
		{Name: "Walls", Levels: []catalogue.QualityLevel{
			{Level: 1, Rate: decimal.NewFromInt(50)},
			{Level: 2, Rate: decimal.NewFromInt(60)},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}

	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Walls":    {Quantity: 4, QualityCeiling: 2, Priority: 2},
			"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
		},
		Budget: decimal.NewFromInt(4000),
	}
	weights := [][]float64{{0.25, 0.5, 1}, {0.5, 1}}
	sol := &knapsack.Solution{Choices: []int{1, 1}, Cost: decimal.NewFromInt(2240), Value: 54}

	got := Map(cat, req, weights, sol)

	want := &Solution{
		Assignment: map[string]int{"Flooring": 2, "Walls": 2},
		Choices: []Choice{
			{
				Constituent: "Flooring", Level: 2, Ceiling: 3, Quantity: 100,
				Rate: decimal.NewFromInt(20), Cost: decimal.NewFromInt(2000),
				Weight: 0.5, Preference: 50,
			},
			{
				Constituent: "Walls", Level: 2, Ceiling: 2, Quantity: 4,
				Rate: decimal.NewFromInt(60), Cost: decimal.NewFromInt(240),
				Weight: 1, Preference: 4,
			},
		},
		TotalCost:       decimal.NewFromInt(2240),
		TotalPreference: 54,
		Budget:          decimal.NewFromInt(4000),
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Map() mismatch (-want +got):\n%s", diff)
	}
	if !got.Remaining().Equal(decimal.NewFromInt(1760)) {
		t.Errorf("Remaining() = %s, want 1760", got.Remaining())
	}
}

func TestMapZeroQuantity(t *testing.T) {
	cat, err := catalogue.New([]catalogue.Constituent{
		{Name: "Paint", Levels: []catalogue.QualityLevel{
			{Level: 1, Rate: decimal.NewFromInt(5)},
			{Level: 2, Rate: decimal.NewFromInt(9)},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{"Paint": {Quantity: 0, QualityCeiling: 2}},
		Budget:       decimal.NewFromInt(1),
	}

	got := Map(cat, req, [][]float64{{0.5, 1}}, &knapsack.Solution{Choices: []int{1}})
	if got.Assignment["Paint"] != 2 {
		t.Errorf("level = %d, want 2", got.Assignment["Paint"])
	}
	if !got.TotalCost.IsZero() || got.TotalPreference != 0 {
		t.Errorf("totals = %s / %v, want zero", got.TotalCost, got.TotalPreference)
	}
}
