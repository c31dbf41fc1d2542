// Package mapper - Converts index-based solver output into named choices.
// Mapping is pure and total: every failure happens upstream.
package mapper

import (
	"github.com/shopspring/decimal"

	"housecost/core/catalogue"
	"housecost/core/knapsack"
	"housecost/core/request"
)

// Solution is a named assignment with totals
type Solution struct {
	// Assignment maps each constituent to its chosen 1-based level
	Assignment map[string]int `json:"assignment"`

	// Choices lists the assignment in catalogue order
	Choices []Choice `json:"choices"`

	// TotalCost is the quantity-weighted cost of the assignment
	TotalCost decimal.Decimal `json:"totalCost"`

	// TotalPreference is the summed quantity-weighted preference
	TotalPreference float64 `json:"totalPreference"`

	// Budget is the budget the assignment was chosen under
	Budget decimal.Decimal `json:"budget"`

	// Approximate reports that the solver had to coarsen costs
	Approximate bool `json:"approximate"`
}

// Choice is the chosen level of one constituent
type Choice struct {
	Constituent string          `json:"constituent"`
	Level       int             `json:"level"`
	Ceiling     int             `json:"ceiling"`
	Quantity    int64           `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Cost        decimal.Decimal `json:"cost"`
	Weight      float64         `json:"weight"`
	Preference  float64         `json:"preference"`
}

// Remaining returns the unspent part of the budget
func (s *Solution) Remaining() decimal.Decimal {
	return s.Budget.Sub(s.TotalCost)
}

// Map converts a solver solution back to named levels.
// weights holds each constituent's preference vector in catalogue order,
// and sol.Choices indexes into those vectors.
func Map(cat *catalogue.Catalogue, req *request.Request, weights [][]float64, sol *knapsack.Solution) *Solution {
	out := &Solution{
		Assignment:  make(map[string]int, cat.Len()),
		Choices:     make([]Choice, 0, cat.Len()),
		TotalCost:   decimal.Zero,
		Budget:      req.Budget,
		Approximate: sol.Approximate,
	}

	for i, con := range cat.Constituents() {
		cr := req.Constituents[con.Name]
		idx := sol.Choices[i]
		level := idx + 1

		rate, _ := cat.Rate(con.Name, level)
		quantity := decimal.NewFromInt(cr.Quantity)
		weight := weights[i][idx]

		choice := Choice{
			Constituent: con.Name,
			Level:       level,
			Ceiling:     cr.QualityCeiling,
			Quantity:    cr.Quantity,
			Rate:        rate,
			Cost:        rate.Mul(quantity),
			Weight:      weight,
			Preference:  float64(cr.Quantity) * weight,
		}

		out.Assignment[con.Name] = level
		out.Choices = append(out.Choices, choice)
		out.TotalCost = out.TotalCost.Add(choice.Cost)
		out.TotalPreference += choice.Preference
	}
	return out
}
