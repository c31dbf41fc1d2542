package engine

import (
	"context"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"housecost/core/catalogue"
	"housecost/core/preference"
	"housecost/core/request"
	"housecost/internal/config"
	"housecost/internal/errors"
	"housecost/internal/metrics"
)

func buildCatalogue(t *testing.T, rates map[string][]int64, order ...string) *catalogue.Catalogue {
	t.Helper()
	var cons []catalogue.Constituent
	for _, name := range order {
		var levels []catalogue.QualityLevel
		for i, r := range rates[name] {
			levels = append(levels, catalogue.QualityLevel{Level: i + 1, Rate: decimal.NewFromInt(r)})
		}
		cons = append(cons, catalogue.Constituent{Name: name, Levels: levels})
	}
	cat, err := catalogue.New(cons)
	require.NoError(t, err)
	return cat
}

func flooringCatalogue(t *testing.T) *catalogue.Catalogue {
	return buildCatalogue(t, map[string][]int64{"Flooring": {10, 20, 35}}, "Flooring")
}

func flooringRequest(budget int64) *request.Request {
	return &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
		},
		Budget: decimal.NewFromInt(budget),
	}
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(preference.DefaultModel(), EngineConfig{}, opts...)
}

func TestScenarioCeilingAffordable(t *testing.T) {
	e := newTestEngine()
	res, err := e.Optimize(context.Background(), flooringCatalogue(t), flooringRequest(3500))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{"Flooring": 3}, res.Solution.Assignment)
	assert.True(t, res.Solution.TotalCost.Equal(decimal.NewFromInt(3500)), "total cost %s", res.Solution.TotalCost)
	assert.Equal(t, 100.0, res.Solution.TotalPreference)
	assert.False(t, res.Solution.Approximate)
	assert.NotEmpty(t, res.ID)
}

func TestScenarioFallsBackOneLevel(t *testing.T) {
	for _, policy := range []preference.Policy{preference.PolicyPriority, preference.PolicyFixed} {
		t.Run(string(policy), func(t *testing.T) {
			e := NewEngine(preference.Model{Policy: policy, FixedBase: 2}, EngineConfig{})
			res, err := e.Optimize(context.Background(), flooringCatalogue(t), flooringRequest(2500))
			require.NoError(t, err)

			assert.Equal(t, 2, res.Solution.Assignment["Flooring"])
			assert.True(t, res.Solution.TotalCost.Equal(decimal.NewFromInt(2000)))
			// base 2 under both policies for priority 2
			assert.Equal(t, 50.0, res.Solution.TotalPreference)
		})
	}
}

func TestScenarioInfeasible(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20},
		"Walls":    {30, 40},
	}, "Flooring", "Walls")
	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Flooring": {Quantity: 100, QualityCeiling: 2, Priority: 2},
			"Walls":    {Quantity: 100, QualityCeiling: 2, Priority: 2},
		},
		Budget: decimal.NewFromInt(3999),
	}

	rec := metrics.NewRecorder()
	e := newTestEngine(WithMetrics(rec))
	res, err := e.Optimize(context.Background(), cat, req)

	assert.Nil(t, res)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.TypeInfeasible))
	e2, _ := errors.As(err)
	assert.Equal(t, "4000", e2.Context["minimumCost"])
	assert.Equal(t, 1.0, testutil.ToFloat64(rec.OptimizationsCounter(metrics.OutcomeInfeasible)))

	req.Budget = decimal.NewFromInt(4000)
	res, err = e.Optimize(context.Background(), cat, req)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Flooring": 1, "Walls": 1}, res.Solution.Assignment)
}

func TestScenarioFixedCeilingOne(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20, 35},
		"Plumbing": {500, 900},
	}, "Flooring", "Plumbing")

	for _, budget := range []int64{5000 + 1000, 5000 + 2000, 5000 + 3500, 1_000_000} {
		req := &request.Request{
			Constituents: map[string]request.ConstituentRequest{
				"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
				"Plumbing": {Quantity: 10, QualityCeiling: 1, Priority: 9},
			},
			Budget: decimal.NewFromInt(budget),
		}
		res, err := newTestEngine().Optimize(context.Background(), cat, req)
		require.NoError(t, err, "budget %d", budget)

		plumbing := res.Solution.Choices[1]
		assert.Equal(t, "Plumbing", plumbing.Constituent)
		assert.Equal(t, 1, plumbing.Level)
		assert.True(t, plumbing.Cost.Equal(decimal.NewFromInt(5000)))
		assert.Equal(t, 10.0, plumbing.Preference)
		assert.True(t, res.Solution.TotalCost.LessThanOrEqual(req.Budget))
	}
}

func TestZeroQuantityReportsCeiling(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20, 35},
		"Paint":    {5, 9, 14},
	}, "Flooring", "Paint")
	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
			"Paint":    {Quantity: 0, QualityCeiling: 2, Priority: 2},
		},
		Budget: decimal.NewFromInt(1000),
	}
	res, err := newTestEngine().Optimize(context.Background(), cat, req)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Solution.Assignment["Paint"])
	assert.True(t, res.Solution.Choices[1].Cost.IsZero())
}

func TestValidationRunsBeforeSolve(t *testing.T) {
	cat := flooringCatalogue(t)

	tests := []struct {
		name string
		req  *request.Request
		want errors.Type
	}{
		{
			name: "ceiling above catalogue",
			req: &request.Request{
				Constituents: map[string]request.ConstituentRequest{"Flooring": {Quantity: 1, QualityCeiling: 4}},
				Budget:       decimal.NewFromInt(10),
			},
			want: errors.TypeInvalidLevel,
		},
		{
			name: "missing constituent",
			req: &request.Request{
				Constituents: map[string]request.ConstituentRequest{"Walls": {Quantity: 1, QualityCeiling: 1}},
				Budget:       decimal.NewFromInt(10),
			},
			want: errors.TypeMissingConstituent,
		},
		{
			name: "non-positive budget",
			req: &request.Request{
				Constituents: map[string]request.ConstituentRequest{"Flooring": {Quantity: 1, QualityCeiling: 1}},
				Budget:       decimal.Zero,
			},
			want: errors.TypeInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newTestEngine().Optimize(context.Background(), cat, tt.req)
			assert.Equal(t, tt.want, errors.TypeOf(err))
		})
	}
}

func TestOptimizeIsIdempotent(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20, 35},
		"Walls":    {50, 60, 75, 90},
		"Roofing":  {100, 100, 180},
	}, "Flooring", "Walls", "Roofing")
	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 3},
			"Walls":    {Quantity: 40, QualityCeiling: 4, Priority: 2},
			"Roofing":  {Quantity: 12, QualityCeiling: 3, Priority: 5},
		},
		Budget: decimal.NewFromInt(7000),
	}

	e := newTestEngine()
	first, err := e.Optimize(context.Background(), cat, req)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := e.Optimize(context.Background(), cat, req)
			if assert.NoError(t, err) {
				assert.Equal(t, first.Solution.Assignment, again.Solution.Assignment)
				assert.True(t, first.Solution.TotalCost.Equal(again.Solution.TotalCost))
				assert.Equal(t, first.Fingerprint, again.Fingerprint)
			}
		}()
	}
	wg.Wait()
}

func TestOptimizeMonotoneInBudget(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20, 35},
		"Walls":    {50, 60, 75, 90},
	}, "Flooring", "Walls")

	last := -1.0
	for budget := int64(3000); budget <= 8000; budget += 250 {
		req := &request.Request{
			Constituents: map[string]request.ConstituentRequest{
				"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
				"Walls":    {Quantity: 40, QualityCeiling: 4, Priority: 3},
			},
			Budget: decimal.NewFromInt(budget),
		}
		res, err := newTestEngine().Optimize(context.Background(), cat, req)
		if errors.IsType(err, errors.TypeInfeasible) {
			require.Less(t, last, 0.0, "infeasible at %d after a feasible budget", budget)
			continue
		}
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.Solution.TotalPreference, last, "budget %d", budget)
		last = res.Solution.TotalPreference
	}
}

func TestCoarseBudgetsNeverLosePreference(t *testing.T) {
	// A's top level costs twice the default solver table
	cat := buildCatalogue(t, map[string][]int64{
		"A": {1, 400001},
		"B": {1, 4},
	}, "A", "B")

	last := -1.0
	for budget := int64(399990); budget <= 400006; budget++ {
		req := &request.Request{
			Constituents: map[string]request.ConstituentRequest{
				"A": {Quantity: 1, QualityCeiling: 2, Priority: 9},
				"B": {Quantity: 1, QualityCeiling: 2, Priority: 2},
			},
			Budget: decimal.NewFromInt(budget),
		}
		res, err := newTestEngine().Optimize(context.Background(), cat, req)
		require.NoError(t, err, "budget %d", budget)

		sol := res.Solution
		assert.True(t, sol.TotalCost.LessThanOrEqual(req.Budget), "budget %d cost %s", budget, sol.TotalCost)
		require.GreaterOrEqual(t, sol.TotalPreference, last, "budget %d lost preference", budget)
		last = sol.TotalPreference

		if budget >= 400005 {
			assert.Equal(t, map[string]int{"A": 2, "B": 2}, sol.Assignment)
			assert.False(t, sol.Approximate)
		} else {
			assert.True(t, sol.Approximate, "budget %d", budget)
		}
	}
}

type recorderFunc func(ctx context.Context, r *Result) error

func (f recorderFunc) Record(ctx context.Context, r *Result) error { return f(ctx, r) }

func TestHistoryRecordsSolvedRuns(t *testing.T) {
	var recorded []*Result
	e := newTestEngine(WithHistory(recorderFunc(func(_ context.Context, r *Result) error {
		recorded = append(recorded, r)
		return nil
	})))

	res, err := e.Optimize(context.Background(), flooringCatalogue(t), flooringRequest(3500))
	require.NoError(t, err)
	_, err = e.Optimize(context.Background(), flooringCatalogue(t), flooringRequest(1))
	require.Error(t, err)

	require.Len(t, recorded, 1)
	assert.Equal(t, res.ID, recorded[0].ID)
	assert.Positive(t, recorded[0].Duration)
}

func TestCancelledContextIsClassified(t *testing.T) {
	cat := buildCatalogue(t, map[string][]int64{
		"Flooring": {10, 20, 35},
		"Walls":    {50, 60, 75},
	}, "Flooring", "Walls")
	req := &request.Request{
		Constituents: map[string]request.ConstituentRequest{
			"Flooring": {Quantity: 100, QualityCeiling: 3, Priority: 2},
			"Walls":    {Quantity: 40, QualityCeiling: 3, Priority: 2},
		},
		Budget: decimal.NewFromInt(5000),
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine().Optimize(ctx, cat, req)
	assert.True(t, errors.IsType(err, errors.TypeInternal))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Preference.Policy = "fixed"
	cfg.Preference.FixedBase = 3
	cfg.Optimizer.MaxCapacity = 1000

	e, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, preference.PolicyFixed, e.preferences.Policy)
	assert.Equal(t, 3.0, e.preferences.FixedBase)
	assert.Equal(t, 1000, e.config.MaxCapacity)

	cfg.Preference.Policy = "linear"
	_, err = FromConfig(cfg)
	assert.True(t, errors.IsType(err, errors.TypeConfig))
}
