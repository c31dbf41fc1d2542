// Package engine provides the API-primary optimization engine.
// The HTTP server and the CLI are thin wrappers around it.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"housecost/core/catalogue"
	"housecost/core/knapsack"
	"housecost/core/mapper"
	"housecost/core/preference"
	"housecost/core/request"
	"housecost/internal/config"
	"housecost/internal/errors"
	"housecost/internal/metrics"
)

// Engine is the primary API for optimization.
// It holds no per-request state and is safe for concurrent use.
type Engine struct {
	preferences preference.Model
	config      EngineConfig

	history RunRecorder
	metrics *metrics.Recorder
	logger  *zap.Logger
}

// EngineConfig configures the engine
type EngineConfig struct {
	// MaxCapacity bounds the solver's discretized budget dimension
	MaxCapacity int

	// Timeout is the wall-clock guard for a single optimization; 0 disables it
	Timeout time.Duration
}

// RunRecorder persists completed optimizations
type RunRecorder interface {
	Record(ctx context.Context, result *Result) error
}

// Option configures an Engine
type Option func(*Engine)

// WithHistory records every solved optimization
func WithHistory(h RunRecorder) Option {
	return func(e *Engine) {
		e.history = h
	}
}

// WithMetrics attaches a metrics recorder
func WithMetrics(m *metrics.Recorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates a new optimization engine
func NewEngine(preferences preference.Model, config EngineConfig, opts ...Option) *Engine {
	e := &Engine{
		preferences: preferences,
		config:      config,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FromConfig builds an engine from the preference and optimizer sections of cfg
func FromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	policy, err := preference.ParsePolicy(cfg.Preference.Policy)
	if err != nil {
		return nil, err
	}
	model := preference.Model{Policy: policy, FixedBase: cfg.Preference.FixedBase}
	return NewEngine(model, EngineConfig{
		MaxCapacity: cfg.Optimizer.MaxCapacity,
		Timeout:     cfg.Optimizer.Timeout,
	}, opts...), nil
}

// Result is the output of an optimization
type Result struct {
	// ID identifies the run
	ID string `json:"id"`

	// Solution is the named assignment with totals
	Solution *mapper.Solution `json:"solution"`

	// Catalogue references the snapshot used (for reproducibility)
	Catalogue CatalogueReference `json:"catalogue"`

	// Request is the validated input
	Request *request.Request `json:"request"`

	// Fingerprint identifies the request content
	Fingerprint string `json:"fingerprint"`

	// Policy is the preference policy applied
	Policy preference.Policy `json:"policy"`

	// Solver statistics
	Capacity int   `json:"capacity"`
	Cells    int64 `json:"cells"`

	// Timing
	OptimizedAt time.Time     `json:"optimizedAt"`
	Duration    time.Duration `json:"duration"`
}

// CatalogueReference is an immutable reference to the catalogue snapshot used
type CatalogueReference struct {
	Hash     string    `json:"hash"`
	Source   string    `json:"source,omitempty"`
	LoadedAt time.Time `json:"loadedAt"`
}

// Optimize chooses one quality level per constituent within the budget.
//
// Validation errors (INVALID_LEVEL, MISSING_CONSTITUENT, INVALID_REQUEST)
// abort before the solver runs. A budget below the cheapest selection
// yields INFEASIBLE, never a partial result.
func (e *Engine) Optimize(ctx context.Context, cat *catalogue.Catalogue, req *request.Request) (*Result, error) {
	start := time.Now()

	result, err := e.optimize(ctx, cat, req)
	elapsed := time.Since(start)

	var cells int64
	if result != nil {
		result.Duration = elapsed
		cells = result.Cells
	}
	e.metrics.ObserveOptimization(outcome(err), elapsed, cells)

	if err != nil {
		e.logger.Info("optimization failed",
			zap.String("type", string(errors.TypeOf(err))),
			zap.Error(err),
			zap.Duration("duration", elapsed))
		return nil, err
	}

	e.logger.Info("optimization solved",
		zap.String("id", result.ID),
		zap.String("catalogue", result.Catalogue.Hash),
		zap.String("total_cost", result.Solution.TotalCost.String()),
		zap.Float64("total_preference", result.Solution.TotalPreference),
		zap.Bool("approximate", result.Solution.Approximate),
		zap.Int64("cells", result.Cells),
		zap.Duration("duration", elapsed))

	if e.history != nil {
		if err := e.history.Record(ctx, result); err != nil {
			e.logger.Warn("failed to record optimization", zap.String("id", result.ID), zap.Error(err))
		}
	}
	return result, nil
}

func (e *Engine) optimize(ctx context.Context, cat *catalogue.Catalogue, req *request.Request) (*Result, error) {
	if cat == nil {
		return nil, errors.MalformedCatalogue("catalogue is required", nil)
	}
	if err := request.Validate(cat, req); err != nil {
		return nil, err
	}

	groups, weights, err := e.buildGroups(cat, req)
	if err != nil {
		return nil, err
	}

	if e.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Timeout)
		defer cancel()
	}

	sol, err := knapsack.Solve(ctx, groups, req.Budget, knapsack.Options{MaxCapacity: e.config.MaxCapacity})
	switch {
	case errors.Is(err, knapsack.ErrInfeasible):
		minimum := cheapest(groups)
		return nil, errors.Infeasible(fmt.Sprintf("budget %s is less than the minimum cost %s", req.Budget, minimum)).
			WithContext("minimumCost", minimum.String())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return nil, errors.Internal("optimization aborted", err)
	case err != nil:
		return nil, errors.Internal("solver failed", err)
	}

	return &Result{
		ID:       uuid.New().String(),
		Solution: mapper.Map(cat, req, weights, sol),
		Catalogue: CatalogueReference{
			Hash:     cat.Hash.Short(),
			Source:   cat.Source,
			LoadedAt: cat.LoadedAt,
		},
		Request:     req,
		Fingerprint: req.Fingerprint().Short(),
		Policy:      e.preferences.Policy,
		Capacity:    sol.Capacity,
		Cells:       sol.Cells,
		OptimizedAt: time.Now().UTC(),
	}, nil
}

// buildGroups turns each constituent into a solver group of levels
// 1..ceiling, in catalogue order
func (e *Engine) buildGroups(cat *catalogue.Catalogue, req *request.Request) ([]knapsack.Group, [][]float64, error) {
	groups := make([]knapsack.Group, 0, cat.Len())
	weights := make([][]float64, 0, cat.Len())

	for _, con := range cat.Constituents() {
		cr := req.Constituents[con.Name]
		vec, err := e.preferences.Vector(con.Name, cr.QualityCeiling, cr.Priority, con.LevelCount())
		if err != nil {
			return nil, nil, err
		}

		quantity := decimal.NewFromInt(cr.Quantity)
		items := make([]knapsack.Item, len(vec))
		for i, w := range vec {
			lvl, _ := con.Level(i + 1)
			items[i] = knapsack.Item{
				Cost:  lvl.Rate.Mul(quantity),
				Value: float64(cr.Quantity) * w,
			}
		}
		groups = append(groups, knapsack.Group{Items: items})
		weights = append(weights, vec)
	}
	return groups, weights, nil
}

func cheapest(groups []knapsack.Group) decimal.Decimal {
	total := decimal.Zero
	for _, g := range groups {
		lowest := g.Items[0].Cost
		for _, it := range g.Items[1:] {
			lowest = decimal.Min(lowest, it.Cost)
		}
		total = total.Add(lowest)
	}
	return total
}

func outcome(err error) string {
	if err == nil {
		return metrics.OutcomeSolved
	}
	switch errors.TypeOf(err) {
	case errors.TypeInfeasible:
		return metrics.OutcomeInfeasible
	case errors.TypeInvalidLevel, errors.TypeMissingConstituent, errors.TypeInvalidRequest, errors.TypeRequestTooLarge:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

