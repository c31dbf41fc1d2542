// Package metrics exposes Prometheus instrumentation for the optimizer and
// the catalogue store.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for optimization results
const (
	OutcomeSolved     = "solved"
	OutcomeInfeasible = "infeasible"
	OutcomeRejected   = "rejected"
	OutcomeError      = "error"
)

// Recorder owns a registry and the collectors registered on it.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry *prometheus.Registry

	optimizations    *prometheus.CounterVec
	duration         prometheus.Histogram
	dpCells          prometheus.Histogram
	catalogueReloads *prometheus.CounterVec
	catalogueEntries prometheus.Gauge
}

// NewRecorder creates a recorder with its own registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		optimizations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "housecost",
			Name:      "optimizations_total",
			Help:      "Optimization calls by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "housecost",
			Name:      "optimization_duration_seconds",
			Help:      "Wall-clock time spent per optimization.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		dpCells: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "housecost",
			Name:      "dp_cells",
			Help:      "Groups times discretized capacity evaluated per solve.",
			Buckets:   prometheus.ExponentialBuckets(10, 10, 8),
		}),
		catalogueReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "housecost",
			Name:      "catalogue_reloads_total",
			Help:      "Catalogue reload attempts by result.",
		}, []string{"result"}),
		catalogueEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "housecost",
			Name:      "catalogue_constituents",
			Help:      "Constituents in the active catalogue snapshot.",
		}),
	}

	r.registry.MustRegister(
		r.optimizations,
		r.duration,
		r.dpCells,
		r.catalogueReloads,
		r.catalogueEntries,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveOptimization records one optimization call
func (r *Recorder) ObserveOptimization(outcome string, elapsed time.Duration, cells int64) {
	if r == nil {
		return
	}
	r.optimizations.WithLabelValues(outcome).Inc()
	r.duration.Observe(elapsed.Seconds())
	if cells > 0 {
		r.dpCells.Observe(float64(cells))
	}
}

// ObserveCatalogueReload records a reload attempt and the resulting size
func (r *Recorder) ObserveCatalogueReload(ok bool, constituents int) {
	if r == nil {
		return
	}
	if !ok {
		r.catalogueReloads.WithLabelValues("failure").Inc()
		return
	}
	r.catalogueReloads.WithLabelValues("success").Inc()
	r.catalogueEntries.Set(float64(constituents))
}

// OptimizationsCounter returns the counter for one outcome
func (r *Recorder) OptimizationsCounter(outcome string) prometheus.Counter {
	return r.optimizations.WithLabelValues(outcome)
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
