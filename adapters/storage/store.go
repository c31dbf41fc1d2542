// Package storage provides the storage adapter for optimization history.
// Supports multiple backends: memory, file, SQLite.
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"housecost/core/diff"
	"housecost/core/engine"
	"housecost/internal/errors"
)

// Backend is a storage backend type
type Backend string

const (
	BackendNone   Backend = "none"
	BackendMemory Backend = "memory"
	BackendFile   Backend = "file"
	BackendSQLite Backend = "sqlite"
)

// Store is the storage interface
type Store interface {
	// Save stores a run
	Save(ctx context.Context, run *StoredRun) error

	// Get retrieves a run by ID
	Get(ctx context.Context, id string) (*StoredRun, error)

	// List lists runs, newest first
	List(ctx context.Context, filter *ListFilter) ([]*StoredRun, error)

	// Delete removes a run
	Delete(ctx context.Context, id string) error

	// Close closes the store
	Close() error
}

// StoredRun is a persisted optimization
type StoredRun struct {
	// ID is the run identifier assigned by the engine
	ID string `json:"id"`

	// Fingerprint identifies the request content
	Fingerprint string `json:"fingerprint"`

	// CatalogueHash identifies the catalogue snapshot
	CatalogueHash string `json:"catalogue_hash"`

	// Policy is the preference policy applied
	Policy string `json:"policy"`

	Budget          decimal.Decimal `json:"budget"`
	TotalCost       decimal.Decimal `json:"total_cost"`
	TotalPreference float64         `json:"total_preference"`
	Approximate     bool            `json:"approximate"`

	// Assignment maps constituents to chosen levels
	Assignment map[string]int `json:"assignment"`

	// Duration of the optimization
	Duration time.Duration `json:"duration"`

	// CreatedAt timestamp
	CreatedAt time.Time `json:"created_at"`

	// RawResult is the full engine result
	RawResult json.RawMessage `json:"raw_result,omitempty"`
}

// Outcome returns the run as one side of a diff
func (r *StoredRun) Outcome() diff.Outcome {
	return diff.Outcome{
		ID:              r.ID,
		Assignment:      r.Assignment,
		TotalCost:       r.TotalCost,
		TotalPreference: r.TotalPreference,
	}
}

// ListFilter filters run listing
type ListFilter struct {
	Fingerprint   string
	CatalogueHash string
	Since         time.Time
	Until         time.Time
	Limit         int
	Offset        int
}

func (f *ListFilter) matches(run *StoredRun) bool {
	if f == nil {
		return true
	}
	if f.Fingerprint != "" && run.Fingerprint != f.Fingerprint {
		return false
	}
	if f.CatalogueHash != "" && run.CatalogueHash != f.CatalogueHash {
		return false
	}
	if !f.Since.IsZero() && run.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && run.CreatedAt.After(f.Until) {
		return false
	}
	return true
}

// page sorts newest first and applies offset/limit
func (f *ListFilter) page(runs []*StoredRun) []*StoredRun {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAt.Equal(runs[j].CreatedAt) {
			return runs[i].CreatedAt.After(runs[j].CreatedAt)
		}
		return runs[i].ID < runs[j].ID
	})
	if f == nil {
		return runs
	}
	if f.Offset > 0 {
		if f.Offset >= len(runs) {
			return []*StoredRun{}
		}
		runs = runs[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(runs) {
		runs = runs[:f.Limit]
	}
	return runs
}

// FromResult converts an engine result into a stored run
func FromResult(result *engine.Result) (*StoredRun, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &StoredRun{
		ID:              result.ID,
		Fingerprint:     result.Fingerprint,
		CatalogueHash:   result.Catalogue.Hash,
		Policy:          string(result.Policy),
		Budget:          result.Solution.Budget,
		TotalCost:       result.Solution.TotalCost,
		TotalPreference: result.Solution.TotalPreference,
		Approximate:     result.Solution.Approximate,
		Assignment:      result.Solution.Assignment,
		Duration:        result.Duration,
		CreatedAt:       result.OptimizedAt,
		RawResult:       raw,
	}, nil
}

// Recorder adapts a Store to the engine's run recorder
type Recorder struct {
	Store Store
}

// Record persists an engine result
func (r Recorder) Record(ctx context.Context, result *engine.Result) error {
	run, err := FromResult(result)
	if err != nil {
		return err
	}
	return r.Store.Save(ctx, run)
}

var _ engine.RunRecorder = Recorder{}

// DefaultPath is where a backend keeps its runs when no path is configured:
// a directory of JSON files for BackendFile, a database file for
// BackendSQLite, and nothing for the rest.
func DefaultPath(backend Backend) string {
	dir := ".housecost"
	if home, err := os.UserHomeDir(); err == nil {
		dir = filepath.Join(home, dir)
	}
	switch backend {
	case BackendFile:
		return filepath.Join(dir, "runs")
	case BackendSQLite:
		return filepath.Join(dir, "history.db")
	default:
		return ""
	}
}

// StoreFactory creates stores by backend type; an empty path means
// DefaultPath. BackendNone yields a nil Store and no error.
func StoreFactory(backend Backend, path string) (Store, error) {
	if path == "" {
		path = DefaultPath(backend)
	}
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		return NewMemoryStore(), nil
	case BackendFile:
		return NewFileStore(path)
	case BackendSQLite:
		return NewSQLiteStore(path)
	default:
		return nil, errors.Config(fmt.Sprintf("unsupported history backend: %s", backend), nil)
	}
}

func notFound(id string) error {
	return errors.NotFound("run", id)
}
