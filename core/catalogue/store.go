package catalogue

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"housecost/internal/errors"
	"housecost/internal/metrics"
)

// Store holds the active catalogue snapshot.
// Readers take a snapshot with Current and use it for a whole request;
// Reload parses a fresh catalogue and swaps it in only on success, so
// readers never observe a partially loaded table.
type Store struct {
	path    string
	current atomic.Pointer[Catalogue]
	reload  sync.Mutex
	logger  *zap.Logger
	metrics *metrics.Recorder
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithLogger sets the store logger
func WithLogger(logger *zap.Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder
func WithMetrics(m *metrics.Recorder) StoreOption {
	return func(s *Store) {
		s.metrics = m
	}
}

// NewStore creates a store backed by a catalogue file. Nothing is read
// until Reload is called.
func NewStore(path string, opts ...StoreOption) *Store {
	s := &Store{
		path:   path,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewStaticStore creates a store serving a fixed catalogue
func NewStaticStore(cat *Catalogue) *Store {
	s := NewStore("")
	s.current.Store(cat)
	return s
}

// Path returns the backing file
func (s *Store) Path() string {
	return s.path
}

// Current returns the active snapshot
func (s *Store) Current() (*Catalogue, error) {
	cat := s.current.Load()
	if cat == nil {
		return nil, errors.MalformedCatalogue("catalogue not loaded", nil)
	}
	return cat, nil
}

// Reload re-reads the backing file. On failure the previous snapshot stays
// active and the error is returned.
func (s *Store) Reload() (*Catalogue, error) {
	if s.path == "" {
		return s.Current()
	}

	s.reload.Lock()
	defer s.reload.Unlock()

	cat, report, err := LoadFile(s.path)
	if err != nil {
		s.metrics.ObserveCatalogueReload(false, 0)
		s.logger.Error("catalogue reload failed, keeping previous snapshot",
			zap.String("path", s.path),
			zap.Error(err))
		return nil, err
	}
	s.logReport(report)

	if prev := s.current.Load(); prev != nil && prev.Hash == cat.Hash {
		s.logger.Debug("catalogue unchanged", zap.String("hash", cat.Hash.Short()))
		s.metrics.ObserveCatalogueReload(true, prev.Len())
		return prev, nil
	}

	s.current.Store(cat)
	s.metrics.ObserveCatalogueReload(true, cat.Len())
	s.logger.Info("catalogue loaded",
		zap.String("path", s.path),
		zap.String("hash", cat.Hash.Short()),
		zap.Int("constituents", cat.Len()))
	return cat, nil
}

// Replace swaps in a catalogue built elsewhere
func (s *Store) Replace(cat *Catalogue) {
	s.reload.Lock()
	defer s.reload.Unlock()
	s.current.Store(cat)
	s.metrics.ObserveCatalogueReload(true, cat.Len())
}

func (s *Store) logReport(report *LoadReport) {
	if report == nil {
		return
	}
	for _, row := range report.Skipped {
		s.logger.Debug("catalogue row skipped", zap.Int("line", row.Line), zap.String("reason", row.Reason))
	}
	for _, row := range report.Duplicates {
		s.logger.Warn("duplicate catalogue row ignored", zap.Int("line", row.Line), zap.String("reason", row.Reason))
	}
	for _, r := range report.Rejected {
		s.logger.Warn("catalogue constituent rejected", zap.String("constituent", r.Name), zap.String("reason", r.Reason))
	}
	for _, w := range report.Warnings {
		s.logger.Warn("non-monotonic catalogue rates", zap.String("detail", w))
	}
}
