package api

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"housecost/adapters/storage"
	"housecost/core/catalogue"
	"housecost/core/engine"
	"housecost/internal/config"
	"housecost/internal/metrics"
)

// Run wires the catalogue store, history and engine described by cfg and
// serves until ctx is cancelled. A catalogue that fails to load does not stop
// the server: the costing endpoints report it until a reload succeeds.
func Run(ctx context.Context, cfg *config.Config, version string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	rec := metrics.NewRecorder()

	store := catalogue.NewStore(cfg.Catalogue.Path,
		catalogue.WithLogger(logger.Named("catalogue")),
		catalogue.WithMetrics(rec))
	if _, err := store.Reload(); err != nil {
		logger.Error("initial catalogue load failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if cfg.Catalogue.Watch {
		watcher, err := catalogue.NewWatcher(store, cfg.Catalogue.Debounce, logger.Named("watcher"))
		if err != nil {
			logger.Warn("catalogue watching disabled", zap.Error(err))
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := watcher.Run(ctx); err != nil {
					logger.Error("catalogue watcher stopped", zap.Error(err))
				}
			}()
		}
	}

	backend, historyPath := storage.Backend(cfg.History.Backend), cfg.History.Path
	if historyPath == "" {
		historyPath = storage.DefaultPath(backend)
	}
	history, err := storage.StoreFactory(backend, historyPath)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
		logger.Info("run history enabled",
			zap.String("backend", cfg.History.Backend),
			zap.String("path", historyPath))
	}

	opts := []engine.Option{
		engine.WithMetrics(rec),
		engine.WithLogger(logger.Named("engine")),
	}
	if history != nil {
		opts = append(opts, engine.WithHistory(storage.Recorder{Store: history}))
	}
	eng, err := engine.FromConfig(cfg, opts...)
	if err != nil {
		return err
	}

	server := NewServer(cfg.Server, Deps{
		Catalogue: store,
		Engine:    eng,
		History:   history,
		Metrics:   rec,
		Logger:    logger.Named("http"),
		Version:   version,
	})

	err = server.ListenAndServe(ctx)
	cancel()
	wg.Wait()
	return err
}
