package catalogue

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce coalesces editor save bursts into one reload
const DefaultDebounce = 250 * time.Millisecond

// Watcher reloads a Store when its catalogue file changes.
// The parent directory is watched so atomic rename-over saves are seen.
type Watcher struct {
	store    *Store
	debounce time.Duration
	logger   *zap.Logger

	fsWatcher *fsnotify.Watcher
	target    string

	mu      sync.Mutex
	timer   *time.Timer
	reloads chan struct{}
}

// NewWatcher creates a watcher for the store's backing file
func NewWatcher(store *Store, debounce time.Duration, logger *zap.Logger) (*Watcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	target, err := filepath.Abs(store.Path())
	if err != nil {
		return nil, err
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsWatcher.Add(filepath.Dir(target)); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return &Watcher{
		store:     store,
		debounce:  debounce,
		logger:    logger,
		fsWatcher: fsWatcher,
		target:    target,
		reloads:   make(chan struct{}, 1),
	}, nil
}

// Run processes file events until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsWatcher.Close()
	defer w.stopTimer()

	w.logger.Info("watching catalogue", zap.String("path", w.target))

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("catalogue watch error", zap.Error(err))
		case <-w.reloads:
			// failures are logged by Reload and the old snapshot stays live
			_, _ = w.store.Reload()
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	name, err := filepath.Abs(event.Name)
	if err != nil || name != w.target {
		return
	}
	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Rename) {
		return
	}

	w.logger.Debug("catalogue file event", zap.String("op", event.Op.String()))

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		select {
		case w.reloads <- struct{}{}:
		default:
		}
	})
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
}
