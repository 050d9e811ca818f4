// Package watch reloads annotation resources when their source files change.
// The hierarchy and mappings themselves stay immutable: a change triggers a
// full rebuild off to the side, and the new resource set is swapped in
// atomically. A failed rebuild keeps the previous set serving.
package watch

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/semtag/mapping"
	"github.com/c360studio/semtag/vocabulary"
)

// Resources is one immutable generation of the shared annotation inputs.
type Resources struct {
	Hierarchy *vocabulary.Hierarchy
	Mappings  map[string]*mapping.Mapping
}

// Loader builds a fresh resource generation from the configured sources.
type Loader func() (*Resources, error)

const defaultDebounce = 500 * time.Millisecond

// Watcher owns the current resource generation and refreshes it on file
// changes. Current is safe to call from any goroutine.
type Watcher struct {
	paths    []string
	load     Loader
	debounce time.Duration
	logger   *slog.Logger

	current atomic.Pointer[Resources]
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets how long to wait for further changes before reloading.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Watcher) {
		w.logger = logger
	}
}

// New creates a Watcher over the given source files. The initial load must
// succeed: malformed startup data is fatal, no partial resources are exposed.
func New(paths []string, load Loader, opts ...Option) (*Watcher, error) {
	if load == nil {
		return nil, fmt.Errorf("watch: loader is required")
	}

	w := &Watcher{
		paths:    paths,
		load:     load,
		debounce: defaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	initial, err := load()
	if err != nil {
		return nil, err
	}
	w.current.Store(initial)
	return w, nil
}

// Current returns the live resource generation.
func (w *Watcher) Current() *Resources {
	return w.current.Load()
}

// Reload rebuilds the resource set and swaps it in. On failure the previous
// generation keeps serving and the error is returned for logging.
func (w *Watcher) Reload() error {
	next, err := w.load()
	if err != nil {
		return err
	}
	w.current.Store(next)
	return nil
}

// Run watches the source files until ctx is canceled. Events are debounced
// so a multi-file update triggers a single rebuild.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	for _, path := range w.paths {
		if err := watcher.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}

	var pending *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug("resource file changed", slog.String("path", event.Name))
			if pending == nil {
				pending = time.NewTimer(w.debounce)
				fire = pending.C
			} else {
				pending.Reset(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", slog.String("error", err.Error()))
		case <-fire:
			pending = nil
			fire = nil
			if err := w.Reload(); err != nil {
				w.logger.Warn("resource reload failed, keeping previous generation",
					slog.String("error", err.Error()))
				continue
			}
			w.logger.Info("resources reloaded",
				slog.Int("hierarchy_nodes", w.Current().Hierarchy.Size()))
		}
	}
}
