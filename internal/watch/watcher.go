// Package watch keeps package indexes current while the game is being
// modded: it monitors the archive directories and, once changes settle,
// re-detects, indexes and flushes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/resolver"
	"github.com/fsnotify/fsnotify"
)

const defaultDebounce = 2 * time.Second

// Config holds the parameters for a Watcher.
type Config struct {
	Root   string          // game root
	Layout resolver.Layout // archive directories and extensions to watch

	// Debounce is the quiet period after the last event before OnChange
	// runs. Zero or negative values fall back to two seconds.
	Debounce time.Duration

	// OnChange receives the changed package paths, sorted.
	OnChange func(ctx context.Context, changed []string) error

	Logger *log.Logger
}

// Watcher monitors archive directories and fires a debounced callback when
// packages appear, change or disappear.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	logger   *log.Logger
	debounce time.Duration
	specs    map[string][]resolver.ArchiveSpec // absolute dir -> specs
	started  atomic.Bool
}

// New creates a Watcher. Archive directories that do not exist yet are
// picked up when they are created below the game root.
func New(cfg Config) (*Watcher, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("watch")
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve root: %w", err)
	}

	specs := make(map[string][]resolver.ArchiveSpec)
	for _, s := range cfg.Layout.Archives {
		dir := filepath.Join(root, filepath.FromSlash(s.Dir))
		specs[dir] = append(specs[dir], s)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		logger:   logger,
		debounce: debounce,
		specs:    specs,
	}
	if err := fsw.Add(root); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch: add %s: %w", root, err)
	}
	for _, dir := range w.Dirs() {
		w.maybeAdd(dir)
	}
	return w, nil
}

// Dirs returns the archive directories being watched for, sorted.
func (w *Watcher) Dirs() []string {
	return slices.Sorted(maps.Keys(w.specs))
}

func (w *Watcher) maybeAdd(dir string) {
	if err := w.fsw.Add(dir); err != nil {
		w.logger.Debug("not watching archive directory", "dir", dir, "err", err)
		return
	}
	w.logger.Debug("watching archive directory", "dir", dir)
}

// relevant reports whether an event concerns a package. A newly created
// archive directory counts too, it may arrive already filled.
func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if _, ok := w.specs[evt.Name]; ok {
		if evt.Has(fsnotify.Create) {
			w.maybeAdd(evt.Name)
		}
		return true
	}
	for _, s := range w.specs[filepath.Dir(evt.Name)] {
		if s.Matches(filepath.Base(evt.Name)) {
			return true
		}
	}
	return false
}

// Run blocks until ctx is cancelled, dispatching debounced callbacks. The
// callback runs on the event loop, so events arriving meanwhile are
// coalesced into the next call. Run must be called exactly once.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return errors.New("watch: Run called more than once")
	}
	defer w.fsw.Close()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("watch: event channel closed")
			}
			if !w.relevant(evt) {
				continue
			}
			w.logger.Debug("package event", "path", evt.Name, "op", evt.Op.String())
			pending[evt.Name] = struct{}{}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Info("packages changed", "count", len(changed))
			if w.cfg.OnChange != nil {
				if err := w.cfg.OnChange(ctx, changed); err != nil {
					w.logger.Error("reindex failed", "err", err)
				}
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("watch: error channel closed")
			}
			if isFatal(err) {
				return fmt.Errorf("watch: %w", err)
			}
			w.logger.Warn("fsnotify error", "err", err)
		}
	}
}

// isFatal reports resource exhaustion, after which the watcher cannot
// recover: inotify watch limits and file descriptor limits.
func isFatal(err error) bool {
	return errors.Is(err, syscall.ENOSPC) ||
		errors.Is(err, syscall.EMFILE) ||
		errors.Is(err, syscall.ENFILE)
}

// Reindex returns an OnChange callback that brings r's indexes up to date:
// it forgets replaced packages, indexes new ones and removes stale indexes.
func Reindex(r *resolver.Resolver, progress resolver.ProgressFunc) func(context.Context, []string) error {
	return func(ctx context.Context, _ []string) error {
		var errs []error
		if _, err := r.PruneCatalog(); err != nil {
			errs = append(errs, err)
		}
		if err := r.Detect(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		if err := r.BuildIndexes(ctx, progress); err != nil {
			errs = append(errs, err)
		}
		if _, err := r.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
		return errors.Join(errs...)
	}
}
