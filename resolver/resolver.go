package resolver

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/index"
	"github.com/dendrascience/h5seek/seeker"
	"github.com/prometheus/client_golang/prometheus"
)

// Config describes a Resolver.
type Config struct {
	Root        string // game installation directory
	Layout      Layout // zero value means DefaultLayout
	CatalogPath string // catalog file; created on the first index build
	IndexDir    string // directory holding the sharded package indexes
	Logger      *log.Logger
	Registerer  prometheus.Registerer // nil leaves metrics unregistered
}

// Resource is a resolved resource with its content.
type Resource struct {
	Path    string
	Lines   []string
	Backend string
	ModTime time.Time
}

// Source names the backend that wins for a path, without reading it.
type Source struct {
	Path    string
	Backend string
	ModTime time.Time
}

// Resolver arbitrates between the backends of one game installation.
// Resolve, Stat and List may be called concurrently, also while indexes are
// being built or flushed.
type Resolver struct {
	root     GameRoot
	layout   Layout
	indexDir string
	catalog  *index.Catalog
	pool     *index.Pool
	logger   *log.Logger
	metrics  *metrics

	// mu is held shared by readers and exclusively while index directories
	// are swapped or deleted.
	mu sync.RWMutex
	// maint serializes BuildIndexes, Flush and PruneCatalog.
	maint sync.Mutex

	umu       sync.Mutex
	unindexed map[string]struct{}
}

// New validates the game root, loads the catalog and records which packages
// have no usable index yet. It builds nothing.
func New(cfg Config) (*Resolver, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().WithPrefix("resolver")
	}
	root, err := NewGameRoot(cfg.Root)
	if err != nil {
		return nil, err
	}
	layout := cfg.Layout
	if len(layout.Folders) == 0 && len(layout.Archives) == 0 {
		layout = DefaultLayout()
	}
	if err := layout.Validate(); err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	if cfg.CatalogPath == "" || cfg.IndexDir == "" {
		return nil, errors.New("resolver: catalog path and index directory are required")
	}
	catalogPath, err := filepath.Abs(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	indexDir, err := filepath.Abs(cfg.IndexDir)
	if err != nil {
		return nil, err
	}
	catalog, err := index.LoadCatalog(catalogPath, logger.WithPrefix("catalog"))
	if err != nil {
		return nil, err
	}

	r := &Resolver{
		root:      root,
		layout:    layout,
		indexDir:  indexDir,
		catalog:   catalog,
		pool:      index.NewPool(logger.WithPrefix("index")),
		logger:    logger,
		metrics:   newMetrics(cfg.Registerer),
		unindexed: make(map[string]struct{}),
	}
	if err := r.Detect(); err != nil {
		return nil, err
	}
	return r, nil
}

// Root returns the game root.
func (r *Resolver) Root() GameRoot {
	return r.root
}

// Layout returns the layout in use.
func (r *Resolver) Layout() Layout {
	return r.layout
}

// Catalog returns the index catalog.
func (r *Resolver) Catalog() *index.Catalog {
	return r.catalog
}

// IndexDir returns the directory holding package indexes.
func (r *Resolver) IndexDir() string {
	return r.indexDir
}

// Close releases every open index.
func (r *Resolver) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pool.Close()
}

// Archives returns every configured package currently on disk, in
// consultation order.
func (r *Resolver) Archives() ([]string, error) {
	var out []string
	for _, spec := range r.layout.Archives {
		dir := r.root.Join(spec.Dir)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("list archives in %s: %w", dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !spec.Matches(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			// follows symlinks; only regular files can be packages
			if fi, err := os.Stat(path); err != nil || !fi.Mode().IsRegular() {
				continue
			}
			out = append(out, path)
		}
	}
	return out, nil
}

// Detect re-enumerates the configured packages and records every one whose
// index is missing from the catalog or from disk.
func (r *Resolver) Detect() error {
	archives, err := r.Archives()
	if err != nil {
		return err
	}
	pending := make(map[string]struct{})
	for _, path := range archives {
		id, err := index.IdentityOf(path)
		if err != nil {
			r.logger.Warn("cannot identify package", "archive", path, "err", err)
			continue
		}
		loc, ok := r.catalog.Lookup(id.Key())
		if !ok || !isDir(r.catalog.Resolve(loc)) {
			pending[path] = struct{}{}
		}
	}

	r.umu.Lock()
	r.unindexed = pending
	r.umu.Unlock()
	r.metrics.unindexed.Set(float64(len(pending)))
	r.logger.Debug("detected packages", "archives", len(archives), "unindexed", len(pending))
	return nil
}

// Unindexed returns the packages currently resolved by scanning, sorted.
func (r *Resolver) Unindexed() []string {
	r.umu.Lock()
	defer r.umu.Unlock()
	out := make([]string, 0, len(r.unindexed))
	for p := range r.unindexed {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

func (r *Resolver) markUnindexed(path string) {
	r.umu.Lock()
	defer r.umu.Unlock()
	if _, ok := r.unindexed[path]; !ok {
		r.unindexed[path] = struct{}{}
		r.metrics.unindexed.Set(float64(len(r.unindexed)))
	}
}

func (r *Resolver) markIndexed(path string) {
	r.umu.Lock()
	defer r.umu.Unlock()
	delete(r.unindexed, path)
	r.metrics.unindexed.Set(float64(len(r.unindexed)))
}

// backendFor picks the indexed or scanning backend for the package at path.
// It returns nil when the package vanished since it was listed.
func (r *Resolver) backendFor(path string) (seeker.Backend, error) {
	id, err := index.IdentityOf(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	loc, ok := r.catalog.Lookup(id.Key())
	if !ok {
		r.markUnindexed(path)
		return seeker.NewArchiveBackend(path), nil
	}
	ix, err := r.pool.Get(r.catalog.Resolve(loc))
	if errors.Is(err, index.ErrIndexMissing) {
		r.logger.Warn("cataloged index is gone, scanning", "archive", path, "index", loc)
		r.markUnindexed(path)
		return seeker.NewArchiveBackend(path), nil
	}
	if err != nil {
		return nil, err
	}
	return seeker.NewIndexedArchiveBackend(path, ix), nil
}

// each calls fn for every backend in consultation order and stops at the
// first error. Callers hold r.mu.
func (r *Resolver) each(p string, fn func(seeker.Backend) error) error {
	for _, dir := range r.layout.Folders {
		if err := fn(seeker.NewFolderBackend(r.root.Join(dir))); err != nil {
			return err
		}
	}
	archives, err := r.Archives()
	if err != nil {
		return &ResolveError{Path: p, Backend: "archives", Err: err}
	}
	for _, path := range archives {
		b, err := r.backendFor(path)
		if err != nil {
			return &ResolveError{Path: p, Backend: "index:" + path, Err: err}
		}
		if b == nil {
			continue
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func kind(b seeker.Backend) string {
	switch b.(type) {
	case *seeker.FolderBackend:
		return "folder"
	case *seeker.IndexedArchiveBackend:
		return "index"
	default:
		return "archive"
	}
}

// stat runs the arbitration: a backend wins only with a strictly newer
// timestamp, so the first backend reporting the newest time keeps it.
func (r *Resolver) stat(p string) (seeker.Backend, time.Time, error) {
	name := seeker.Normalize(p)
	var (
		best   time.Time
		winner seeker.Backend
	)
	err := r.each(p, func(b seeker.Backend) error {
		r.metrics.lookups.WithLabelValues(kind(b)).Inc()
		mt, err := b.ModTime(name)
		if err != nil {
			return &ResolveError{Path: p, Backend: b.String(), Err: err}
		}
		if mt.After(best) {
			best, winner = mt, b
		}
		return nil
	})
	if err != nil {
		return nil, time.Time{}, err
	}
	if winner == nil {
		return nil, time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return winner, best, nil
}

// Stat reports which backend would serve p.
func (r *Resolver) Stat(p string) (Source, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, mt, err := r.stat(p)
	if err != nil {
		return Source{}, err
	}
	return Source{Path: seeker.Normalize(p), Backend: b.String(), ModTime: mt}, nil
}

// Resolve returns the newest version of p.
func (r *Resolver) Resolve(p string) (Resource, error) {
	start := time.Now()
	res, err := r.resolve(p)
	r.metrics.resolveDuration.Observe(time.Since(start).Seconds())
	switch {
	case err == nil:
		r.metrics.resolves.WithLabelValues("found").Inc()
	case errors.Is(err, ErrNotFound):
		r.metrics.resolves.WithLabelValues("not_found").Inc()
	default:
		r.metrics.resolves.WithLabelValues("error").Inc()
		r.logger.Error("resolve failed", "path", p, "err", err)
	}
	return res, err
}

func (r *Resolver) resolve(p string) (Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, mt, err := r.stat(p)
	if err != nil {
		return Resource{}, err
	}
	name := seeker.Normalize(p)
	lines, err := b.ReadLines(name)
	if err != nil {
		return Resource{}, &ResolveError{Path: p, Backend: b.String(), Err: err}
	}
	r.logger.Debug("resolved", "path", name, "backend", b.String(), "modified", mt)
	return Resource{Path: name, Lines: lines, Backend: b.String(), ModTime: mt}, nil
}

// List returns the union of the names directly below dir across every
// backend, sorted. A name that is a directory anywhere is a directory.
func (r *Resolver) List(dir string) ([]seeker.DirEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	dir = strings.TrimSuffix(seeker.Normalize(dir), "/")

	seen := make(map[string]bool)
	err := r.each(dir, func(b seeker.Backend) error {
		l, ok := b.(seeker.Lister)
		if !ok {
			return nil
		}
		entries, err := l.List(dir)
		if err != nil {
			return &ResolveError{Path: dir, Backend: b.String(), Err: err}
		}
		for _, e := range entries {
			seen[e.Name] = seen[e.Name] || e.Dir
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out := make([]seeker.DirEntry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, seeker.DirEntry{Name: name, Dir: isDir})
	}
	slices.SortFunc(out, func(a, b seeker.DirEntry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
