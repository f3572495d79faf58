package resolver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dendrascience/h5seek/archive"
	"github.com/dendrascience/h5seek/index"
	"github.com/google/uuid"
)

const tmpPrefix = ".tmp-"

// Progress describes how far BuildIndexes has come.
type Progress struct {
	Archive  string // package being indexed
	Number   int    // 1-based position of the package in this run
	Archives int    // packages to index in this run
	Done     int    // entries processed in the current package
	Total    int    // entries in the current package
}

// ProgressFunc receives Progress updates, once per processed entry.
type ProgressFunc func(Progress)

// BuildIndexes indexes every package recorded as unindexed. Packages are
// built one after another without blocking readers; each finished index is
// moved into place under the exclusive lock and registered in the catalog,
// which is saved once at the end.
//
// A failing package is logged, stays unindexed and does not stop the others.
// All failures are joined into the returned error. Cancelling ctx stops
// between entries and never leaves a partial index behind.
func (r *Resolver) BuildIndexes(ctx context.Context, progress ProgressFunc) error {
	r.maint.Lock()
	defer r.maint.Unlock()

	pending := r.Unindexed()
	var errs []error
	for i, path := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		report := func(done, total int) {
			if progress != nil {
				progress(Progress{Archive: path, Number: i + 1, Archives: len(pending), Done: done, Total: total})
			}
		}
		err := r.buildOne(ctx, path, report)
		if err != nil && ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err != nil {
			r.metrics.indexBuilds.WithLabelValues("error").Inc()
			r.logger.Error("indexing failed", "archive", path, "err", err)
			errs = append(errs, fmt.Errorf("index %s: %w", path, err))
			continue
		}
	}

	if err := r.catalog.Save(); err != nil {
		errs = append(errs, fmt.Errorf("save catalog: %w", err))
	}
	return errors.Join(errs...)
}

func (r *Resolver) buildOne(ctx context.Context, path string, progress index.ProgressFunc) error {
	id, err := index.IdentityOf(path)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Info("package vanished before indexing", "archive", path)
		r.markIndexed(path)
		return nil
	}
	if err != nil {
		return err
	}
	key := id.Key()
	target := index.LocationFor(r.indexDir, key)
	if loc, ok := r.catalog.Lookup(key); ok && isDir(r.catalog.Resolve(loc)) {
		r.markIndexed(path)
		return nil
	}

	zrc, err := archive.Open(path)
	if err != nil {
		return err
	}
	lt, err := index.Build(ctx, &zrc.Reader, progress, r.logger.WithPrefix("index"))
	zrc.Close()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(r.indexDir, 0o755); err != nil {
		return err
	}
	tmp := filepath.Join(r.indexDir, tmpPrefix+uuid.NewString())
	defer os.RemoveAll(tmp)
	if err := index.Write(tmp, lt, lt.GenerateMetadata(path, id), r.logger.WithPrefix("index")); err != nil {
		return err
	}

	if after, err := index.IdentityOf(path); err != nil || after.Key() != key {
		r.logger.Warn("package changed while indexing, will retry", "archive", path)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.pool.Evict(target); err != nil {
		r.logger.Warn("closing replaced index", "index", target, "err", err)
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(tmp, target); err != nil {
		return err
	}
	r.catalog.Register(key, r.catalog.LocationOf(target))
	r.markIndexed(path)

	r.metrics.indexBuilds.WithLabelValues("ok").Inc()
	r.metrics.indexEntries.Add(float64(lt.Len()))
	r.logger.Info("indexed package", "archive", path, "entries", lt.Len(), "index", target)
	return nil
}

// Flush removes every index directory below the index directory that the
// catalog does not reference, leftovers of interrupted builds included, and
// drops catalog entries whose index has disappeared. It returns the removed
// directories.
func (r *Resolver) Flush(ctx context.Context) ([]string, error) {
	r.maint.Lock()
	defer r.maint.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	referenced := make(map[string]struct{})
	changed := false
	for key, dir := range r.catalog.Locations() {
		if !isDir(dir) {
			r.logger.Info("dropping catalog entry without index", "key", key, "index", dir)
			r.catalog.Remove(key)
			changed = true
			continue
		}
		referenced[absPath(dir)] = struct{}{}
	}
	// Directories holding a referenced index survive even when they do not
	// look like buckets, as after the index directory moved to a parent.
	root := absPath(r.indexDir)
	holders := make(map[string]struct{})
	for dir := range referenced {
		for p := filepath.Dir(dir); p != root && p != filepath.Dir(p); p = filepath.Dir(p) {
			if !strings.HasPrefix(p, root+string(filepath.Separator)) {
				break
			}
			holders[p] = struct{}{}
		}
	}
	protected := func(dir string) bool {
		_, ref := referenced[absPath(dir)]
		_, held := holders[absPath(dir)]
		return ref || held
	}

	var (
		removed []string
		errs    []error
	)
	buckets, err := os.ReadDir(r.indexDir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list %s: %w", r.indexDir, err)
	}
	remove := func(dir string) {
		if err := r.pool.Evict(dir); err != nil {
			r.logger.Warn("closing flushed index", "index", dir, "err", err)
		}
		if err := os.RemoveAll(dir); err != nil {
			errs = append(errs, err)
			return
		}
		removed = append(removed, dir)
	}

	for _, b := range buckets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if !b.IsDir() {
			continue
		}
		bucket := filepath.Join(r.indexDir, b.Name())
		if _, ok := referenced[absPath(bucket)]; ok {
			continue
		}
		if strings.HasPrefix(b.Name(), tmpPrefix) && !protected(bucket) {
			remove(bucket)
			continue
		}
		children, err := os.ReadDir(bucket)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		kept := 0
		for _, c := range children {
			dir := filepath.Join(bucket, c.Name())
			if protected(dir) {
				kept++
				continue
			}
			remove(dir)
		}
		if kept == 0 && !protected(bucket) {
			if err := os.Remove(bucket); err != nil && !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, err)
			}
		}
	}

	if changed {
		if err := r.catalog.Save(); err != nil {
			errs = append(errs, fmt.Errorf("save catalog: %w", err))
		}
		if err := r.Detect(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(removed) > 0 {
		r.logger.Info("flushed indexes", "removed", len(removed))
	}
	return removed, errors.Join(errs...)
}

// PruneCatalog forgets every cataloged identity that matches no package
// currently on disk, typically packages that were replaced or deleted.
// A following Flush removes their indexes. It returns the dropped keys.
func (r *Resolver) PruneCatalog() ([]string, error) {
	r.maint.Lock()
	defer r.maint.Unlock()

	archives, err := r.Archives()
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(archives))
	for _, path := range archives {
		id, err := index.IdentityOf(path)
		if err != nil {
			r.logger.Warn("cannot identify package", "archive", path, "err", err)
			continue
		}
		live[id.Key()] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	var dropped []string
	for _, key := range r.catalog.Keys() {
		if _, ok := live[key]; ok {
			continue
		}
		r.catalog.Remove(key)
		dropped = append(dropped, key)
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	if err := r.catalog.Save(); err != nil {
		return dropped, fmt.Errorf("save catalog: %w", err)
	}
	r.logger.Info("pruned catalog", "dropped", len(dropped))
	return dropped, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return filepath.Clean(p)
}
