package index

import (
	"archive/zip"
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dendrascience/h5seek/archive"
)

// ProgressFunc receives the number of entries processed so far and the total
// number of entries in the package.
type ProgressFunc func(done, total int)

// Build enumerates every entry of a package exactly once and returns its
// lookup table. Directory markers are dropped; entries whose name cannot be
// requested are logged and skipped; when a name repeats, the first occurrence
// is kept, matching what a linear scan of the package would find.
//
// Build reads nothing but the central directory and writes nothing. It stops
// between entries once ctx is done.
func Build(ctx context.Context, r *zip.Reader, progress ProgressFunc, logger *log.Logger) (LookupTable, error) {
	if logger == nil {
		logger = log.Default()
	}
	total := len(r.File)
	lt := LookupTable{entries: make([]LookupEntry, 0, total)}
	seen := make(map[string]struct{}, total)

	for i, f := range r.File {
		if err := ctx.Err(); err != nil {
			return LookupTable{}, err
		}
		if progress != nil {
			progress(i+1, total)
		}
		if archive.IsDir(f) {
			continue
		}

		name := archive.CleanName(f.Name)
		if name == "" || strings.ContainsRune(name, 0) {
			logger.Warn("skipping unreadable entry", "ordinal", i, "name", f.Name)
			continue
		}
		if _, dup := seen[name]; dup {
			logger.Debug("skipping duplicate entry", "ordinal", i, "name", name)
			continue
		}
		seen[name] = struct{}{}

		lt.Add(LookupEntry{
			FileSize: int64(f.UncompressedSize64),
			Modified: archive.ModTime(&f.FileHeader),
			Name:     name,
			Ordinal:  i,
		})
	}
	return lt, nil
}
