package seeker

import (
	"fmt"
	"strings"
	"time"

	"github.com/dendrascience/h5seek/archive"
	"github.com/dendrascience/h5seek/index"
)

// IndexedArchiveBackend answers from a prebuilt index of a package. Lookups
// are exact key matches; the package itself is only opened to read content,
// jumping straight to the entry's recorded position.
type IndexedArchiveBackend struct {
	path string
	ix   *index.Index
}

// NewIndexedArchiveBackend serves the package at path through ix.
// The backend does not own ix.
func NewIndexedArchiveBackend(path string, ix *index.Index) *IndexedArchiveBackend {
	return &IndexedArchiveBackend{path: path, ix: ix}
}

// Path returns the package file.
func (b *IndexedArchiveBackend) Path() string {
	return b.path
}

func (b *IndexedArchiveBackend) String() string {
	return "index:" + b.path
}

// ModTime returns the indexed timestamp of p, or the zero time.
func (b *IndexedArchiveBackend) ModTime(p string) (time.Time, error) {
	name := Normalize(p)
	if name == "" {
		return time.Time{}, nil
	}
	e, ok, err := b.ix.Lookup(name)
	if err != nil || !ok {
		return time.Time{}, err
	}
	return e.Modified, nil
}

// ReadLines reads the indexed entry p from the package.
func (b *IndexedArchiveBackend) ReadLines(p string) ([]string, error) {
	name := Normalize(p)
	if name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	e, ok, err := b.ix.Lookup(name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}

	zrc, err := archive.Open(b.path)
	if err != nil {
		return nil, err
	}
	defer zrc.Close()

	if e.Ordinal < 0 || e.Ordinal >= len(zrc.File) {
		return nil, fmt.Errorf("%w: %s: entry %s at %d is out of range", index.ErrCorruptIndex, b.ix.Dir(), name, e.Ordinal)
	}
	f := zrc.File[e.Ordinal]
	if archive.CleanName(f.Name) != name {
		return nil, fmt.Errorf("%w: %s: entry %d is %q, want %q", index.ErrCorruptIndex, b.ix.Dir(), e.Ordinal, f.Name, name)
	}
	return readEntry(b.path, f)
}

// List returns the names directly below dir, read from the index alone.
func (b *IndexedArchiveBackend) List(dir string) ([]DirEntry, error) {
	children, err := b.ix.Children(strings.TrimSuffix(Normalize(dir), "/"))
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(children))
	for _, c := range children {
		seen[c.Name] = seen[c.Name] || c.Dir
	}
	return sortedEntries(seen), nil
}
