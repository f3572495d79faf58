package seeker

import (
	"archive/zip"
	"errors"
	"fmt"
	"io/fs"
	"slices"
	"strings"
	"time"

	"github.com/dendrascience/h5seek/archive"
)

// ArchiveBackend serves entries of a zip package by scanning its central
// directory. The package is opened on every call and never kept open, so a
// package replaced between calls is always read fresh.
type ArchiveBackend struct {
	path string
}

// NewArchiveBackend returns a scanning backend for the package at path.
func NewArchiveBackend(path string) *ArchiveBackend {
	return &ArchiveBackend{path: path}
}

// Path returns the package file.
func (b *ArchiveBackend) Path() string {
	return b.path
}

func (b *ArchiveBackend) String() string {
	return "archive:" + b.path
}

// open returns nil, nil when the package file has disappeared.
func (b *ArchiveBackend) open() (*zip.ReadCloser, error) {
	zrc, err := archive.Open(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return zrc, err
}

// ModTime returns the timestamp of the first entry named p, or the zero time.
func (b *ArchiveBackend) ModTime(p string) (time.Time, error) {
	name := Normalize(p)
	if name == "" {
		return time.Time{}, nil
	}
	zrc, err := b.open()
	if err != nil || zrc == nil {
		return time.Time{}, err
	}
	defer zrc.Close()

	f, _ := archive.Find(&zrc.Reader, name)
	if f == nil {
		return time.Time{}, nil
	}
	return archive.ModTime(&f.FileHeader), nil
}

// ReadLines reads the first entry named p.
func (b *ArchiveBackend) ReadLines(p string) ([]string, error) {
	name := Normalize(p)
	zrc, err := b.open()
	if err != nil {
		return nil, err
	}
	if zrc == nil || name == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	defer zrc.Close()

	f, _ := archive.Find(&zrc.Reader, name)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return readEntry(b.path, f)
}

// List returns the names directly below dir. Directory markers are ignored,
// so a directory only shows up when it holds a file.
func (b *ArchiveBackend) List(dir string) ([]DirEntry, error) {
	dir = strings.TrimSuffix(Normalize(dir), "/")
	zrc, err := b.open()
	if err != nil || zrc == nil {
		return nil, err
	}
	defer zrc.Close()

	seen := make(map[string]bool)
	for _, f := range zrc.File {
		if archive.IsDir(f) {
			continue
		}
		child, isDir, ok := archive.Child(archive.CleanName(f.Name), dir)
		if !ok {
			continue
		}
		seen[child] = seen[child] || isDir
	}
	return sortedEntries(seen), nil
}

func readEntry(path string, f *zip.File) ([]string, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", archive.ErrCorruptArchive, path, f.Name, err)
	}
	defer rc.Close()
	lines, err := ReadLines(rc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %s: %w", archive.ErrCorruptArchive, path, f.Name, err)
	}
	return lines, nil
}

func sortedEntries(seen map[string]bool) []DirEntry {
	out := make([]DirEntry, 0, len(seen))
	for name, isDir := range seen {
		out = append(out, DirEntry{Name: name, Dir: isDir})
	}
	slices.SortFunc(out, func(a, b DirEntry) int { return strings.Compare(a.Name, b.Name) })
	return out
}
