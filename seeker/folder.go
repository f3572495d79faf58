package seeker

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"
)

// FolderBackend serves loose files below a directory.
type FolderBackend struct {
	root string
}

// NewFolderBackend returns a backend rooted at dir.
func NewFolderBackend(dir string) *FolderBackend {
	return &FolderBackend{root: dir}
}

// Root returns the directory the backend serves.
func (b *FolderBackend) Root() string {
	return b.root
}

func (b *FolderBackend) String() string {
	return "folder:" + b.root
}

// local maps p onto the filesystem. Paths that would leave the root are
// never served.
func (b *FolderBackend) local(p string) (string, bool) {
	p = Normalize(p)
	if p == "" {
		return b.root, true
	}
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", false
	}
	return filepath.Join(b.root, filepath.FromSlash(p)), true
}

// ModTime returns the mtime of the regular file at p, or the zero time.
func (b *FolderBackend) ModTime(p string) (time.Time, error) {
	path, ok := b.local(p)
	if !ok || Normalize(p) == "" {
		return time.Time{}, nil
	}
	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist), isNotDir(err):
		return time.Time{}, nil
	case err != nil:
		return time.Time{}, fmt.Errorf("%s: stat %s: %w", b, p, err)
	case !info.Mode().IsRegular():
		return time.Time{}, nil
	}
	return info.ModTime(), nil
}

// ReadLines reads the file at p.
func (b *FolderBackend) ReadLines(p string) ([]string, error) {
	path, ok := b.local(p)
	if !ok || Normalize(p) == "" {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b, err)
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil {
		return nil, fmt.Errorf("%s: %w", b, err)
	} else if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	lines, err := ReadLines(f)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", b, p, err)
	}
	return lines, nil
}

// List returns the regular files and directories directly below dir.
func (b *FolderBackend) List(dir string) ([]DirEntry, error) {
	path, ok := b.local(dir)
	if !ok {
		return nil, nil
	}
	entries, err := os.ReadDir(path)
	if errors.Is(err, fs.ErrNotExist) || isNotDir(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: list %s: %w", b, dir, err)
	}
	out := make([]DirEntry, 0, len(entries))
	for _, e := range entries {
		switch {
		case e.IsDir():
			out = append(out, DirEntry{Name: e.Name(), Dir: true})
		case e.Type().IsRegular():
			out = append(out, DirEntry{Name: e.Name()})
		}
	}
	slices.SortFunc(out, func(a, b DirEntry) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

// isNotDir reports the error stat gives when a path element is a file.
func isNotDir(err error) bool {
	return errors.Is(err, syscall.ENOTDIR)
}
