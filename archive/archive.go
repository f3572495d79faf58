package archive

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/klauspost/compress/flate"
)

// Open opens the package at path for reading.
// A missing package is reported with an error matching fs.ErrNotExist so
// callers can tell "gone" from "broken"; every other failure wraps
// ErrCorruptArchive.
func Open(path string) (*zip.ReadCloser, error) {
	zrc, err := zip.OpenReader(path)
	switch {
	case err == nil:
	case errors.Is(err, zip.ErrInsecurePath) && zrc != nil:
		// game packages routinely use backslash separators
	case errors.Is(err, fs.ErrNotExist):
		return nil, err
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptArchive, path, err)
	}
	zrc.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
	return zrc, nil
}

// CleanName reduces a resource path or entry name to the form used for
// comparisons: forward slashes only and no leading slash.
func CleanName(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	return strings.TrimLeft(name, "/")
}

// ModTime returns the modification time recorded for an entry.
// Packages store a DOS wall clock without a zone, so the wall clock is read
// as local time, and anything below a second is dropped.
func ModTime(fh *zip.FileHeader) time.Time {
	m := fh.Modified
	return time.Date(m.Year(), m.Month(), m.Day(), m.Hour(), m.Minute(), m.Second(), 0, time.Local)
}

// Find scans the central directory for the first file entry whose cleaned
// name equals name. It returns the entry and its position, or nil and -1.
func Find(r *zip.Reader, name string) (*zip.File, int) {
	for i, f := range r.File {
		if IsDir(f) {
			continue
		}
		if CleanName(f.Name) == name {
			return f, i
		}
	}
	return nil, -1
}

// Child reports the first element of name below dir ("" is the root) and
// whether further elements follow it, which makes the child a directory.
func Child(name, dir string) (child string, isDir, ok bool) {
	if dir != "" {
		if !strings.HasPrefix(name, dir+"/") {
			return "", false, false
		}
		name = name[len(dir)+1:]
	}
	if name == "" {
		return "", false, false
	}
	child, _, isDir = strings.Cut(name, "/")
	return child, isDir, child != ""
}

// IsDir reports whether the entry is a directory marker.
func IsDir(f *zip.File) bool {
	return strings.HasSuffix(CleanName(f.Name), "/") || f.FileInfo().IsDir()
}
