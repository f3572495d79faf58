package seeker

import (
	"time"

	"github.com/dendrascience/h5seek/archive"
)

// Backend is one place a resource can come from.
type Backend interface {
	// ModTime returns the modification time of p, or the zero time when the
	// backend does not hold p.
	ModTime(p string) (time.Time, error)
	// ReadLines returns the content of p split after every '\n', terminators
	// kept. It returns ErrNotFound when the backend does not hold p.
	ReadLines(p string) ([]string, error)
	// String describes the backend, e.g. "folder:/game/data".
	String() string
}

// DirEntry is one name below a listed directory.
type DirEntry struct {
	Name string
	Dir  bool
}

// Lister is implemented by backends that can enumerate a directory.
// Listing an unknown directory yields no entries and no error.
type Lister interface {
	List(dir string) ([]DirEntry, error)
}

// Normalize reduces a requested path to the form backends compare against:
// backslashes become slashes and leading slashes are dropped.
func Normalize(p string) string {
	return archive.CleanName(p)
}
