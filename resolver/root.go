package resolver

import (
	"fmt"
	"os"
	"path/filepath"
)

// GameRoot is the validated installation directory. It holds at least bin
// and data subdirectories.
type GameRoot struct {
	path string
}

// NewGameRoot validates path and returns it as an absolute GameRoot.
func NewGameRoot(path string) (GameRoot, error) {
	if path == "" {
		return GameRoot{}, fmt.Errorf("%w: empty path", ErrInvalidRoot)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return GameRoot{}, fmt.Errorf("%w: %s: %w", ErrInvalidRoot, path, err)
	}
	for _, sub := range []string{"bin", "data"} {
		info, err := os.Stat(filepath.Join(abs, sub))
		if err != nil {
			return GameRoot{}, fmt.Errorf("%w: %s: %w", ErrInvalidRoot, abs, err)
		}
		if !info.IsDir() {
			return GameRoot{}, fmt.Errorf("%w: %s: %s is not a directory", ErrInvalidRoot, abs, sub)
		}
	}
	return GameRoot{path: abs}, nil
}

// Path returns the absolute root directory.
func (g GameRoot) Path() string {
	return g.path
}

// Join resolves a slash-separated path relative to the root.
func (g GameRoot) Join(rel string) string {
	return filepath.Join(g.path, filepath.FromSlash(rel))
}

func (g GameRoot) String() string {
	return g.path
}
