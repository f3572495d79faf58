package resolver

import (
	"errors"
	"fmt"

	"github.com/dendrascience/h5seek/seeker"
)

var (
	ErrInvalidRoot = errors.New("invalid game root")
	ErrNotFound    = seeker.ErrNotFound
)

// ResolveError reports a backend failure while resolving Path. Resolution
// stops at the first failing backend; nothing falls through to the others.
type ResolveError struct {
	Path    string
	Backend string
	Err     error
}

func (e *ResolveError) Error() string {
	return fmt.Sprintf("resolve %s: %s: %v", e.Path, e.Backend, e.Err)
}

func (e *ResolveError) Unwrap() error {
	return e.Err
}
