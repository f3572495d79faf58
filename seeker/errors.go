package seeker

import "errors"

// ErrNotFound is returned when content is requested from a backend that does
// not hold the resource.
var ErrNotFound = errors.New("resource not found")
