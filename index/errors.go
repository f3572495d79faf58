package index

import "errors"

// Sentinel errors for package index.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// Index errors
	ErrCorruptIndex = errors.New("corrupt index")
	ErrIndexMissing = errors.New("index directory missing")

	// Catalog errors
	ErrCatalogLine = errors.New("malformed catalog line")

	// Identity errors
	ErrNotRegular = errors.New("expected regular file")
)
