package archive

import "errors"

// ErrCorruptArchive is returned when a package exists but cannot be read as a
// zip archive.
var ErrCorruptArchive = errors.New("corrupt archive")
