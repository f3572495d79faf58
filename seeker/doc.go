// Package seeker defines the storage backends a resource can be served from.
//
// A Backend answers two questions about a logical resource path: when was it
// last modified (the zero time meaning "not here"), and what are its lines.
// Three implementations cover a game installation:
//   - FolderBackend serves loose files below a directory.
//   - ArchiveBackend scans a zip package's central directory on every call.
//   - IndexedArchiveBackend answers from a prebuilt index and only opens the
//     package to read content.
//
// Backends that can enumerate directories also implement Lister.
package seeker
