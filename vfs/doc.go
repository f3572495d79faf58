// Package vfs exposes a resolver as a read-only FUSE filesystem.
//
// The mounted tree is the merged view of a game installation: every logical
// resource path resolves to its newest version across loose folders and
// packages, and directories list the union of all backends. Nothing can be
// written; all mutating operations are left unimplemented.
package vfs
