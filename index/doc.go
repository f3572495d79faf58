// Package index implements the persistent lookup-index cache that keeps
// resource queries against large packages fast.
//
// A package (zip archive) is recognised across runs by its Identity, a digest
// of its file name, size, creation and modification times. The Catalog maps
// identity keys to the directory holding that package's index, and is
// persisted as a small line-oriented text file.
//
// Indexes are built in two steps:
//   - Build walks a package's central directory once and returns a LookupTable
//     of (path, modification time) entries. It touches no files.
//   - Write persists a LookupTable into a badger database; Open reopens it
//     read-only for exact-path lookups.
//
// Index directories are sharded as <indexDir>/<bucket>/<identity key>, where the
// bucket is derived from a color hash of the key, so a large mod collection
// never piles thousands of directories into one place.
//
// A Pool shares open indexes between concurrent readers.
package index
