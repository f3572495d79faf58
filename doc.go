// Package main provides the h5seek command-line interface.
//
// h5seek resolves the resources of a game installation whose content is
// layered over a loose data folder, .pak patches and .h5u user mods, where
// the copy with the newest timestamp wins. Package indexes cached on disk
// make lookups fast; packages without an index are scanned.
//
// The main binary supports multiple subcommands:
//   - resolve: Print the winning copy of resources
//   - ls: List the merged resource tree
//   - mount: Mount the merged tree read-only over FUSE
//   - index, flush, validate, watch: Maintain the index cache
//   - seed, config, version: Utilities
package main
