// Package version provides version information and build metadata for h5seek.
//
// Version Information Sources:
//   - Compile-time variables (Version, Commit, Date) set via -ldflags
//   - Runtime build info from debug.ReadBuildInfo()
//   - Fallback defaults for development builds
//
// The version is printed by the CLI and recorded in the metadata of every
// package index.
//
// Build Integration:
//
//	-ldflags "-X github.com/dendrascience/h5seek/version.Version=v1.0.0 -X github.com/dendrascience/h5seek/version.Commit=abc123 -X github.com/dendrascience/h5seek/version.Date=2023-01-01T00:00:00Z"
package version
