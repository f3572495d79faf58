// Package archive provides low-level access to the zip packages a game ships
// its resources in (.pak patches, .h5u user modifications).
//
// It owns the rules every other package must agree on when it looks inside a
// package:
//   - entry names and requested paths are cleaned the same way (CleanName)
//   - entry timestamps come from the per-entry date/time field and are only
//     trusted to whole seconds (ModTime)
//   - the first entry with a given name wins when a package carries duplicates
//     (Find)
//
// Packages are opened with archive/zip and the klauspost/compress deflate
// implementation, which is noticeably faster on the large packages the base
// game ships.
package archive
