// Package resolver serves a game's logical resource paths from a layered set
// of backends: loose folders of the installation plus the zip packages found
// in its archive directories (.pak patches, .h5u user mods).
//
// Every request consults each backend exactly once, in declaration order, and
// the most recently modified version wins. Ties go to the backend seen first,
// so loose folders beat packages and earlier packages beat later ones.
//
// Packages with an index in the catalog are answered through that index;
// the rest are scanned. Indexing never changes an answer, only its cost.
// BuildIndexes fills in missing indexes and Flush removes the ones the
// catalog no longer references.
package resolver
