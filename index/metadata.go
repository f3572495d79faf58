package index

import (
	"time"

	"github.com/dendrascience/h5seek/version"
)

// Metadata is stored alongside the entries of every index.
type Metadata struct {
	Archive          string    `json:"archive"`
	BuiltAt          time.Time `json:"built_at"`
	EntryCount       int       `json:"entry_count"`
	Identity         string    `json:"identity"`
	NewestFileTS     time.Time `json:"newest_file_ts"`
	OldestFileTS     time.Time `json:"oldest_file_ts"`
	UncompressedSize int64     `json:"uncompressed_size"`
	Version          string    `json:"h5seek_version"`
}

// GenerateMetadata describes the lookup table built for the package at
// archivePath with identity id.
func (l *LookupTable) GenerateMetadata(archivePath string, id Identity) Metadata {
	return Metadata{
		Archive:          archivePath,
		BuiltAt:          time.Now(),
		EntryCount:       l.Len(),
		Identity:         id.Key(),
		NewestFileTS:     l.GetNewestFileTS(),
		OldestFileTS:     l.GetOldestFileTS(),
		UncompressedSize: l.GetUncompressedSize(),
		Version:          version.GetVersion(),
	}
}
