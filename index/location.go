package index

import (
	"fmt"
	"path/filepath"

	"github.com/taigrr/colorhash"
)

// Bucket returns the shard directory name for an identity key.
// The bucket is derived from a color hash mod 1000, giving 1000 shards.
func Bucket(key string) string {
	b := colorhash.HashString(key) % 1000
	if b < 0 {
		b = -b
	}
	return fmt.Sprintf("%03d", b)
}

// LocationFor returns the directory the index for key lives in below indexDir.
func LocationFor(indexDir, key string) string {
	return filepath.Join(indexDir, Bucket(key), key)
}
