package index

import (
	"fmt"
	"os"
	"time"

	digest "github.com/opencontainers/go-digest"
)

// Identity fingerprints one package file by filesystem metadata only.
// Replacing a package with a same-named file changes at least one field, so
// the replacement never matches the index built for its predecessor.
type Identity struct {
	Name     string
	Size     int64
	Created  time.Time
	Modified time.Time
}

// IdentityOf stats the package at path.
func IdentityOf(path string) (Identity, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Identity{}, err
	}
	if !info.Mode().IsRegular() {
		return Identity{}, fmt.Errorf("%w: %s", ErrNotRegular, path)
	}
	return Identity{
		Name:     info.Name(),
		Size:     info.Size(),
		Created:  createdTime(path, info),
		Modified: info.ModTime(),
	}, nil
}

// Digest returns the SHA-256 digest of the identity fields.
func (id Identity) Digest() digest.Digest {
	return digest.FromString(fmt.Sprintf("%d\x00%s\x00%d\x00%d",
		id.Size, id.Name, unixNano(id.Created), unixNano(id.Modified)))
}

// Key is the hex form of Digest, used as catalog key and index directory name.
func (id Identity) Key() string {
	return id.Digest().Encoded()
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}
