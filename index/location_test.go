package index

import (
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBucket(t *testing.T) {
	keys := []string{
		"",
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		"2c26b46b68ffc68ff99b453c1d30413413422d706483bfa0f98a5e886266e7ae",
		"x",
	}
	for _, key := range keys {
		b := Bucket(key)
		require.Len(t, b, 3, key)
		n, err := strconv.Atoi(b)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
		assert.Less(t, n, 1000)
		assert.Equal(t, b, Bucket(key), "bucket is deterministic")
	}
}

func TestLocationFor(t *testing.T) {
	key := "abcdef"
	got := LocationFor("/cache/indexes", key)
	assert.Equal(t, filepath.Join("/cache/indexes", Bucket(key), key), got)
}
