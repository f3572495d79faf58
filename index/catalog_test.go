package index

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(os.Stderr, log.Options{Level: log.ErrorLevel})
}

func TestParseLine(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantKey string
		wantLoc string
		wantErr bool
	}{
		{name: "valid", line: "abc indexes/001/abc", wantKey: "abc", wantLoc: "indexes/001/abc"},
		{name: "absolute location", line: "abc /var/cache/abc", wantKey: "abc", wantLoc: "/var/cache/abc"},
		{name: "single token", line: "abc", wantErr: true},
		{name: "spaced location", line: "abc My Indexes/001/abc", wantKey: "abc", wantLoc: "My Indexes/001/abc"},
		{name: "spaced absolute location", line: "abc /home/me/Game Cache/abc", wantKey: "abc", wantLoc: "/home/me/Game Cache/abc"},
		{name: "empty location", line: "abc ", wantErr: true},
		{name: "double space", line: "abc  dir", wantErr: true},
		{name: "leading space", line: " abc dir", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key, loc, err := ParseLine(tt.line)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrCatalogLine)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, key)
			assert.Equal(t, tt.wantLoc, loc)
		})
	}
}

func TestCatalog_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "index.db")

	c, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 0, c.Len())
	assert.NoFileExists(t, path, "loading must not create the catalog")

	require.NoError(t, c.Save())
	assert.FileExists(t, path)
}

func TestCatalog_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	c, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	c.Register("bbb", "indexes/002/bbb")
	c.Register("aaa", "indexes/001/aaa")
	c.Register("ccc", "/elsewhere/ccc")
	require.NoError(t, c.Save())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "aaa indexes/001/aaa\rbbb indexes/002/bbb\rccc /elsewhere/ccc\r", string(raw))
	assert.NotContains(t, string(raw), "\n")

	again, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, c.Entries(), again.Entries())
	assert.Equal(t, []string{"aaa", "bbb", "ccc"}, again.Keys())
}

func TestCatalog_RoundTripSpacedLocations(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")
	outside := filepath.Join(t.TempDir(), "Game Cache", "001", "abc")

	c, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	c.Register("abc", c.LocationOf(outside))
	c.Register("def", c.LocationOf(filepath.Join(dir, "My Indexes", "002", "def")))
	require.NoError(t, c.Save())

	again, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, c.Entries(), again.Entries())

	loc, ok := again.Lookup("abc")
	require.True(t, ok)
	assert.Equal(t, filepath.Clean(outside), filepath.Clean(again.Resolve(loc)))
	loc, ok = again.Lookup("def")
	require.True(t, ok)
	assert.Equal(t, "My Indexes/002/def", loc)
}

func TestCatalog_ReadsAnyLineEnding(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "carriage return", data: "k1 l1\rk2 l2\r"},
		{name: "newline", data: "k1 l1\nk2 l2\n"},
		{name: "crlf", data: "k1 l1\r\nk2 l2\r\n"},
		{name: "no trailing terminator", data: "k1 l1\rk2 l2"},
		{name: "blank lines", data: "\r\rk1 l1\r\r\nk2 l2\r"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "index.db")
			require.NoError(t, os.WriteFile(path, []byte(tt.data), 0o644))

			c, err := LoadCatalog(path, quietLogger())
			require.NoError(t, err)
			assert.Equal(t, map[string]string{"k1": "l1", "k2": "l2"}, c.Entries())
		})
	}
}

func TestCatalog_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	data := strings.Join([]string{
		"good1 loc1",
		"only-one-token",
		"too many tokens here",
		"good2 loc2",
	}, "\r") + "\r"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	c, err := LoadCatalog(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"good1": "loc1", "good2": "loc2"}, c.Entries())
}

func TestCatalog_RegisterReplacesAndRemove(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "index.db"), quietLogger())
	require.NoError(t, err)

	c.Register("k", "old")
	c.Register("k", "new")
	loc, ok := c.Lookup("k")
	require.True(t, ok)
	assert.Equal(t, "new", loc)
	assert.Equal(t, 1, c.Len())

	c.Remove("k")
	_, ok = c.Lookup("k")
	assert.False(t, ok)
}

func TestCatalog_Locations(t *testing.T) {
	dir := t.TempDir()
	c, err := LoadCatalog(filepath.Join(dir, "index.db"), quietLogger())
	require.NoError(t, err)

	inside := filepath.Join(dir, "indexes", "123", "key")
	loc := c.LocationOf(inside)
	assert.Equal(t, "indexes/123/key", loc)
	assert.Equal(t, inside, c.Resolve(loc))

	outside := filepath.Join(t.TempDir(), "key")
	loc = c.LocationOf(outside)
	assert.True(t, filepath.IsAbs(filepath.FromSlash(loc)))
	assert.Equal(t, outside, c.Resolve(loc))

	c.Register("key", "indexes/123/key")
	assert.Equal(t, map[string]string{"key": inside}, c.Locations())
}
