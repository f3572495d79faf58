package index

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
)

// Catalog maps identity keys to index locations and persists the mapping as
// text: one "<key> <location>" pair per line, each line ended by a bare
// carriage return.
//
// Locations below the catalog's own directory are stored relative to it, with
// forward slashes, so a catalog can move together with its indexes.
type Catalog struct {
	path   string
	logger *log.Logger

	mu      sync.RWMutex
	entries map[string]string
}

// LoadCatalog reads the catalog at path. A missing file is an empty catalog;
// the file is created by the first Save. Malformed lines are logged and
// skipped.
func LoadCatalog(path string, logger *log.Logger) (*Catalog, error) {
	if logger == nil {
		logger = log.Default()
	}
	c := &Catalog{path: path, logger: logger, entries: make(map[string]string)}

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Debug("no catalog yet", "path", path)
		return c, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open catalog %s: %w", path, err)
	}
	defer f.Close()

	if err := c.read(f); err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	return c, nil
}

func (c *Catalog) read(r io.Reader) error {
	sc := bufio.NewScanner(r)
	sc.Split(scanLines)
	n := 0
	for sc.Scan() {
		n++
		line := sc.Text()
		if line == "" {
			continue
		}
		key, loc, err := ParseLine(line)
		if err != nil {
			c.logger.Warn("skipping catalog line", "path", c.path, "line", n, "err", err)
			continue
		}
		c.entries[key] = loc
	}
	return sc.Err()
}

// scanLines splits on '\r', '\n' or "\r\n".
func scanLines(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		if data[i] == '\r' && i+1 >= len(data) && !atEOF {
			// might be the first half of "\r\n"
			return 0, nil, nil
		}
		if data[i] == '\r' && i+1 < len(data) && data[i+1] == '\n' {
			return i + 2, data[:i], nil
		}
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// ParseLine splits one catalog line into its key and location. Keys never
// contain a space, so everything after the first one is the location.
func ParseLine(line string) (key, location string, err error) {
	key, location, ok := strings.Cut(line, " ")
	if !ok || key == "" || location == "" || strings.HasPrefix(location, " ") {
		return "", "", fmt.Errorf("%w: %q", ErrCatalogLine, line)
	}
	return key, location, nil
}

// Path returns the file the catalog is persisted to.
func (c *Catalog) Path() string {
	return c.path
}

// Lookup returns the stored location for key.
func (c *Catalog) Lookup(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	loc, ok := c.entries[key]
	return loc, ok
}

// Register points key at location, replacing any previous location.
func (c *Catalog) Register(key, location string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = location
}

// Remove forgets key.
func (c *Catalog) Remove(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of cataloged identities.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Keys returns the cataloged identity keys, sorted.
func (c *Catalog) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Entries returns a copy of the whole mapping.
func (c *Catalog) Entries() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Locations returns the resolved index directory of every cataloged identity.
func (c *Catalog) Locations() map[string]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]string, len(c.entries))
	for k, v := range c.entries {
		out[k] = c.Resolve(v)
	}
	return out
}

// Resolve turns a stored location into a filesystem path.
func (c *Catalog) Resolve(location string) string {
	p := filepath.FromSlash(location)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(c.path), p)
}

// LocationOf turns an index directory into the form stored in the catalog.
func (c *Catalog) LocationOf(dir string) string {
	base, err := filepath.Abs(filepath.Dir(c.path))
	if err != nil {
		return filepath.ToSlash(dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return filepath.ToSlash(dir)
	}
	rel, err := filepath.Rel(base, abs)
	if err != nil || !filepath.IsLocal(rel) {
		return filepath.ToSlash(abs)
	}
	return filepath.ToSlash(rel)
}

// Save writes the catalog, replacing the previous file atomically.
func (c *Catalog) Save() error {
	c.mu.RLock()
	var buf bytes.Buffer
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		buf.WriteString(k)
		buf.WriteByte(' ')
		buf.WriteString(c.entries[k])
		buf.WriteByte('\r')
	}
	c.mu.RUnlock()

	dir := filepath.Dir(c.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create catalog directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".catalog-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		return fmt.Errorf("replace catalog %s: %w", c.path, err)
	}
	return nil
}
