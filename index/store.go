package index

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dgraph-io/badger/v4"
)

const (
	entryPrefix = "e/"
	metaKey     = "!meta"
	valueSize   = 8 + 4 + 8 // mtime seconds, ordinal, size
)

// Index is an opened, read-only package index.
// It is safe for concurrent use.
type Index struct {
	dir string
	db  *badger.DB
}

// Child is one name directly below a directory of a package.
type Child struct {
	Name string
	Dir  bool
}

// badgerLogger adapts a charm logger to BadgerDB's Logger interface.
// Badger is chatty at info level, so info goes to debug.
type badgerLogger struct {
	logger *log.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Errorf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warnf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debugf(strings.TrimSpace(format), args...)
}

// options sizes badger for small, write-once databases.
func options(dir string, logger *log.Logger) badger.Options {
	if logger == nil {
		logger = log.Default()
	}
	return badger.DefaultOptions(dir).
		WithLogger(badgerLogger{logger: logger.WithPrefix("badger")}).
		WithNumVersionsToKeep(1).
		WithMemTableSize(8 << 20).
		WithValueLogFileSize(16 << 20).
		WithBlockCacheSize(8 << 20).
		WithIndexCacheSize(4 << 20).
		WithNumMemtables(2)
}

// Write persists lt and meta as a new index in dir.
// dir must not hold another index; callers build into a fresh directory and
// move it into place.
func Write(dir string, lt LookupTable, meta Metadata, logger *log.Logger) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory %s: %w", dir, err)
	}
	db, err := badger.Open(options(dir, logger).WithSyncWrites(false))
	if err != nil {
		return fmt.Errorf("create index %s: %w", dir, err)
	}

	wb := db.NewWriteBatch()
	for e := range lt.Iterate {
		if err := wb.Set(entryKey(e.Name), encodeEntry(e)); err != nil {
			wb.Cancel()
			db.Close()
			return fmt.Errorf("write entry %s: %w", e.Name, err)
		}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		wb.Cancel()
		db.Close()
		return err
	}
	if err := wb.Set([]byte(metaKey), raw); err != nil {
		wb.Cancel()
		db.Close()
		return err
	}
	if err := wb.Flush(); err != nil {
		db.Close()
		return fmt.Errorf("flush index %s: %w", dir, err)
	}
	return db.Close()
}

// Open opens the index in dir read-only.
// A missing directory yields ErrIndexMissing; anything badger refuses, or an
// index that was never finished, yields ErrCorruptIndex.
func Open(dir string, logger *log.Logger) (*Index, error) {
	info, err := os.Stat(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrIndexMissing, dir)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, dir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s is not a directory", ErrCorruptIndex, dir)
	}

	// badger's shared read-only lock is not available on windows
	opts := options(dir, logger).WithReadOnly(runtime.GOOS != "windows")
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, dir, err)
	}
	ix := &Index{dir: dir, db: db}
	if _, err := ix.Metadata(); err != nil {
		db.Close()
		return nil, err
	}
	return ix, nil
}

// Dir returns the directory the index was opened from.
func (ix *Index) Dir() string {
	return ix.dir
}

// Close releases the database.
func (ix *Index) Close() error {
	return ix.db.Close()
}

// Lookup returns the entry stored under exactly name.
// It never matches prefixes or partial names.
func (ix *Index) Lookup(name string) (LookupEntry, bool, error) {
	var (
		entry LookupEntry
		found bool
	)
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(entryKey(name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			e, err := decodeEntry(name, val)
			if err != nil {
				return err
			}
			entry, found = e, true
			return nil
		})
	})
	if err != nil {
		return LookupEntry{}, false, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, ix.dir, err)
	}
	return entry, found, nil
}

// Children lists the names directly below dir ("" is the package root) in
// key order. Whole subtrees are skipped with a single seek, so listing the
// root of a package costs one step per top-level name.
func (ix *Index) Children(dir string) ([]Child, error) {
	prefix := []byte(entryPrefix)
	if dir != "" {
		prefix = append(prefix, dir+"/"...)
	}

	var out []Child
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); {
			rest := string(it.Item().Key()[len(prefix):])
			name, _, isDir := strings.Cut(rest, "/")
			out = append(out, Child{Name: name, Dir: isDir})
			if !isDir {
				it.Next()
				continue
			}
			// '0' is the byte after '/', so this lands past every key of the subtree
			next := make([]byte, 0, len(prefix)+len(name)+1)
			next = append(append(next, prefix...), name...)
			it.Seek(append(next, '0'))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, ix.dir, err)
	}
	return out, nil
}

// Len counts the entries of the index.
func (ix *Index) Len() (int, error) {
	n := 0
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, ix.dir, err)
	}
	return n, nil
}

// Metadata returns the metadata written with the index.
func (ix *Index) Metadata() (Metadata, error) {
	var meta Metadata
	err := ix.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaKey))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		})
	})
	if err != nil {
		return Metadata{}, fmt.Errorf("%w: %s: metadata: %w", ErrCorruptIndex, ix.dir, err)
	}
	return meta, nil
}

// Table reads every entry back into a lookup table, in key order.
func (ix *Index) Table() (LookupTable, error) {
	var lt LookupTable
	err := ix.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(entryPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			name := string(item.Key()[len(entryPrefix):])
			err := item.Value(func(val []byte) error {
				e, err := decodeEntry(name, val)
				if err != nil {
					return err
				}
				lt.Add(e)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return LookupTable{}, fmt.Errorf("%w: %s: %w", ErrCorruptIndex, ix.dir, err)
	}
	return lt, nil
}

func entryKey(name string) []byte {
	return append([]byte(entryPrefix), name...)
}

func encodeEntry(e LookupEntry) []byte {
	buf := make([]byte, valueSize)
	binary.BigEndian.PutUint64(buf[0:8], uint64(e.Modified.Unix()))
	binary.BigEndian.PutUint32(buf[8:12], uint32(e.Ordinal))
	binary.BigEndian.PutUint64(buf[12:20], uint64(e.FileSize))
	return buf
}

func decodeEntry(name string, val []byte) (LookupEntry, error) {
	if len(val) != valueSize {
		return LookupEntry{}, fmt.Errorf("entry %s: value has %d bytes, want %d", name, len(val), valueSize)
	}
	return LookupEntry{
		Name:     name,
		Modified: time.Unix(int64(binary.BigEndian.Uint64(val[0:8])), 0),
		Ordinal:  int(binary.BigEndian.Uint32(val[8:12])),
		FileSize: int64(binary.BigEndian.Uint64(val[12:20])),
	}, nil
}
