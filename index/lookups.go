package index

import (
	"cmp"
	"slices"
	"time"
)

type (
	LookupEntry struct {
		FileSize int64     `json:"size"`     // uncompressed size of the entry in bytes
		Modified time.Time `json:"modified"` // entry timestamp, whole seconds
		Name     string    `json:"name"`     // cleaned entry path as requested by callers
		Ordinal  int       `json:"ordinal"`  // position of the entry in the central directory
	}
	LookupTable struct {
		entries []LookupEntry
		sorted  bool
	}
)

func (e LookupTable) Iterate(yield func(LookupEntry) bool) {
	for _, entry := range e.entries {
		if !yield(entry) {
			return
		}
	}
}

func (e *LookupTable) Add(le LookupEntry) {
	e.sorted = false
	e.entries = append(e.entries, le)
}

func (e LookupTable) Get(index int) LookupEntry {
	if index < 0 || index >= len(e.entries) {
		return LookupEntry{}
	}
	return e.entries[index]
}

// Sort orders entries by modification time, then by name.
func (e *LookupTable) Sort() {
	slices.SortStableFunc(e.entries, func(a, b LookupEntry) int {
		if c := a.Modified.Compare(b.Modified); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
	e.sorted = true
}

func (e LookupTable) Len() int {
	return len(e.entries)
}

// Returns the first modification entry, sorting the table if needed.
func (l *LookupTable) GetOldestFileTS() time.Time {
	if l.Len() == 0 {
		return time.Time{}
	}
	if !l.sorted {
		l.Sort()
	}
	return l.Get(0).Modified
}

// Does the opposite of GetOldestFileTS
func (l *LookupTable) GetNewestFileTS() time.Time {
	if l.Len() == 0 {
		return time.Time{}
	}
	if !l.sorted {
		l.Sort()
	}
	return l.Get(l.Len() - 1).Modified
}

func (l LookupTable) GetUncompressedSize() int64 {
	var total int64
	for e := range l.Iterate {
		total += e.FileSize
	}
	return total
}
