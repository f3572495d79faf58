package vfs

import "sync"

// Inodes hands out stable inode numbers per logical path for the lifetime of
// a mount. The root ("") is always inode 1.
type Inodes struct {
	mu     sync.Mutex
	next   uint64
	byPath map[string]uint64
}

func NewInodes() *Inodes {
	return &Inodes{next: 1, byPath: map[string]uint64{"": 1}}
}

// For returns the inode of path, allocating one on first use.
func (i *Inodes) For(path string) uint64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	if ino, ok := i.byPath[path]; ok {
		return ino
	}
	i.next++
	i.byPath[path] = i.next
	return i.next
}

// Len returns the number of paths seen so far.
func (i *Inodes) Len() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.byPath)
}
