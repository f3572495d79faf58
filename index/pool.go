package index

import (
	"errors"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"
)

// Pool shares opened indexes between callers, keyed by directory.
// Concurrent first requests for the same directory open it once.
type Pool struct {
	logger *log.Logger

	mu    sync.Mutex
	open  map[string]*Index
	group singleflight.Group
}

// NewPool returns an empty pool.
func NewPool(logger *log.Logger) *Pool {
	if logger == nil {
		logger = log.Default()
	}
	return &Pool{logger: logger, open: make(map[string]*Index)}
}

func (p *Pool) cached(dir string) (*Index, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	ix, ok := p.open[dir]
	return ix, ok
}

// Get returns the open index for dir, opening it on first use.
func (p *Pool) Get(dir string) (*Index, error) {
	if ix, ok := p.cached(dir); ok {
		return ix, nil
	}
	v, err, _ := p.group.Do(dir, func() (any, error) {
		if ix, ok := p.cached(dir); ok {
			return ix, nil
		}
		ix, err := Open(dir, p.logger)
		if err != nil {
			return nil, err
		}
		p.mu.Lock()
		p.open[dir] = ix
		p.mu.Unlock()
		p.logger.Debug("opened index", "dir", dir)
		return ix, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Index), nil
}

// Evict closes and forgets the index for dir, if open. Callers must make sure
// nobody is still using it.
func (p *Pool) Evict(dir string) error {
	p.mu.Lock()
	ix, ok := p.open[dir]
	delete(p.open, dir)
	p.mu.Unlock()
	if !ok {
		return nil
	}
	return ix.Close()
}

// Len returns the number of open indexes.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.open)
}

// Close closes every open index.
func (p *Pool) Close() error {
	p.mu.Lock()
	open := p.open
	p.open = make(map[string]*Index)
	p.mu.Unlock()

	var errs []error
	for _, ix := range open {
		errs = append(errs, ix.Close())
	}
	return errors.Join(errs...)
}
