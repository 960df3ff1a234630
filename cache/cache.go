// Package cache memoizes expensive parameter sets, keyed by their
// parameter-set identity. Loading is deduplicated: concurrent lookups of the
// same key share a single load and receive the same value.
package cache

import (
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/sectorforge/go-storage-proofs/logger"
)

// Metadata identifies a parameter set. Two sets with equal identifiers are
// interchangeable.
type Metadata interface {
	// Identifier names the parameter set. It is the cache key.
	Identifier() string
	// SectorSize returns the sector size the parameter set covers.
	SectorSize() uint64
}

// Cache memoizes values of type T under parameter-set identities. The zero
// value is not usable; use New.
type Cache[T any] struct {
	group   singleflight.Group
	mu      sync.RWMutex
	entries map[string]T
}

// New returns an empty cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]T)}
}

// Lookup returns the value cached under m's identifier, calling load to
// produce it on a miss. load runs at most once per key no matter how many
// goroutines miss concurrently; all of them receive the loaded value. A
// failed load caches nothing.
func (c *Cache[T]) Lookup(m Metadata, load func() (T, error)) (T, error) {
	key := m.Identifier()

	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	res, err, _ := c.group.Do(key, func() (interface{}, error) {
		// a previous flight may have stored the value already
		c.mu.RLock()
		v, ok := c.entries[key]
		c.mu.RUnlock()
		if ok {
			return v, nil
		}

		log := logger.Logger().With().Str("component", "cache").Logger()
		log.Debug().
			Str("identifier", key).
			Uint64("sectorSize", m.SectorSize()).
			Msg("loading parameter set")

		v, err := load()
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// Purge drops the entry for m, if any. A subsequent Lookup loads again.
func (c *Cache[T]) Purge(m Metadata) {
	c.mu.Lock()
	delete(c.entries, m.Identifier())
	c.mu.Unlock()
}

// Len returns the number of cached parameter sets.
func (c *Cache[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
