package iconcache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/roach88/iconcache/internal/model"
)

// MemCacheMode selects the in-memory map implementation.
type MemCacheMode string

const (
	// MemCacheMap keeps every resolved entry.
	MemCacheMap MemCacheMode = "map"
	// MemCacheLRU keeps at most MemCacheSize entries.
	MemCacheLRU MemCacheMode = "lru"
	// MemCacheNone retains nothing; every lookup goes to the store.
	MemCacheNone MemCacheMode = "none"
)

// memCache is only ever touched from the worker, so implementations need
// no locking of their own.
type memCache interface {
	get(k model.ComponentKey) (*model.CacheEntry, bool)
	put(k model.ComponentKey, e *model.CacheEntry)
	remove(k model.ComponentKey)
	removeIf(pred func(model.ComponentKey) bool) int
	clear()
	len() int
}

func newMemCache(mode MemCacheMode, size int) (memCache, error) {
	switch mode {
	case "", MemCacheMap:
		return mapCache{}, nil
	case MemCacheLRU:
		if size <= 0 {
			return nil, fmt.Errorf("lru memory cache needs a positive size, got %d", size)
		}
		l, err := lru.New[model.ComponentKey, *model.CacheEntry](size)
		if err != nil {
			return nil, fmt.Errorf("create lru memory cache: %w", err)
		}
		return &lruCache{l: l}, nil
	case MemCacheNone:
		return noopCache{}, nil
	default:
		return nil, fmt.Errorf("unknown memory cache mode %q", mode)
	}
}

type mapCache map[model.ComponentKey]*model.CacheEntry

func (m mapCache) get(k model.ComponentKey) (*model.CacheEntry, bool) {
	e, ok := m[k]
	return e, ok
}

func (m mapCache) put(k model.ComponentKey, e *model.CacheEntry) { m[k] = e }

func (m mapCache) remove(k model.ComponentKey) { delete(m, k) }

func (m mapCache) removeIf(pred func(model.ComponentKey) bool) int {
	n := 0
	for k := range m {
		if pred(k) {
			delete(m, k)
			n++
		}
	}
	return n
}

func (m mapCache) clear() { clear(m) }

func (m mapCache) len() int { return len(m) }

type lruCache struct {
	l *lru.Cache[model.ComponentKey, *model.CacheEntry]
}

func (c *lruCache) get(k model.ComponentKey) (*model.CacheEntry, bool) { return c.l.Get(k) }

func (c *lruCache) put(k model.ComponentKey, e *model.CacheEntry) { c.l.Add(k, e) }

func (c *lruCache) remove(k model.ComponentKey) { c.l.Remove(k) }

func (c *lruCache) removeIf(pred func(model.ComponentKey) bool) int {
	n := 0
	for _, k := range c.l.Keys() {
		if pred(k) {
			c.l.Remove(k)
			n++
		}
	}
	return n
}

func (c *lruCache) clear() { c.l.Purge() }

func (c *lruCache) len() int { return c.l.Len() }

type noopCache struct{}

func (noopCache) get(model.ComponentKey) (*model.CacheEntry, bool)  { return nil, false }
func (noopCache) put(model.ComponentKey, *model.CacheEntry)         {}
func (noopCache) remove(model.ComponentKey)                         {}
func (noopCache) removeIf(func(model.ComponentKey) bool) int        { return 0 }
func (noopCache) clear()                                            {}
func (noopCache) len() int                                          { return 0 }
