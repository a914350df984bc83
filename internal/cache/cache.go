// Package cache backs the spec.md §3 Lifecycle invariant that
// "DecompositionPaths are built once and cached per abstract task": DomainTDG
// consults a PathCache before re-enumerating paths for a top-level task.
// Adapted from the teacher's Cache/MemoryCache (agent/cache.go).
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/taipm/mission-decomposer/internal/model"
)

// PathCache stores the decomposition paths built for a given abstract task,
// keyed by task name plus a domain fingerprint (so a stale cache entry from
// a different domain never leaks across runs).
type PathCache interface {
	Get(ctx context.Context, key string) ([]model.DecompositionPath, bool, error)
	Set(ctx context.Context, key string, paths []model.DecompositionPath, ttl time.Duration) error
	Clear(ctx context.Context) error
	Stats() Stats
}

// Stats mirrors the teacher's CacheStats shape.
type Stats struct {
	Hits   int64
	Misses int64
	Size   int
}

type memoryEntry struct {
	paths     []model.DecompositionPath
	expiresAt time.Time
}

// MemoryCache is the default in-process PathCache.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]memoryEntry
	defaultTTL time.Duration
	stats      Stats
}

// NewMemoryCache creates an in-process PathCache. ttl <= 0 means entries
// never expire (the common case: a Domain is immutable for the process
// lifetime, spec.md §3 Lifecycle).
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{entries: make(map[string]memoryEntry), defaultTTL: ttl}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]model.DecompositionPath, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		c.stats.Misses++
		return nil, false, nil
	}
	c.stats.Hits++
	return entry.paths, true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, paths []model.DecompositionPath, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = time.Now().Add(ttl)
	}
	c.entries[key] = memoryEntry{paths: paths, expiresAt: expiresAt}
	return nil
}

func (c *MemoryCache) Clear(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]memoryEntry)
	c.stats = Stats{}
	return nil
}

func (c *MemoryCache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}
