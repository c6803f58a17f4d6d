// Package cache implements the three-tier enrichment cache (hot/warm/cold)
// and the per-stage LLM result cache, generalising
// original_source/app/services/enrichment/multi_tier_cache.py and
// original_source/app/services/analysis/cache_wrapper.py into the Go
// Store-backed model.
package cache

import (
	"context"
	"sync"
	"time"
)

// Tier is a single level of the cache hierarchy.
type Tier interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

type hotEntry struct {
	value     []byte
	expiresAt time.Time
}

// HotTier is an in-process fallback for the Redis-backed hot tier, used
// when cache.redis_url is unset (teacher's "_hot_cache" pattern).
type HotTier struct {
	mu      sync.Mutex
	entries map[string]hotEntry
}

func NewHotTier() *HotTier {
	return &HotTier{entries: make(map[string]hotEntry)}
}

func (h *HotTier) Get(_ context.Context, key string) ([]byte, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	e, ok := h.entries[key]
	if !ok || time.Now().After(e.expiresAt) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (h *HotTier) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.entries[key] = hotEntry{value: value, expiresAt: time.Now().Add(ttl)}
	return nil
}

// Clear drops all entries. Useful for tests.
func (h *HotTier) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = make(map[string]hotEntry)
}
