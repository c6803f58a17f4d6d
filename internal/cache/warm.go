package cache

import (
	"context"
	"time"

	"github.com/sells-group/strategy-pipeline/internal/store"
)

// WarmStore is the subset of store.Store the warm tier needs.
type WarmStore interface {
	GetWarmCache(ctx context.Context, domain string, layer int) ([]byte, bool, error)
	SetWarmCache(ctx context.Context, domain string, layer int, data []byte, ttl time.Duration) error
}

var _ WarmStore = store.Store(nil)

// WarmTier stores one enrichment layer per (domain, layer) row in the
// session store's enrichment_sessions table, keyed
// "progressive_enrichment:{domain}". Tier.Get/Set's single key is scoped
// to one layer; the layer number is carried separately because Store
// keys by domain+layer rather than an opaque string.
type WarmTier struct {
	store  WarmStore
	layer  int
	domain string
}

// NewWarmTier returns a Tier view over one (domain, layer) cell of the
// warm store. The key passed to Get/Set is ignored in favor of the bound
// domain/layer — callers still go through the Tier interface so
// MultiTier can treat all three tiers uniformly.
func NewWarmTier(s WarmStore, domain string, layer int) *WarmTier {
	return &WarmTier{store: s, domain: domain, layer: layer}
}

func (w *WarmTier) Get(ctx context.Context, _ string) ([]byte, bool, error) {
	return w.store.GetWarmCache(ctx, w.domain, w.layer)
}

func (w *WarmTier) Set(ctx context.Context, _ string, value []byte, ttl time.Duration) error {
	return w.store.SetWarmCache(ctx, w.domain, w.layer, value, ttl)
}
