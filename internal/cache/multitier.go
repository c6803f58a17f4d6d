package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/hash"
)

// EnrichFunc performs the expensive lookup (API call) on a cache miss.
type EnrichFunc func(ctx context.Context) (map[string]any, error)

// MultiTier is the three-tier enrichment cache — Hot (in-memory or Redis)
// → Warm (session store) → Cold (object store, layer 2 static data only)
// → API, promoting a cold-tier hit back up through warm and hot.
type MultiTier struct {
	hot     Tier
	warmFor func(domain string, layer int) Tier
	cold    *ColdTier // nil disables the cold tier entirely
	hotTTL  time.Duration
	warmTTL time.Duration
	stats   *Stats
}

// NewMultiTier builds a MultiTier. cold may be nil to disable tier 3
// (e.g. no S3/R2 bucket configured).
func NewMultiTier(hot Tier, warmFor func(domain string, layer int) Tier, cold *ColdTier, hotTTL, warmTTL time.Duration, stats *Stats) *MultiTier {
	if stats == nil {
		stats = NewStats(nil)
	}
	return &MultiTier{hot: hot, warmFor: warmFor, cold: cold, hotTTL: hotTTL, warmTTL: warmTTL, stats: stats}
}

// Stats exposes the running hit/miss counters.
func (m *MultiTier) Stats() *Stats {
	return m.stats
}

// GetOrEnrich returns the cached enrichment result for (domain, layer),
// checking Hot, then Warm, then (for layer 2 only) Cold, before falling
// back to enrich. Hits below the hot tier are promoted into every hotter
// tier. estimatedCost is recorded against Stats.TotalSavingsUSD on a hit;
// it does not affect behaviour.
func (m *MultiTier) GetOrEnrich(ctx context.Context, domain string, layer int, estimatedCost float64, enrich EnrichFunc) (map[string]any, error) {
	key := hash.Key(layer, domain)

	if data, ok, err := m.tryHot(ctx, key); err != nil {
		zap.L().Debug("cache: hot tier error", zap.Error(err))
	} else if ok {
		m.stats.recordHit("hot", estimatedCost)
		zap.L().Info("cache: hot hit", zap.String("domain", domain), zap.Int("layer", layer))
		return data, nil
	}

	warm := m.warmFor(domain, layer)
	if data, ok, err := m.tryTier(ctx, warm, key); err != nil {
		zap.L().Debug("cache: warm tier error", zap.Error(err))
	} else if ok {
		m.stats.recordHit("warm", estimatedCost)
		zap.L().Info("cache: warm hit", zap.String("domain", domain), zap.Int("layer", layer))
		m.promote(ctx, m.hot, key, data, m.hotTTL)
		return data, nil
	}

	if layer == 2 && m.cold != nil {
		if data, ok, err := m.cold.GetDomain(ctx, domain); err != nil {
			zap.L().Debug("cache: cold tier error", zap.Error(err))
		} else if ok {
			m.stats.recordHit("cold", estimatedCost)
			zap.L().Info("cache: cold hit", zap.String("domain", domain), zap.Int("layer", layer))
			m.promote(ctx, warm, key, data, m.warmTTL)
			m.promote(ctx, m.hot, key, data, m.hotTTL)
			return data, nil
		}
	}

	m.stats.recordMiss()
	zap.L().Info("cache: miss, calling enrichment function",
		zap.String("domain", domain), zap.Int("layer", layer), zap.Float64("cost", estimatedCost))

	result, err := enrich(ctx)
	if err != nil {
		return nil, err
	}

	m.promote(ctx, m.hot, key, result, m.hotTTL)
	m.promote(ctx, warm, key, result, m.warmTTL)
	if layer == 2 && m.cold != nil {
		if err := m.cold.SetDomain(ctx, domain, result); err != nil {
			zap.L().Debug("cache: cold tier write failed", zap.Error(err))
		}
	}
	return result, nil
}

func (m *MultiTier) tryHot(ctx context.Context, key string) (map[string]any, bool, error) {
	return m.tryTier(ctx, m.hot, key)
}

func (m *MultiTier) tryTier(ctx context.Context, t Tier, key string) (map[string]any, bool, error) {
	if t == nil {
		return nil, false, nil
	}
	raw, ok, err := t.Get(ctx, key)
	if err != nil || !ok {
		return nil, false, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// promote writes data into t, logging but never failing the caller on
// error — cache writes are best-effort.
func (m *MultiTier) promote(ctx context.Context, t Tier, key string, data map[string]any, ttl time.Duration) {
	if t == nil {
		return
	}
	raw, err := json.Marshal(data)
	if err != nil {
		zap.L().Debug("cache: marshal for promotion failed", zap.Error(err))
		return
	}
	if err := t.Set(ctx, key, raw, ttl); err != nil {
		zap.L().Debug("cache: promotion write failed", zap.Error(err))
	}
}
