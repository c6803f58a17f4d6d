package cache

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/store"
)

func newTestMultiTier(t *testing.T, cold *ColdTier) (*MultiTier, store.Store) {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	hot := NewHotTier()
	warmFor := func(domain string, layer int) Tier { return NewWarmTier(s, domain, layer) }
	stats := NewStats(prometheus.NewRegistry())
	return NewMultiTier(hot, warmFor, cold, time.Hour, 30*24*time.Hour, stats), s
}

func TestMultiTier_MissThenHotHit(t *testing.T) {
	t.Parallel()
	mt, _ := newTestMultiTier(t, nil)
	ctx := context.Background()

	calls := 0
	enrich := func(ctx context.Context) (map[string]any, error) {
		calls++
		return map[string]any{"legal_name": "Acme"}, nil
	}

	data, err := mt.GetOrEnrich(ctx, "acme.com", 2, 0.05, enrich)
	require.NoError(t, err)
	assert.Equal(t, "Acme", data["legal_name"])
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, mt.Stats().Misses)

	data, err = mt.GetOrEnrich(ctx, "acme.com", 2, 0.05, enrich)
	require.NoError(t, err)
	assert.Equal(t, "Acme", data["legal_name"])
	assert.Equal(t, 1, calls, "second call must be served from the hot tier")
	assert.Equal(t, 1, mt.Stats().HotHits)
}

func TestMultiTier_WarmHitPromotesToHot(t *testing.T) {
	t.Parallel()
	mt, _ := newTestMultiTier(t, nil)
	ctx := context.Background()

	_, err := mt.GetOrEnrich(ctx, "acme.com", 1, 0.05, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"employee_count": float64(42)}, nil
	})
	require.NoError(t, err)

	mt.hot.(*HotTier).Clear()

	calls := 0
	data, err := mt.GetOrEnrich(ctx, "acme.com", 1, 0.05, func(ctx context.Context) (map[string]any, error) {
		calls++
		return nil, nil
	})
	require.NoError(t, err)
	assert.Equal(t, float64(42), data["employee_count"])
	assert.Equal(t, 0, calls, "must be served from warm, not the enrich func")
	assert.Equal(t, 1, mt.Stats().WarmHits)
}

func TestMultiTier_ColdTierOnlyAppliesToLayer2(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	cold := NewColdTier(NewFilesystemColdStore(dir))
	mt, _ := newTestMultiTier(t, cold)
	ctx := context.Background()

	_, err := mt.GetOrEnrich(ctx, "acme.com", 2, 0.05, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"legal_name": "Acme Inc"}, nil
	})
	require.NoError(t, err)

	_, ok, err := cold.GetDomain(ctx, "acme.com")
	require.NoError(t, err)
	assert.True(t, ok, "layer-2 static fields should be persisted to the cold tier")
}

func TestMultiTier_EnrichErrorPropagates(t *testing.T) {
	t.Parallel()
	mt, _ := newTestMultiTier(t, nil)

	_, err := mt.GetOrEnrich(context.Background(), "acme.com", 1, 0.05, func(ctx context.Context) (map[string]any, error) {
		return nil, assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)
}
