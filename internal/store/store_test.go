package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_WarmCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, ok, err := s.GetWarmCache(ctx, "acme.com", 2)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.SetWarmCache(ctx, "acme.com", 2, []byte(`{"legal_name":"Acme"}`), 30*24*time.Hour))

	data, ok, err := s.GetWarmCache(ctx, "acme.com", 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.JSONEq(t, `{"legal_name":"Acme"}`, string(data))
}

func TestStore_WarmCacheExpires(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.SetWarmCache(ctx, "acme.com", 1, []byte(`{}`), -time.Second))

	_, ok, err := s.GetWarmCache(ctx, "acme.com", 1)
	require.NoError(t, err)
	require.False(t, ok, "expired entries must not be returned")
}

func TestStore_StageCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	got, err := s.GetStageCache(ctx, "extraction", "Acme", "SaaS", "hash1")
	require.NoError(t, err)
	require.Nil(t, got)

	entry := model.StageCacheEntry{
		Stage: "extraction", Company: "Acme", Industry: "SaaS", ContentHash: "hash1",
		Result: []byte(`{"a":1}`), CostUSD: 0.002, ExpiresAt: time.Now().Add(time.Hour),
	}
	require.NoError(t, s.SetStageCache(ctx, entry))

	got, err = s.GetStageCache(ctx, "extraction", "Acme", "SaaS", "hash1")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.JSONEq(t, `{"a":1}`, string(got.Result))
	require.Equal(t, 0.002, got.CostUSD)

	require.NoError(t, s.InvalidateStageCache(ctx, "extraction", "Acme", "SaaS", "hash1"))
	got, err = s.GetStageCache(ctx, "extraction", "Acme", "SaaS", "hash1")
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestStore_SourcePerformanceUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := model.SourcePerformanceRecord{Field: "employee_count", Source: "clearbit", Confidence: 0.85, SampleSize: 12, EditRate: 0.1}
	require.NoError(t, s.UpsertSourcePerformance(ctx, rec))

	got, err := s.GetSourcePerformance(ctx, "employee_count", "clearbit")
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 0.85, got.Confidence)

	rec.Confidence = 0.7
	rec.SampleSize = 20
	require.NoError(t, s.UpsertSourcePerformance(ctx, rec))

	got, err = s.GetSourcePerformance(ctx, "employee_count", "clearbit")
	require.NoError(t, err)
	require.Equal(t, 0.7, got.Confidence)
	require.Equal(t, 20, got.SampleSize)
}

func TestStore_ValidationHistoryAndCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.RecordAutoFillSuggestion(ctx, "industry", "ai_inference", now))
	}
	n, err := s.CountAutoFillSuggestions(ctx, "industry", "ai_inference", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, 3, n)

	require.NoError(t, s.RecordValidationHistory(ctx, model.ValidationHistoryRecord{
		Field: "industry", Source: "ai_inference", SuggestedValue: "Retail", FinalValue: "Retail",
		WasEdited: false, EditDistance: 0, RecordedAt: now,
	}))
	require.NoError(t, s.RecordValidationHistory(ctx, model.ValidationHistoryRecord{
		Field: "industry", Source: "ai_inference", SuggestedValue: "Retail", FinalValue: "E-commerce",
		WasEdited: true, EditDistance: 8, RecordedAt: now,
	}))

	hist, err := s.ListValidationHistory(ctx, "industry", "ai_inference", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, hist, 2)

	pairs, err := s.DistinctFieldSourcePairs(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Contains(t, pairs, [2]string{"industry", "ai_inference"})
}
