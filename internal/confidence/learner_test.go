package confidence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/confidence"
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

func seedSuggestions(t *testing.T, s store.Store, field, source string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		require.NoError(t, s.RecordAutoFillSuggestion(ctx, field, source, time.Now()))
	}
}

func seedEdit(t *testing.T, s store.Store, field, source, suggested, final string) {
	t.Helper()
	require.NoError(t, s.RecordValidationHistory(context.Background(), model.ValidationHistoryRecord{
		Field:          field,
		Source:         source,
		SuggestedValue: suggested,
		FinalValue:     final,
		WasEdited:      suggested != final,
		EditDistance:   confidence.Distance(suggested, final),
		RecordedAt:     time.Now(),
	}))
}

func TestLearner_InsufficientDataSkipsUpdate(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedSuggestions(t, s, "industry", "metadata", 3)

	learner := confidence.NewLearner(s, confidence.Thresholds{})
	result, err := learner.UpdateConfidenceForSource(context.Background(), "industry", "metadata", 30)

	require.NoError(t, err)
	assert.False(t, result.Updated)
	assert.Equal(t, "insufficient_data", result.Reason)
	assert.Equal(t, 3, result.SampleSize)
}

func TestLearner_LowEditRateBoostsConfidence(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedSuggestions(t, s, "industry", "clearbit", 25)
	// Only one of twenty-five suggestions was edited (4% edit rate).
	seedEdit(t, s, "industry", "clearbit", "Retail", "Retail, General")

	learner := confidence.NewLearner(s, confidence.Thresholds{})
	result, err := learner.UpdateConfidenceForSource(context.Background(), "industry", "clearbit", 30)

	require.NoError(t, err)
	require.True(t, result.Updated)
	assert.Equal(t, "boost", result.Adjustment.Type)
	assert.Greater(t, result.NewConfidence, result.OldConfidence)
	assert.LessOrEqual(t, result.NewConfidence, confidence.DefaultMaxConfidence)
}

func TestLearner_HighEditRatePenalizesConfidence(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedSuggestions(t, s, "industry", "metadata", 20)
	for i := 0; i < 15; i++ {
		seedEdit(t, s, "industry", "metadata", "Unknown", "Financial Services, B2B SaaS platform")
	}

	learner := confidence.NewLearner(s, confidence.Thresholds{})
	result, err := learner.UpdateConfidenceForSource(context.Background(), "industry", "metadata", 30)

	require.NoError(t, err)
	require.True(t, result.Updated)
	assert.Equal(t, "penalty", result.Adjustment.Type)
	assert.Less(t, result.NewConfidence, result.OldConfidence)
	assert.GreaterOrEqual(t, result.NewConfidence, confidence.DefaultMinConfidence)
}

func TestLearner_PersistsSourcePerformance(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	seedSuggestions(t, s, "employee_count", "proxycurl", 12)
	seedEdit(t, s, "employee_count", "proxycurl", "51-200", "51-200")

	learner := confidence.NewLearner(s, confidence.Thresholds{})
	_, err := learner.UpdateConfidenceForSource(context.Background(), "employee_count", "proxycurl", 30)
	require.NoError(t, err)

	rec, err := s.GetSourcePerformance(context.Background(), "employee_count", "proxycurl")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "employee_count", rec.Field)
	assert.Equal(t, "proxycurl", rec.Source)
}
