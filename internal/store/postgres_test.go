package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit
// testing, since spinning up a real Postgres instance isn't available for
// this module's test runs.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_GetWarmCache_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT data, expires_at FROM enrichment_sessions WHERE cache_key = \$1 AND layer = \$2`).
		WithArgs("acme.com", 2).
		WillReturnError(pgx.ErrNoRows)

	data, ok, err := s.GetWarmCache(context.Background(), "acme.com", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWarmCache_Expired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"data", "expires_at"}).
		AddRow([]byte(`{"legal_name":"Acme Ltda"}`), time.Now().Add(-time.Hour))

	mock.ExpectQuery(`SELECT data, expires_at FROM enrichment_sessions`).
		WithArgs("acme.com", 2).
		WillReturnRows(rows)

	data, ok, err := s.GetWarmCache(context.Background(), "acme.com", 2)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, data)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetWarmCache_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(cache_key, layer\) DO UPDATE`).
		WithArgs("acme.com", 2, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.SetWarmCache(context.Background(), "acme.com", 2, []byte(`{}`), 24*time.Hour)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetStageCache_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT result, cost_usd, created_at, expires_at FROM stage_cache`).
		WithArgs("extraction", "Acme Ltda", "varejo", "deadbeef").
		WillReturnError(pgx.ErrNoRows)

	entry, err := s.GetStageCache(context.Background(), "extraction", "Acme Ltda", "varejo", "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetStageCache_Expired(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"result", "cost_usd", "created_at", "expires_at"}).
		AddRow([]byte(`{}`), 0.02, time.Now().Add(-48*time.Hour), time.Now().Add(-time.Hour))

	mock.ExpectQuery(`SELECT result, cost_usd, created_at, expires_at FROM stage_cache`).
		WithArgs("strategy", "Acme Ltda", "varejo", "deadbeef").
		WillReturnRows(rows)

	entry, err := s.GetStageCache(context.Background(), "strategy", "Acme Ltda", "varejo", "deadbeef")
	require.NoError(t, err)
	assert.Nil(t, entry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SetStageCache_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(stage, company, industry, content_hash\) DO UPDATE`).
		WithArgs("extraction", "Acme Ltda", "varejo", "deadbeef", pgxmock.AnyArg(), 0.03, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	entry := model.StageCacheEntry{
		Stage: "extraction", Company: "Acme Ltda", Industry: "varejo", ContentHash: "deadbeef",
		Result: []byte(`{}`), CostUSD: 0.03, ExpiresAt: time.Now().Add(time.Hour),
	}
	err := s.SetStageCache(context.Background(), entry)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InvalidateStageCache(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM stage_cache WHERE`).
		WithArgs("extraction", "Acme Ltda", "varejo", "deadbeef").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.InvalidateStageCache(context.Background(), "extraction", "Acme Ltda", "varejo", "deadbeef")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSourcePerformance_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT confidence, sample_size, edit_rate, updated_at FROM enrichment_source_performance`).
		WithArgs("industry", "clearbit").
		WillReturnError(pgx.ErrNoRows)

	rec, err := s.GetSourcePerformance(context.Background(), "industry", "clearbit")
	require.NoError(t, err)
	assert.Nil(t, rec)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertSourcePerformance(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(field, source\) DO UPDATE`).
		WithArgs("industry", "clearbit", 0.82, 25, 0.04).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := model.SourcePerformanceRecord{Field: "industry", Source: "clearbit", Confidence: 0.82, SampleSize: 25, EditRate: 0.04}
	err := s.UpsertSourcePerformance(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordAutoFillSuggestion(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO auto_fill_suggestions`).
		WithArgs("industry", "clearbit", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.RecordAutoFillSuggestion(context.Background(), "industry", "clearbit", time.Now())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RecordValidationHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO field_validation_history`).
		WithArgs("industry", "clearbit", "Retail", "Retail, General", true, 9, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	rec := model.ValidationHistoryRecord{
		Field: "industry", Source: "clearbit", SuggestedValue: "Retail", FinalValue: "Retail, General",
		WasEdited: true, EditDistance: 9, RecordedAt: time.Now(),
	}
	err := s.RecordValidationHistory(context.Background(), rec)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountAutoFillSuggestions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"count"}).AddRow(25)
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM auto_fill_suggestions`).
		WithArgs("industry", "clearbit", pgxmock.AnyArg()).
		WillReturnRows(rows)

	n, err := s.CountAutoFillSuggestions(context.Background(), "industry", "clearbit", time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	assert.Equal(t, 25, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListValidationHistory(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"field", "source", "suggested_value", "final_value", "was_edited", "edit_distance", "recorded_at"}).
		AddRow("industry", "clearbit", "Retail", "Retail, General", true, 9, time.Now())

	mock.ExpectQuery(`SELECT field, source, suggested_value, final_value, was_edited, edit_distance, recorded_at\s+FROM field_validation_history`).
		WithArgs("industry", "clearbit", pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := s.ListValidationHistory(context.Background(), "industry", "clearbit", time.Now().AddDate(0, 0, -30))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].WasEdited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DistinctFieldSourcePairs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{"field", "source"}).
		AddRow("industry", "clearbit").
		AddRow("employee_count", "proxycurl")

	mock.ExpectQuery(`SELECT DISTINCT field, source FROM auto_fill_suggestions`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)

	got, err := s.DistinctFieldSourcePairs(context.Background(), time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.ElementsMatch(t, [][2]string{{"industry", "clearbit"}, {"employee_count", "proxycurl"}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Ping(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	mock.ExpectPing()

	err := s.Ping(context.Background())
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
