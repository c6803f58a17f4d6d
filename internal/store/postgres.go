package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// PostgresStore implements Store using pgxpool. It is the production
// backend; store_test.go only exercises SQLiteStore since unit test runs
// never have a live database available.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS enrichment_sessions (
	cache_key  TEXT NOT NULL,
	layer      INTEGER NOT NULL,
	data       BYTEA NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (cache_key, layer)
);

CREATE TABLE IF NOT EXISTS stage_cache (
	stage        TEXT NOT NULL,
	company      TEXT NOT NULL,
	industry     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	result       BYTEA NOT NULL,
	cost_usd     DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at   TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (stage, company, industry, content_hash)
);

CREATE TABLE IF NOT EXISTS enrichment_source_performance (
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	confidence  DOUBLE PRECISION NOT NULL,
	sample_size INTEGER NOT NULL,
	edit_rate   DOUBLE PRECISION NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (field, source)
);

CREATE TABLE IF NOT EXISTS auto_fill_suggestions (
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS field_validation_history (
	field           TEXT NOT NULL,
	source          TEXT NOT NULL,
	suggested_value TEXT NOT NULL,
	final_value     TEXT NOT NULL,
	was_edited      BOOLEAN NOT NULL,
	edit_distance   INTEGER NOT NULL,
	recorded_at     TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_cache_expires_at ON stage_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_enrichment_sessions_expires_at ON enrichment_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_auto_fill_field_source ON auto_fill_suggestions(field, source);
CREATE INDEX IF NOT EXISTS idx_validation_field_source ON field_validation_history(field, source);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) GetWarmCache(ctx context.Context, domain string, layer int) ([]byte, bool, error) {
	var data []byte
	var expiresAt time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT data, expires_at FROM enrichment_sessions WHERE cache_key = $1 AND layer = $2`,
		domain, layer,
	).Scan(&data, &expiresAt)
	if err == pgx.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: get warm cache")
	}
	if expiresAt.Before(time.Now()) {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *PostgresStore) SetWarmCache(ctx context.Context, domain string, layer int, data []byte, ttl time.Duration) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_sessions (cache_key, layer, data, expires_at, updated_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (cache_key, layer) DO UPDATE SET
		   data = excluded.data, expires_at = excluded.expires_at, updated_at = now()`,
		domain, layer, data, time.Now().Add(ttl),
	)
	return eris.Wrap(err, "postgres: set warm cache")
}

func (s *PostgresStore) GetStageCache(ctx context.Context, stage, company, industry, contentHash string) (*model.StageCacheEntry, error) {
	var e model.StageCacheEntry
	e.Stage, e.Company, e.Industry, e.ContentHash = stage, company, industry, contentHash
	err := s.pool.QueryRow(ctx,
		`SELECT result, cost_usd, created_at, expires_at FROM stage_cache
		 WHERE stage = $1 AND company = $2 AND industry = $3 AND content_hash = $4`,
		stage, company, industry, contentHash,
	).Scan(&e.Result, &e.CostUSD, &e.CreatedAt, &e.ExpiresAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get stage cache")
	}
	if e.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &e, nil
}

func (s *PostgresStore) SetStageCache(ctx context.Context, entry model.StageCacheEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO stage_cache (stage, company, industry, content_hash, result, cost_usd, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, now(), $7)
		 ON CONFLICT (stage, company, industry, content_hash) DO UPDATE SET
		   result = excluded.result, cost_usd = excluded.cost_usd, expires_at = excluded.expires_at`,
		entry.Stage, entry.Company, entry.Industry, entry.ContentHash, entry.Result, entry.CostUSD, entry.ExpiresAt,
	)
	return eris.Wrap(err, "postgres: set stage cache")
}

func (s *PostgresStore) InvalidateStageCache(ctx context.Context, stage, company, industry, contentHash string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM stage_cache WHERE stage = $1 AND company = $2 AND industry = $3 AND content_hash = $4`,
		stage, company, industry, contentHash,
	)
	return eris.Wrap(err, "postgres: invalidate stage cache")
}

func (s *PostgresStore) GetSourcePerformance(ctx context.Context, field, source string) (*model.SourcePerformanceRecord, error) {
	var r model.SourcePerformanceRecord
	r.Field, r.Source = field, source
	err := s.pool.QueryRow(ctx,
		`SELECT confidence, sample_size, edit_rate, updated_at FROM enrichment_source_performance
		 WHERE field = $1 AND source = $2`,
		field, source,
	).Scan(&r.Confidence, &r.SampleSize, &r.EditRate, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get source performance")
	}
	return &r, nil
}

func (s *PostgresStore) UpsertSourcePerformance(ctx context.Context, rec model.SourcePerformanceRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO enrichment_source_performance (field, source, confidence, sample_size, edit_rate, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (field, source) DO UPDATE SET
		   confidence = excluded.confidence, sample_size = excluded.sample_size,
		   edit_rate = excluded.edit_rate, updated_at = now()`,
		rec.Field, rec.Source, rec.Confidence, rec.SampleSize, rec.EditRate,
	)
	return eris.Wrap(err, "postgres: upsert source performance")
}

func (s *PostgresStore) RecordAutoFillSuggestion(ctx context.Context, field, source string, recordedAt time.Time) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO auto_fill_suggestions (field, source, recorded_at) VALUES ($1, $2, $3)`,
		field, source, recordedAt,
	)
	return eris.Wrap(err, "postgres: record auto-fill suggestion")
}

func (s *PostgresStore) RecordValidationHistory(ctx context.Context, rec model.ValidationHistoryRecord) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO field_validation_history
		   (field, source, suggested_value, final_value, was_edited, edit_distance, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.Field, rec.Source, rec.SuggestedValue, rec.FinalValue, rec.WasEdited, rec.EditDistance, rec.RecordedAt,
	)
	return eris.Wrap(err, "postgres: record validation history")
}

func (s *PostgresStore) CountAutoFillSuggestions(ctx context.Context, field, source string, since time.Time) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM auto_fill_suggestions WHERE field = $1 AND source = $2 AND recorded_at >= $3`,
		field, source, since,
	).Scan(&n)
	return n, eris.Wrap(err, "postgres: count auto-fill suggestions")
}

func (s *PostgresStore) ListValidationHistory(ctx context.Context, field, source string, since time.Time) ([]model.ValidationHistoryRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT field, source, suggested_value, final_value, was_edited, edit_distance, recorded_at
		 FROM field_validation_history WHERE field = $1 AND source = $2 AND recorded_at >= $3
		 ORDER BY recorded_at`,
		field, source, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list validation history")
	}
	defer rows.Close()

	var out []model.ValidationHistoryRecord
	for rows.Next() {
		var r model.ValidationHistoryRecord
		if err := rows.Scan(&r.Field, &r.Source, &r.SuggestedValue, &r.FinalValue, &r.WasEdited, &r.EditDistance, &r.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan validation history")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate validation history")
}

func (s *PostgresStore) DistinctFieldSourcePairs(ctx context.Context, since time.Time) ([][2]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT field, source FROM auto_fill_suggestions WHERE recorded_at >= $1`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: distinct field/source pairs")
	}
	defer rows.Close()

	var out [][2]string
	for rows.Next() {
		var field, source string
		if err := rows.Scan(&field, &source); err != nil {
			return nil, eris.Wrap(err, "postgres: scan field/source pair")
		}
		out = append(out, [2]string{field, source})
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate field/source pairs")
}
