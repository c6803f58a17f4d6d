package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite" // Register the pure-Go SQLite driver.

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the local
// development and test backend; production uses PostgresStore.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?"
	} else {
		dsn += "&"
	}
	dsn += "_pragma=busy_timeout(30000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(10)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, eris.Wrap(err, "sqlite: ping")
	}

	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS enrichment_sessions (
	cache_key  TEXT NOT NULL,
	layer      INTEGER NOT NULL,
	data       BLOB NOT NULL,
	expires_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (cache_key, layer)
);

CREATE TABLE IF NOT EXISTS stage_cache (
	stage        TEXT NOT NULL,
	company      TEXT NOT NULL,
	industry     TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	result       BLOB NOT NULL,
	cost_usd     REAL NOT NULL DEFAULT 0,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	expires_at   DATETIME NOT NULL,
	PRIMARY KEY (stage, company, industry, content_hash)
);

CREATE TABLE IF NOT EXISTS enrichment_source_performance (
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	confidence  REAL NOT NULL,
	sample_size INTEGER NOT NULL,
	edit_rate   REAL NOT NULL,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (field, source)
);

CREATE TABLE IF NOT EXISTS auto_fill_suggestions (
	field       TEXT NOT NULL,
	source      TEXT NOT NULL,
	recorded_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS field_validation_history (
	field           TEXT NOT NULL,
	source          TEXT NOT NULL,
	suggested_value TEXT NOT NULL,
	final_value     TEXT NOT NULL,
	was_edited      INTEGER NOT NULL,
	edit_distance   INTEGER NOT NULL,
	recorded_at     DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_stage_cache_expires_at ON stage_cache(expires_at);
CREATE INDEX IF NOT EXISTS idx_enrichment_sessions_expires_at ON enrichment_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_auto_fill_field_source ON auto_fill_suggestions(field, source);
CREATE INDEX IF NOT EXISTS idx_validation_field_source ON field_validation_history(field, source);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetWarmCache(ctx context.Context, domain string, layer int) ([]byte, bool, error) {
	var data []byte
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT data, expires_at FROM enrichment_sessions WHERE cache_key = ? AND layer = ?`,
		domain, layer,
	).Scan(&data, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: get warm cache")
	}
	if expiresAt.Before(time.Now()) {
		return nil, false, nil
	}
	return data, true, nil
}

func (s *SQLiteStore) SetWarmCache(ctx context.Context, domain string, layer int, data []byte, ttl time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_sessions (cache_key, layer, data, expires_at, updated_at)
		 VALUES (?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (cache_key, layer) DO UPDATE SET
		   data = excluded.data, expires_at = excluded.expires_at, updated_at = datetime('now')`,
		domain, layer, data, time.Now().Add(ttl),
	)
	return eris.Wrap(err, "sqlite: set warm cache")
}

func (s *SQLiteStore) GetStageCache(ctx context.Context, stage, company, industry, contentHash string) (*model.StageCacheEntry, error) {
	var e model.StageCacheEntry
	e.Stage, e.Company, e.Industry, e.ContentHash = stage, company, industry, contentHash
	err := s.db.QueryRowContext(ctx,
		`SELECT result, cost_usd, created_at, expires_at FROM stage_cache
		 WHERE stage = ? AND company = ? AND industry = ? AND content_hash = ?`,
		stage, company, industry, contentHash,
	).Scan(&e.Result, &e.CostUSD, &e.CreatedAt, &e.ExpiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get stage cache")
	}
	if e.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}
	return &e, nil
}

func (s *SQLiteStore) SetStageCache(ctx context.Context, entry model.StageCacheEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stage_cache (stage, company, industry, content_hash, result, cost_usd, created_at, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?, datetime('now'), ?)
		 ON CONFLICT (stage, company, industry, content_hash) DO UPDATE SET
		   result = excluded.result, cost_usd = excluded.cost_usd, expires_at = excluded.expires_at`,
		entry.Stage, entry.Company, entry.Industry, entry.ContentHash, entry.Result, entry.CostUSD, entry.ExpiresAt,
	)
	return eris.Wrap(err, "sqlite: set stage cache")
}

func (s *SQLiteStore) InvalidateStageCache(ctx context.Context, stage, company, industry, contentHash string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM stage_cache WHERE stage = ? AND company = ? AND industry = ? AND content_hash = ?`,
		stage, company, industry, contentHash,
	)
	return eris.Wrap(err, "sqlite: invalidate stage cache")
}

func (s *SQLiteStore) GetSourcePerformance(ctx context.Context, field, source string) (*model.SourcePerformanceRecord, error) {
	var r model.SourcePerformanceRecord
	r.Field, r.Source = field, source
	err := s.db.QueryRowContext(ctx,
		`SELECT confidence, sample_size, edit_rate, updated_at FROM enrichment_source_performance
		 WHERE field = ? AND source = ?`,
		field, source,
	).Scan(&r.Confidence, &r.SampleSize, &r.EditRate, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get source performance")
	}
	return &r, nil
}

func (s *SQLiteStore) UpsertSourcePerformance(ctx context.Context, rec model.SourcePerformanceRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO enrichment_source_performance (field, source, confidence, sample_size, edit_rate, updated_at)
		 VALUES (?, ?, ?, ?, ?, datetime('now'))
		 ON CONFLICT (field, source) DO UPDATE SET
		   confidence = excluded.confidence, sample_size = excluded.sample_size,
		   edit_rate = excluded.edit_rate, updated_at = datetime('now')`,
		rec.Field, rec.Source, rec.Confidence, rec.SampleSize, rec.EditRate,
	)
	return eris.Wrap(err, "sqlite: upsert source performance")
}

func (s *SQLiteStore) RecordAutoFillSuggestion(ctx context.Context, field, source string, recordedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO auto_fill_suggestions (field, source, recorded_at) VALUES (?, ?, ?)`,
		field, source, recordedAt,
	)
	return eris.Wrap(err, "sqlite: record auto-fill suggestion")
}

func (s *SQLiteStore) RecordValidationHistory(ctx context.Context, rec model.ValidationHistoryRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO field_validation_history
		   (field, source, suggested_value, final_value, was_edited, edit_distance, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.Field, rec.Source, rec.SuggestedValue, rec.FinalValue, rec.WasEdited, rec.EditDistance, rec.RecordedAt,
	)
	return eris.Wrap(err, "sqlite: record validation history")
}

func (s *SQLiteStore) CountAutoFillSuggestions(ctx context.Context, field, source string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM auto_fill_suggestions WHERE field = ? AND source = ? AND recorded_at >= ?`,
		field, source, since,
	).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count auto-fill suggestions")
}

func (s *SQLiteStore) ListValidationHistory(ctx context.Context, field, source string, since time.Time) ([]model.ValidationHistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT field, source, suggested_value, final_value, was_edited, edit_distance, recorded_at
		 FROM field_validation_history WHERE field = ? AND source = ? AND recorded_at >= ?
		 ORDER BY recorded_at`,
		field, source, since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list validation history")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ValidationHistoryRecord
	for rows.Next() {
		var r model.ValidationHistoryRecord
		if err := rows.Scan(&r.Field, &r.Source, &r.SuggestedValue, &r.FinalValue, &r.WasEdited, &r.EditDistance, &r.RecordedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan validation history")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate validation history")
}

func (s *SQLiteStore) DistinctFieldSourcePairs(ctx context.Context, since time.Time) ([][2]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT field, source FROM auto_fill_suggestions WHERE recorded_at >= ?`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: distinct field/source pairs")
	}
	defer rows.Close() //nolint:errcheck

	var out [][2]string
	for rows.Next() {
		var field, source string
		if err := rows.Scan(&field, &source); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan field/source pair")
		}
		out = append(out, [2]string{field, source})
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate field/source pairs")
}
