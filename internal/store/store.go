// Package store defines and implements the session-store contract:
// warm-tier cache rows, the per-stage cache, and the tables the
// confidence learner trains from. Two backends are provided — Postgres
// for production, SQLite for local development and tests — both
// satisfying the same Store interface.
package store

import (
	"context"
	"time"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// Store is the persistence contract the pipeline depends on. Submission
// intake/ownership lives in an external system; this interface only
// covers the caching and learning state the core subsystems own.
type Store interface {
	// Warm cache (enrichment_sessions) — layer is 1, 2, or 3.
	GetWarmCache(ctx context.Context, domain string, layer int) ([]byte, bool, error)
	SetWarmCache(ctx context.Context, domain string, layer int, data []byte, ttl time.Duration) error

	// Per-stage content-hashed cache.
	GetStageCache(ctx context.Context, stage, company, industry, contentHash string) (*model.StageCacheEntry, error)
	SetStageCache(ctx context.Context, entry model.StageCacheEntry) error
	InvalidateStageCache(ctx context.Context, stage, company, industry, contentHash string) error

	// Source performance (enrichment_source_performance).
	GetSourcePerformance(ctx context.Context, field, source string) (*model.SourcePerformanceRecord, error)
	UpsertSourcePerformance(ctx context.Context, rec model.SourcePerformanceRecord) error

	// Learning inputs (auto_fill_suggestions, field_validation_history).
	RecordAutoFillSuggestion(ctx context.Context, field, source string, recordedAt time.Time) error
	RecordValidationHistory(ctx context.Context, rec model.ValidationHistoryRecord) error
	CountAutoFillSuggestions(ctx context.Context, field, source string, since time.Time) (int, error)
	ListValidationHistory(ctx context.Context, field, source string, since time.Time) ([]model.ValidationHistoryRecord, error)
	DistinctFieldSourcePairs(ctx context.Context, since time.Time) ([][2]string, error)

	// Lifecycle.
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}
