package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/hash"
	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

// StageFunc is a pipeline stage, run on a stage-cache miss.
type StageFunc func(ctx context.Context) (json.RawMessage, model.UsageStats, error)

// StageResult is what StageCache.Run returns: the stage's JSON output,
// its usage stats (zeroed on a cache hit — a served-from-cache result
// spent no tokens), and whether it was served from cache.
type StageResult struct {
	Output   json.RawMessage
	Usage    model.UsageStats
	CacheHit bool
}

// StageCache wraps Store's per-stage cache with run-with-cache
// semantics: a cache-infrastructure error never fails the stage, it just
// runs uncached.
type StageCache struct {
	store store.Store
	ttl   time.Duration
}

func NewStageCache(s store.Store, ttl time.Duration) *StageCache {
	return &StageCache{store: s, ttl: ttl}
}

// Run executes fn with caching keyed on (stage, company, industry,
// content-hash(input)). A cache hit skips fn entirely; a miss runs fn and
// writes the result back, logging (not failing) on a write error.
func (c *StageCache) Run(ctx context.Context, stage, company, industry string, input any, estimatedCost float64, fn StageFunc) (StageResult, error) {
	contentHash := hash.MustContent(input)

	entry, err := c.store.GetStageCache(ctx, stage, company, industry, contentHash)
	if err != nil {
		zap.L().Warn("cache: stage cache infrastructure error, running uncached",
			zap.String("stage", stage), zap.Error(err))
	} else if entry != nil {
		zap.L().Info("cache: stage hit", zap.String("stage", stage), zap.Float64("saved_usd", estimatedCost))
		return StageResult{Output: json.RawMessage(entry.Result), CacheHit: true}, nil
	}

	zap.L().Info("cache: stage miss, executing", zap.String("stage", stage))
	output, usage, err := fn(ctx)
	if err != nil {
		return StageResult{}, err
	}

	writeErr := c.store.SetStageCache(ctx, model.StageCacheEntry{
		Stage:       stage,
		Company:     company,
		Industry:    industry,
		ContentHash: contentHash,
		Result:      []byte(output),
		CostUSD:     estimatedCost,
		CreatedAt:   time.Now(),
		ExpiresAt:   time.Now().Add(c.ttl),
	})
	if writeErr != nil {
		zap.L().Warn("cache: failed to write stage cache, continuing",
			zap.String("stage", stage), zap.Error(writeErr))
	}

	return StageResult{Output: output, Usage: usage, CacheHit: false}, nil
}

// Invalidate clears a previously cached stage result for (company,
// industry, input).
func (c *StageCache) Invalidate(ctx context.Context, stage, company, industry string, input any) error {
	contentHash := hash.MustContent(input)
	return c.store.InvalidateStageCache(ctx, stage, company, industry, contentHash)
}
