package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/cache"
	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/confidence"
	"github.com/sells-group/strategy-pipeline/internal/cost"
	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/pipeline"
	anthropicpkg "github.com/sells-group/strategy-pipeline/pkg/anthropic"
	"github.com/sells-group/strategy-pipeline/pkg/perplexity"

	"github.com/sells-group/strategy-pipeline/internal/sources"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

// env bundles every long-lived collaborator built once at process
// startup and shared across requests/invocations: the store, the
// multi-tier and per-stage caches, the LLM client, the data-source
// registry, and the confidence learner.
type env struct {
	cfg        *config.Config
	store      store.Store
	multiTier  *cache.MultiTier
	stageCache *cache.StageCache
	llmClient  *llm.Client
	sourceReg  []sources.Registered
	learner    *confidence.Learner
	calc       *cost.Calculator
}

func (e *env) Close() error {
	return e.store.Close()
}

// promRegistry backs cache.Stats's gauges and is exposed at GET /metrics
// by the serve command.
var promRegistry = prometheus.NewRegistry()

// zapCostLogger satisfies llm.CostLogger with a debug-level log line —
// the actual cost ledger for a run lives in cost.Tracker, fed directly
// by internal/pipeline's callChain rather than through this hook.
type zapCostLogger struct{}

func (zapCostLogger) Log(stage, modelID string, inputTokens, outputTokens int) {
	zap.L().Debug("llm: call completed",
		zap.String("stage", stage), zap.String("model", modelID),
		zap.Int("input_tokens", inputTokens), zap.Int("output_tokens", outputTokens))
}

// buildEnv constructs every shared dependency from cfg. Callers must
// call Close when done.
func buildEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	llmClient := llm.NewClient(cfg.OpenRouter, anthropicClient, zapCostLogger{})

	sourceReg := sources.NewRegistry(cfg.Sources, llmClient)

	hotTier, err := openHotTier(cfg.Cache)
	if err != nil {
		zap.L().Warn("cache: redis hot tier unavailable, using in-process hot tier", zap.Error(err))
		hotTier = cache.NewHotTier()
	}

	coldStore, err := openColdStore(ctx, cfg.Cache)
	if err != nil {
		zap.L().Warn("cache: cold tier unavailable, running without it", zap.Error(err))
		coldStore = nil
	}
	var coldTier *cache.ColdTier
	if coldStore != nil {
		coldTier = cache.NewColdTier(coldStore)
	}

	warmFor := func(domain string, layer int) cache.Tier {
		return cache.NewWarmTier(st, domain, layer)
	}

	stats := cache.NewStats(promRegistry)
	multiTier := cache.NewMultiTier(
		hotTier, warmFor, coldTier,
		time.Duration(cfg.Cache.HotTTLSeconds)*time.Second,
		time.Duration(cfg.Cache.WarmTTLDays)*24*time.Hour,
		stats,
	)

	stageCache := cache.NewStageCache(st, time.Duration(cfg.Cache.StageTTLHours)*time.Hour)

	return &env{
		cfg:        cfg,
		store:      st,
		multiTier:  multiTier,
		stageCache: stageCache,
		llmClient:  llmClient,
		sourceReg:  sourceReg,
		learner:    confidence.NewLearner(st, confidenceThresholds(cfg.Confidence)),
		calc:       cost.NewCalculator(pricingOrDefault(cfg.Pricing)),
	}, nil
}

// pricingOrDefault falls back to cost.DefaultPricing when the config
// file carries no pricing section, so a run never silently prices every
// call at zero for lack of a [pricing] block.
func pricingOrDefault(cfg config.PricingConfig) config.PricingConfig {
	if len(cfg.Models) == 0 && len(cfg.Sources) == 0 {
		return cost.DefaultPricing()
	}
	return cfg
}

func openStore(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	var st store.Store
	var err error
	switch cfg.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.DatabaseURL)
	default:
		st, err = store.NewPostgres(ctx, cfg.DatabaseURL)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}
	return st, nil
}

func openHotTier(cfg config.CacheConfig) (cache.Tier, error) {
	if cfg.RedisURL == "" {
		return cache.NewHotTier(), nil
	}
	return cache.NewRedisHot(cfg.RedisURL)
}

func openColdStore(ctx context.Context, cfg config.CacheConfig) (cache.ColdStore, error) {
	if cfg.S3Bucket != "" {
		return cache.NewS3ColdStore(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Endpoint)
	}
	if cfg.ColdStoreDir == "" {
		return nil, nil
	}
	return cache.NewFilesystemColdStore(cfg.ColdStoreDir), nil
}

// analysisTimeout converts the configured analysis deadline to a
// time.Duration, 0 meaning "no deadline".
func analysisTimeout(cfg *config.Config) time.Duration {
	if cfg.Pipeline.AnalysisTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(cfg.Pipeline.AnalysisTimeoutSeconds) * time.Second
}

// confidenceThresholds maps the config file's tuning knobs onto the
// confidence package's Thresholds, so operators can retune the learner
// without a code change.
func confidenceThresholds(cfg config.ConfidenceConfig) confidence.Thresholds {
	return confidence.Thresholds{
		HighEditThreshold: cfg.HighEditThreshold,
		LowEditThreshold:  cfg.LowEditThreshold,
		MaxConfidence:     cfg.MaxConfidence,
		MinConfidence:     cfg.MinConfidence,
		BoostMultiplier:   cfg.BoostMultiplier,
		PenaltyMultiplier: cfg.PenaltyMultiplier,
		MinSampleSize:     cfg.MinSampleSize,
	}
}

// researchClient builds the Stage 2 follow-up research client, or nil if
// no research API key is configured (Stage 2 then always no-ops).
func researchClient(cfg config.ResearchConfig) pipeline.ResearchClient {
	if cfg.Key == "" {
		return nil
	}
	client := perplexity.NewClient(cfg.Key, perplexity.WithBaseURL(cfg.BaseURL))
	return pipeline.NewPerplexityResearch(client, cfg.Model)
}
