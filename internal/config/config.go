// Package config loads and validates the pipeline's configuration from a
// YAML file and environment variables, and initializes the global logger.
package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	OpenRouter OpenRouterConfig `yaml:"openrouter" mapstructure:"openrouter"`
	Research   ResearchConfig   `yaml:"research" mapstructure:"research"`
	Sources    SourcesConfig    `yaml:"sources" mapstructure:"sources"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Models     ModelsConfig     `yaml:"models" mapstructure:"models"`
	Pricing    PricingConfig    `yaml:"pricing" mapstructure:"pricing"`
	Pipeline   PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Confidence ConfidenceConfig `yaml:"confidence" mapstructure:"confidence"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the session store backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // "postgres" or "sqlite"
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds credentials for the premium LLM tier.
type AnthropicConfig struct {
	Key string `yaml:"key" mapstructure:"key"`
}

// OpenRouterConfig holds credentials for the OpenRouter-style chat
// completion endpoint used for the paid and free LLM tiers.
type OpenRouterConfig struct {
	Key      string `yaml:"key" mapstructure:"key"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	Referrer string `yaml:"referrer" mapstructure:"referrer"`
	AppTitle string `yaml:"app_title" mapstructure:"app_title"`
}

// ResearchConfig holds credentials for the follow-up research client
// (Stage 2) used to fill identified data gaps.
type ResearchConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// SourcesConfig holds per-adapter credentials and toggles for the
// data-source fan-out.
type SourcesConfig struct {
	ClearbitKey        string `yaml:"clearbit_key" mapstructure:"clearbit_key"`
	GooglePlacesKey    string `yaml:"google_places_key" mapstructure:"google_places_key"`
	LinkedInKey        string `yaml:"linkedin_key" mapstructure:"linkedin_key"`
	FreeInferenceKey   string `yaml:"free_inference_key" mapstructure:"free_inference_key"`
	FreeInferenceModel string `yaml:"free_inference_model" mapstructure:"free_inference_model"`
	RegistryBRBaseURL  string `yaml:"registry_br_base_url" mapstructure:"registry_br_base_url"`
	NominatimBaseURL   string `yaml:"nominatim_base_url" mapstructure:"nominatim_base_url"`
	NominatimUserAgent string `yaml:"nominatim_user_agent" mapstructure:"nominatim_user_agent"`
	OpenCorporatesKey  string `yaml:"opencorporates_key" mapstructure:"opencorporates_key"`
	ApifyToken         string `yaml:"apify_token" mapstructure:"apify_token"`
	DeepAnalysisModel  string `yaml:"deep_analysis_model" mapstructure:"deep_analysis_model"`
}

// CacheConfig configures the multi-tier cache.
type CacheConfig struct {
	RedisURL      string `yaml:"redis_url" mapstructure:"redis_url"`
	ColdStoreDir  string `yaml:"cold_store_dir" mapstructure:"cold_store_dir"`
	HotTTLSeconds int    `yaml:"hot_ttl_seconds" mapstructure:"hot_ttl_seconds"`
	WarmTTLDays   int    `yaml:"warm_ttl_days" mapstructure:"warm_ttl_days"`
	StageTTLHours int    `yaml:"stage_ttl_hours" mapstructure:"stage_ttl_hours"`

	// S3Bucket configures the S3-compatible cold tier (e.g. Cloudflare
	// R2). Left empty, the cold tier falls back to ColdStoreDir on the
	// local filesystem.
	S3Bucket   string `yaml:"s3_bucket" mapstructure:"s3_bucket"`
	S3Endpoint string `yaml:"s3_endpoint" mapstructure:"s3_endpoint"`
	S3Region   string `yaml:"s3_region" mapstructure:"s3_region"`
}

// ModelSlot names the primary and fallback chain for one pipeline stage.
type ModelSlot struct {
	Primary      string `yaml:"primary" mapstructure:"primary"`
	PaidFallback string `yaml:"paid_fallback" mapstructure:"paid_fallback"`
	FreeFallback string `yaml:"free_fallback" mapstructure:"free_fallback"`
}

// ModelsConfig is the model-selection table, one slot per stage.
type ModelsConfig struct {
	Extraction   ModelSlot `yaml:"extraction" mapstructure:"extraction"`
	GapAnalysis  ModelSlot `yaml:"gap_analysis" mapstructure:"gap_analysis"`
	Strategy     ModelSlot `yaml:"strategy" mapstructure:"strategy"`
	Competitive  ModelSlot `yaml:"competitive" mapstructure:"competitive"`
	RiskScoring  ModelSlot `yaml:"risk_scoring" mapstructure:"risk_scoring"`
	Polish       ModelSlot `yaml:"polish" mapstructure:"polish"`
}

// ModelPricing holds per-model token pricing (USD per million tokens).
type ModelPricing struct {
	Input  float64 `yaml:"input" mapstructure:"input"`
	Output float64 `yaml:"output" mapstructure:"output"`
}

// PricingConfig maps model IDs to their per-token rates, plus flat
// per-call rates for non-LLM data sources.
type PricingConfig struct {
	Models  map[string]ModelPricing `yaml:"models" mapstructure:"models"`
	Sources map[string]float64      `yaml:"sources" mapstructure:"sources"`
}

// PipelineConfig configures orchestrator-level behavior.
type PipelineConfig struct {
	MaxConcurrentAnalyses int     `yaml:"max_concurrent_analyses" mapstructure:"max_concurrent_analyses"`
	AnalysisTimeoutSeconds int    `yaml:"analysis_timeout_seconds" mapstructure:"analysis_timeout_seconds"`
	SourceFanoutTimeoutSeconds int `yaml:"source_fanout_timeout_seconds" mapstructure:"source_fanout_timeout_seconds"`
	LLMTimeoutSeconds     int     `yaml:"llm_timeout_seconds" mapstructure:"llm_timeout_seconds"`
	LLMMaxRetries         int     `yaml:"llm_max_retries" mapstructure:"llm_max_retries"`
	LLMRetryTempDecay     float64 `yaml:"llm_retry_temperature_decay" mapstructure:"llm_retry_temperature_decay"`
}

// ConfidenceConfig configures the confidence-learning job.
type ConfidenceConfig struct {
	HighEditThreshold float64 `yaml:"high_edit_threshold" mapstructure:"high_edit_threshold"`
	LowEditThreshold  float64 `yaml:"low_edit_threshold" mapstructure:"low_edit_threshold"`
	MaxConfidence     float64 `yaml:"max_confidence" mapstructure:"max_confidence"`
	MinConfidence     float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	BoostMultiplier   float64 `yaml:"boost_multiplier" mapstructure:"boost_multiplier"`
	PenaltyMultiplier float64 `yaml:"penalty_multiplier" mapstructure:"penalty_multiplier"`
	MinSampleSize     int     `yaml:"min_sample_size" mapstructure:"min_sample_size"`
	LookbackDays      int     `yaml:"lookback_days" mapstructure:"lookback_days"`
}

// ServerConfig configures the thin HTTP entrypoint.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks required configuration fields based on run mode.
// Supported modes: "analyse", "serve", "learn".
func (c *Config) Validate(mode string) error {
	var errs []string

	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "analyse":
		if c.Anthropic.Key == "" && c.OpenRouter.Key == "" {
			errs = append(errs, "anthropic.key or openrouter.key is required")
		}
	case "serve":
		if c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	case "learn":
		// no mode-specific requirements beyond the store
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if c.Pipeline.MaxConcurrentAnalyses < 1 {
		errs = append(errs, "pipeline.max_concurrent_analyses must be >= 1")
	}
	if c.Pipeline.LLMRetryTempDecay <= 0 || c.Pipeline.LLMRetryTempDecay > 1 {
		errs = append(errs, "pipeline.llm_retry_temperature_decay must be in (0.0, 1.0]")
	}
	if c.Confidence.MinConfidence < 0 || c.Confidence.MaxConfidence > 1 || c.Confidence.MinConfidence > c.Confidence.MaxConfidence {
		errs = append(errs, "confidence.min_confidence/max_confidence must satisfy 0 <= min <= max <= 1")
	}

	if len(errs) > 0 {
		return eris.New(fmt.Sprintf("config: validation failed: %s", strings.Join(errs, "; ")))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("STRATEGY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)

	v.SetDefault("openrouter.base_url", "https://openrouter.ai/api/v1/chat/completions")
	v.SetDefault("openrouter.referrer", "https://sellsadvisors.com")
	v.SetDefault("openrouter.app_title", "Strategic Analysis Pipeline")
	v.SetDefault("research.base_url", "https://api.perplexity.ai")
	v.SetDefault("research.model", "sonar-pro")

	v.SetDefault("sources.free_inference_model", "llama-3.1-70b-versatile")
	v.SetDefault("sources.nominatim_base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("sources.nominatim_user_agent", "strategy-pipeline/1.0")
	v.SetDefault("sources.deep_analysis_model", "openai/gpt-4o")

	v.SetDefault("cache.hot_ttl_seconds", 3600)
	v.SetDefault("cache.warm_ttl_days", 30)
	v.SetDefault("cache.stage_ttl_hours", 168)
	v.SetDefault("cache.cold_store_dir", "/tmp/strategy-cold-cache")

	v.SetDefault("models.extraction.primary", "google/gemini-2.5-flash")
	v.SetDefault("models.extraction.paid_fallback", "openai/gpt-4o-mini")
	v.SetDefault("models.extraction.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")
	v.SetDefault("models.gap_analysis.primary", "google/gemini-2.5-flash")
	v.SetDefault("models.gap_analysis.paid_fallback", "openai/gpt-4o-mini")
	v.SetDefault("models.gap_analysis.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")
	v.SetDefault("models.strategy.primary", "openai/gpt-4o")
	v.SetDefault("models.strategy.paid_fallback", "anthropic/claude-sonnet-4-5")
	v.SetDefault("models.strategy.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")
	v.SetDefault("models.competitive.primary", "openai/gpt-4o")
	v.SetDefault("models.competitive.paid_fallback", "anthropic/claude-sonnet-4-5")
	v.SetDefault("models.competitive.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")
	v.SetDefault("models.risk_scoring.primary", "openai/gpt-4o")
	v.SetDefault("models.risk_scoring.paid_fallback", "anthropic/claude-sonnet-4-5")
	v.SetDefault("models.risk_scoring.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")
	v.SetDefault("models.polish.primary", "anthropic/claude-haiku-4-5")
	v.SetDefault("models.polish.paid_fallback", "openai/gpt-4o-mini")
	v.SetDefault("models.polish.free_fallback", "meta-llama/llama-3.1-70b-instruct:free")

	v.SetDefault("pipeline.max_concurrent_analyses", 10)
	v.SetDefault("pipeline.analysis_timeout_seconds", 300)
	v.SetDefault("pipeline.source_fanout_timeout_seconds", 120)
	v.SetDefault("pipeline.llm_timeout_seconds", 120)
	v.SetDefault("pipeline.llm_max_retries", 3)
	v.SetDefault("pipeline.llm_retry_temperature_decay", 0.7)

	v.SetDefault("confidence.high_edit_threshold", 0.30)
	v.SetDefault("confidence.low_edit_threshold", 0.05)
	v.SetDefault("confidence.max_confidence", 0.98)
	v.SetDefault("confidence.min_confidence", 0.10)
	v.SetDefault("confidence.boost_multiplier", 1.2)
	v.SetDefault("confidence.penalty_multiplier", 0.7)
	v.SetDefault("confidence.min_sample_size", 10)
	v.SetDefault("confidence.lookback_days", 90)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
