package sources

import (
	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/resilience"
	"github.com/sells-group/strategy-pipeline/pkg/google"
)

// Tier buckets an adapter by cost/reliability class, mirroring the
// free/paid/premium split the orchestrator's selection policy budgets
// against.
type Tier int

const (
	TierFree Tier = iota
	TierPaid
	TierPremium
)

// Registered pairs an Adapter (already wrapped for panic/circuit safety)
// with the tier its selection policy must respect.
type Registered struct {
	Adapter Adapter
	Tier    Tier
}

// NewRegistry builds every data-source adapter from cfg and an
// already-constructed llm.Client, each wrapped in its own
// MonitoringAdapter with an independent circuit breaker keyed by
// adapter name. Adapters missing a required API key are still
// registered: Fetch degrades to ErrorTypeAuth rather than panicking, so
// the orchestrator sees a uniform SourceResult regardless of which
// optional integrations are configured.
func NewRegistry(cfg config.SourcesConfig, llmClient *llm.Client) []Registered {
	breakerCfg := resilience.DefaultCircuitBreakerConfig()
	wrap := func(a Adapter) Adapter { return NewMonitoringAdapter(a, breakerCfg) }

	googleClient := google.NewClient(cfg.GooglePlacesKey)

	return []Registered{
		{Adapter: wrap(NewMetadataAdapter()), Tier: TierFree},
		{Adapter: wrap(NewMetadataEnhancedAdapter()), Tier: TierFree},
		{Adapter: wrap(NewGeoIPAdapter()), Tier: TierFree},
		{Adapter: wrap(NewRegistryBRAdapter(cfg.RegistryBRBaseURL)), Tier: TierFree},
		{Adapter: wrap(NewAIInferenceFreeAdapter(llmClient, cfg.FreeInferenceModel)), Tier: TierFree},
		{Adapter: wrap(NewRegistryFreeAdapter(cfg.OpenCorporatesKey)), Tier: TierFree},
		{Adapter: wrap(NewGeocodeFreeAdapter(cfg.NominatimBaseURL, cfg.NominatimUserAgent)), Tier: TierFree},

		{Adapter: wrap(NewClearbitAdapter(cfg.ClearbitKey)), Tier: TierPaid},
		{Adapter: wrap(NewPlacesAdapter(googleClient)), Tier: TierPaid},
		{Adapter: wrap(NewLinkedInAdapter(cfg.LinkedInKey)), Tier: TierPaid},
		{Adapter: wrap(NewResearchApifyAdapter(cfg.ApifyToken)), Tier: TierPaid},

		{Adapter: wrap(NewDeepAnalysisAdapter(llmClient, cfg.DeepAnalysisModel)), Tier: TierPremium},
	}
}

// Select returns the adapters allowed under budget: free adapters always
// run, paid adapters run when budget is at least TierPaid, premium
// adapters only when budget is TierPremium.
func Select(budget Tier, registered []Registered) []Adapter {
	selected := make([]Adapter, 0, len(registered))
	for _, r := range registered {
		if r.Tier <= budget {
			selected = append(selected, r.Adapter)
		}
	}
	return selected
}
