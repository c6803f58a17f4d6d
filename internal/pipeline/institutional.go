package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/store"
)

// institutionalMemoryLayer is a synthetic warm-cache layer number set
// aside for prior-analysis summaries, distinct from the source-enrichment
// layers (1-3) internal/cache.MultiTier uses for the same store.
const institutionalMemoryLayer = 0

const institutionalMemoryTTL = 7 * 24 * time.Hour

// institutionalMemoryDomain builds the warm-cache key a prior analysis of
// the same company+industry was stored under.
func institutionalMemoryDomain(company, industry string) string {
	return "institutional:" + company + ":" + industry
}

// priorAnalysisSummary is the compact record kept from a completed run,
// reused as extra Stage 1 context on a subsequent analysis of the same
// company rather than re-deriving it from scratch.
type priorAnalysisSummary struct {
	GeneratedAt     time.Time `json:"generated_at"`
	CompanyFacts    string    `json:"company_facts_summary"`
	KeyFindings     []string  `json:"key_findings"`
}

// loadInstitutionalMemory returns a short text summary of a prior
// analysis for (company, industry) if one was recorded within the last
// institutionalMemoryTTL, for inclusion in the Stage 1 prompt context. A
// cache-infrastructure error or miss both return ("", false) — this is an
// enrichment, never a dependency.
func loadInstitutionalMemory(ctx context.Context, s store.Store, company, industry string) (string, bool) {
	raw, ok, err := s.GetWarmCache(ctx, institutionalMemoryDomain(company, industry), institutionalMemoryLayer)
	if err != nil {
		zap.L().Debug("institutional memory: lookup failed", zap.Error(err))
		return "", false
	}
	if !ok {
		return "", false
	}

	var summary priorAnalysisSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		zap.L().Debug("institutional memory: decode failed", zap.Error(err))
		return "", false
	}

	return "Previous analysis on file from " + summary.GeneratedAt.Format("2006-01-02") +
		": " + summary.CompanyFacts, true
}

// saveInstitutionalMemory records a compact summary of a completed
// analysis for reuse by future runs against the same company+industry.
func saveInstitutionalMemory(ctx context.Context, s store.Store, company, industry, companyFactsSummary string, keyFindings []string) {
	summary := priorAnalysisSummary{
		GeneratedAt:  time.Now(),
		CompanyFacts: companyFactsSummary,
		KeyFindings:  keyFindings,
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		zap.L().Debug("institutional memory: encode failed", zap.Error(err))
		return
	}
	if err := s.SetWarmCache(ctx, institutionalMemoryDomain(company, industry), institutionalMemoryLayer, raw, institutionalMemoryTTL); err != nil {
		zap.L().Debug("institutional memory: write failed", zap.Error(err))
	}
}
