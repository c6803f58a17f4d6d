package pipeline

// Tier is the five-level data-quality label derived from how much input
// coverage a run had, gating which Stage 3 sections get requested. This
// is the single canonical tier-to-section mapping: the orchestrator
// derives the tier with AssessTier, and RunStage3 calls EnabledSections
// on it rather than keeping its own copy of the mapping.
type Tier string

const (
	TierLegendary Tier = "legendary"
	TierFull      Tier = "full"
	TierGood      Tier = "good"
	TierPartial   Tier = "partial"
	TierMinimal   Tier = "minimal"
)

// InputCoverage summarizes how much usable data a run has going into
// Stage 3, used to assess the quality tier.
type InputCoverage struct {
	SourcesSucceeded int
	SourcesAttempted int
	HasFinancials    bool // revenue/employee-count-derived size data
	HasWebsite       bool
	FollowUpComplete bool
}

// successRatio returns SourcesSucceeded/SourcesAttempted, or 0 when
// nothing was attempted.
func (c InputCoverage) successRatio() float64 {
	if c.SourcesAttempted == 0 {
		return 0
	}
	return float64(c.SourcesSucceeded) / float64(c.SourcesAttempted)
}

// AssessTier derives a Tier from observed input coverage. Thresholds are
// deliberately coarse: individual adapter failures never fail the
// pipeline, they only ever push the tier down a level.
func AssessTier(c InputCoverage) Tier {
	ratio := c.successRatio()

	switch {
	case ratio >= 0.9 && c.HasFinancials && c.HasWebsite && c.FollowUpComplete:
		return TierLegendary
	case ratio >= 0.75 && c.HasFinancials && c.HasWebsite:
		return TierFull
	case ratio >= 0.5 && c.HasFinancials:
		return TierGood
	case ratio >= 0.25:
		return TierPartial
	default:
		return TierMinimal
	}
}

// SectionSet is the Stage 3 section names a tier enables. Every field
// matches a key in Stage 3's Portuguese JSON output.
type SectionSet struct {
	PESTEL            bool
	Porter            bool
	SWOT              bool
	BlueOcean         bool
	Positioning       bool
	TAMSAMSOM         bool
	BalancedScorecard bool
	OKRsFullYear      bool // false means Q1-only depth
	Roadmap           bool
	GrowthLoops       bool
	Scenarios         bool
	Recommendations   bool
	DecisionMatrix    bool
	IntegrationMap    bool
	CaseReferences    bool
	ReviewCycle       bool
}

// EnabledSections returns the fixed section set for t.
func (t Tier) EnabledSections() SectionSet {
	all := SectionSet{
		PESTEL: true, Porter: true, SWOT: true, BlueOcean: true, Positioning: true,
		TAMSAMSOM: true, BalancedScorecard: true, OKRsFullYear: true, Roadmap: true,
		GrowthLoops: true, Scenarios: true, Recommendations: true, DecisionMatrix: true,
		IntegrationMap: true, CaseReferences: true, ReviewCycle: true,
	}

	switch t {
	case TierLegendary, TierFull:
		return all
	case TierGood:
		good := all
		good.OKRsFullYear = false
		return good
	case TierPartial:
		partial := all
		partial.TAMSAMSOM = false
		partial.BalancedScorecard = false
		partial.OKRsFullYear = false
		return partial
	case TierMinimal:
		return SectionSet{PESTEL: true, SWOT: true, Positioning: true, Recommendations: true}
	default:
		return SectionSet{PESTEL: true, SWOT: true, Positioning: true, Recommendations: true}
	}
}
