// Package reconcile merges the per-source model.SourceResult fan-out
// into a single field→value mapping with a parallel field→confidence
// mapping and a reconciliation log, generalising teacher
// internal/waterfall's premium-cascade executor into a trust-weighted
// merge across every adapter tier at once.
package reconcile

// defaultSourceTrust mirrors SOURCE_RELIABILITY from the original
// confidence scorer: a 0-100 trust score per source, used when no
// field-specific override applies. Sources absent from this table
// (unknown adapters, future additions) fall back to 50.
var defaultSourceTrust = map[string]float64{
	"receita_ws":            95,
	"clearbit":              85,
	"google_places":         85,
	"proxycurl":             80,
	"opencorporates":        80,
	"metadata_enhanced":     70,
	"ai_inference_enhanced": 75,
	"deep_analysis":         75,
	"research_apify":        55,
	"metadata":              60,
	"ip_api":                60,
	"nominatim":             60,
}

const fallbackSourceTrust = 50

// fieldTrustOverride adjusts a source's trust for specific fields where
// that source is known to be unusually strong or weak, mirroring
// FIELD_CHARACTERISTICS' base_confidence blend (70% source, 30% field)
// without needing a second weighted average — these are the fields
// where the override is large enough to matter.
var fieldTrustOverride = map[string]map[string]float64{
	"cnpj":     {"receita_ws": 98},
	"place_id": {"google_places": 95},
	"rating":   {"google_places": 95},
}

// SourceTrust returns the trust score in [0,100] for a (source, field)
// pair.
func SourceTrust(source, field string) float64 {
	if byField, ok := fieldTrustOverride[field]; ok {
		if trust, ok := byField[source]; ok {
			return trust
		}
	}
	if trust, ok := defaultSourceTrust[source]; ok {
		return trust
	}
	return fallbackSourceTrust
}
