package reconcile

import (
	"fmt"
	"sort"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// listFields get unioned (preserving first-seen order, truncated to 5)
// rather than picked, since more than one source naming specialties or
// detected technologies is additive information, not disagreement.
var listFields = map[string]bool{
	"specialties":        true,
	"tags":               true,
	"likely_tech_stack":  true,
	"website_tech":       true,
	"growth_signals":     true,
	"risk_flags":         true,
	"competitor_results": true,
}

// numericRangeFields keep the single highest-trust contribution rather
// than averaging or unioning — a lower-trust employee-count band is
// noise next to Clearbit's, not a second data point to blend.
var numericRangeFields = map[string]bool{
	"employee_count":       true,
	"annual_revenue":       true,
	"employee_count_exact": true,
}

const listFieldLimit = 5

// Contribution is one source's reported value for a field, carrying the
// trust score it was reconciled with.
type Contribution struct {
	Source string
	Value  any
	Trust  float64
}

// LogEntry records a field whose contributions were reconciled because
// at least two sources competed for it.
type LogEntry struct {
	FieldKey     string
	Winner       string
	Contributors []string
}

// Result is the output of Merge: the reconciled field values, a
// parallel per-field confidence score in [0,100], and a log of every
// field more than one source contributed to.
type Result struct {
	Fields     map[string]any
	Confidence map[string]float64
	Log        []LogEntry
}

// Merge reconciles a source_name → SourceResult mapping (only successful
// results carry usable Fields) into one merged view. Gap inference
// (company_size, digital_maturity) and CNPJ-validation confidence
// penalties are layered on afterward by ApplyGapInference and
// ApplyCNPJPenalty — Merge itself only merges fields by trust.
func Merge(results map[string]model.SourceResult) Result {
	contributions := collectContributions(results)

	out := Result{
		Fields:     make(map[string]any, len(contributions)),
		Confidence: make(map[string]float64, len(contributions)),
	}

	for _, field := range sortedKeys(contributions) {
		contribs := contributions[field]
		if len(contribs) == 0 {
			continue
		}

		value, confidence, winner := resolveField(field, contribs)
		out.Fields[field] = value
		out.Confidence[field] = confidence

		if len(contribs) > 1 {
			names := make([]string, len(contribs))
			for i, c := range contribs {
				names[i] = c.Source
			}
			out.Log = append(out.Log, LogEntry{FieldKey: field, Winner: winner, Contributors: names})
		}
	}

	return out
}

func collectContributions(results map[string]model.SourceResult) map[string][]Contribution {
	contributions := make(map[string][]Contribution)
	for _, sourceNames := range sortedResultKeys(results) {
		res := results[sourceNames]
		if !res.Success {
			continue
		}
		for field, value := range res.Fields {
			contributions[field] = append(contributions[field], Contribution{
				Source: res.Source,
				Value:  value,
				Trust:  SourceTrust(res.Source, field),
			})
		}
	}
	return contributions
}

func resolveField(field string, contribs []Contribution) (value any, confidence float64, winner string) {
	if len(contribs) == 1 {
		return contribs[0].Value, contribs[0].Trust, contribs[0].Source
	}

	switch {
	case listFields[field]:
		return mergeListField(contribs)
	case numericRangeFields[field]:
		return pickHighestTrust(contribs)
	default:
		return pickHighestTrust(contribs)
	}
}

// mergeListField unions list-like contributions preserving first-seen
// order, truncated to listFieldLimit, with confidence set to the average
// trust across contributing sources.
func mergeListField(contribs []Contribution) (any, float64, string) {
	seen := make(map[string]bool)
	var merged []any
	var totalTrust float64

	for _, c := range contribs {
		totalTrust += c.Trust

		items, ok := toAnySlice(c.Value)
		if !ok {
			continue
		}
		for _, item := range items {
			key := fmtKey(item)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, item)
			if len(merged) >= listFieldLimit {
				break
			}
		}
		if len(merged) >= listFieldLimit {
			break
		}
	}

	avgTrust := totalTrust / float64(len(contribs))
	return merged, avgTrust, "union"
}

// pickHighestTrust returns the highest-trust contribution, ties broken
// by first-seen order (the order Contributions were appended in, which
// follows the deterministic sourceNames iteration collectContributions
// uses).
func pickHighestTrust(contribs []Contribution) (any, float64, string) {
	best := contribs[0]
	for _, c := range contribs[1:] {
		if c.Trust > best.Trust {
			best = c
		}
	}
	return best.Value, best.Trust, best.Source
}

func toAnySlice(v any) ([]any, bool) {
	switch vv := v.(type) {
	case []any:
		return vv, true
	case []string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	case []map[string]string:
		out := make([]any, len(vv))
		for i, s := range vv {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

func fmtKey(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func sortedKeys(m map[string][]Contribution) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedResultKeys(m map[string]model.SourceResult) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
