// Package confidence implements learned confidence adjustment: how often
// a user edits an auto-filled field informs how much that field/source
// pair should be trusted next time, replacing a static adapter trust
// score with a feedback loop trained on model.ValidationHistoryRecord /
// model.SourcePerformanceRecord.
package confidence

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

// Default tuning values, used when a Learner is built with a zero
// Thresholds (e.g. in tests). cmd/env.go wires these from
// config.ConfidenceConfig in normal operation.
const (
	DefaultHighEditThreshold = 0.30
	DefaultLowEditThreshold  = 0.05
	DefaultMaxConfidence     = 0.98
	DefaultMinConfidence     = 0.10
	DefaultBoostMultiplier   = 1.2
	DefaultPenaltyMultiplier = 0.7
	DefaultMinSampleSize     = 10

	defaultBaseConfidence = 0.70

	significantEditRateThreshold = 0.5
	largeEditDistanceThreshold   = 10.0
	smallEditDistanceThreshold   = 2.0
)

// Thresholds holds the tunable knobs of the learning formula, mirrored
// from config.ConfidenceConfig so this package stays free of a
// dependency on internal/config.
type Thresholds struct {
	HighEditThreshold float64
	LowEditThreshold  float64
	MaxConfidence     float64
	MinConfidence     float64
	BoostMultiplier   float64
	PenaltyMultiplier float64
	MinSampleSize     int
}

func (t Thresholds) orDefaults() Thresholds {
	if t.HighEditThreshold == 0 {
		t.HighEditThreshold = DefaultHighEditThreshold
	}
	if t.LowEditThreshold == 0 {
		t.LowEditThreshold = DefaultLowEditThreshold
	}
	if t.MaxConfidence == 0 {
		t.MaxConfidence = DefaultMaxConfidence
	}
	if t.MinConfidence == 0 {
		t.MinConfidence = DefaultMinConfidence
	}
	if t.BoostMultiplier == 0 {
		t.BoostMultiplier = DefaultBoostMultiplier
	}
	if t.PenaltyMultiplier == 0 {
		t.PenaltyMultiplier = DefaultPenaltyMultiplier
	}
	if t.MinSampleSize == 0 {
		t.MinSampleSize = DefaultMinSampleSize
	}
	return t
}

// Adjustment is the multiplier a learner pass derived for a field/source
// pair, plus the reasoning behind it.
type Adjustment struct {
	Multiplier          float64
	Type                string // "penalty", "boost", or "neutral"
	Reasoning           []string
	EditRate            float64
	SignificantEditRate float64
	AvgEditDistance     float64
}

// UpdateResult is the outcome of one learning pass over a field/source
// pair.
type UpdateResult struct {
	Updated       bool
	Reason        string
	SampleSize    int
	RequiredSize  int
	OldConfidence float64
	NewConfidence float64
	Adjustment    Adjustment
	Insights      []string
}

// Learner trains confidence adjustments from a store's recorded
// suggestion/edit history.
type Learner struct {
	store      store.Store
	thresholds Thresholds
}

// NewLearner builds a Learner using the given Thresholds. A zero
// Thresholds falls back to the original learner's defaults field by
// field, so callers that only care about overriding e.g. MinSampleSize
// don't have to fill in every knob.
func NewLearner(s store.Store, thresholds Thresholds) *Learner {
	return &Learner{store: s, thresholds: thresholds.orDefaults()}
}

// UpdateConfidenceForSource recomputes the learned confidence for one
// (field, source) pair using history from the last lookbackDays,
// persisting the result via UpsertSourcePerformance.
func (l *Learner) UpdateConfidenceForSource(ctx context.Context, field, source string, lookbackDays int) (UpdateResult, error) {
	since := time.Now().AddDate(0, 0, -lookbackDays)

	stats, err := l.calculateEditStats(ctx, field, source, since)
	if err != nil {
		return UpdateResult{}, eris.Wrapf(err, "calculate edit stats for %s/%s", field, source)
	}

	if stats.totalSuggestions < l.thresholds.MinSampleSize {
		return UpdateResult{
			Updated:      false,
			Reason:       "insufficient_data",
			SampleSize:   stats.totalSuggestions,
			RequiredSize: l.thresholds.MinSampleSize,
		}, nil
	}

	adjustment := calculateAdjustment(stats, l.thresholds)

	existing, err := l.store.GetSourcePerformance(ctx, field, source)
	if err != nil {
		return UpdateResult{}, eris.Wrapf(err, "load source performance for %s/%s", field, source)
	}

	oldConfidence := defaultBaseConfidence
	if existing != nil {
		oldConfidence = existing.Confidence
	}

	newConfidence := clamp(oldConfidence*adjustment.Multiplier, l.thresholds.MinConfidence, l.thresholds.MaxConfidence)
	newSuccessRate := 1 - stats.editRate

	rec := model.SourcePerformanceRecord{
		Field:      field,
		Source:     source,
		Confidence: newConfidence,
		SampleSize: stats.totalSuggestions,
		EditRate:   newSuccessRate,
		UpdatedAt:  time.Now(),
	}
	if err := l.store.UpsertSourcePerformance(ctx, rec); err != nil {
		return UpdateResult{}, eris.Wrapf(err, "persist source performance for %s/%s", field, source)
	}

	return UpdateResult{
		Updated:       true,
		OldConfidence: oldConfidence,
		NewConfidence: newConfidence,
		Adjustment:    adjustment,
		Insights:      generateInsights(field, source, stats, adjustment),
	}, nil
}

type editStats struct {
	totalSuggestions    int
	totalEdits          int
	editRate            float64
	avgEditDistance     float64
	significantEdits    int
	significantEditRate float64
}

func (l *Learner) calculateEditStats(ctx context.Context, field, source string, since time.Time) (editStats, error) {
	totalSuggestions, err := l.store.CountAutoFillSuggestions(ctx, field, source, since)
	if err != nil {
		return editStats{}, err
	}

	history, err := l.store.ListValidationHistory(ctx, field, source, since)
	if err != nil {
		return editStats{}, err
	}

	var totalEdits, significantEdits, distanceSum int
	for _, rec := range history {
		if !rec.WasEdited {
			continue
		}
		totalEdits++
		distanceSum += rec.EditDistance
		editType := Classify(rec.EditDistance, len(rec.SuggestedValue), len(rec.FinalValue))
		if IsSignificant(editType) {
			significantEdits++
		}
	}

	stats := editStats{
		totalSuggestions: totalSuggestions,
		totalEdits:       totalEdits,
		significantEdits: significantEdits,
	}
	if totalSuggestions > 0 {
		stats.editRate = float64(totalEdits) / float64(totalSuggestions)
	}
	if totalEdits > 0 {
		stats.avgEditDistance = float64(distanceSum) / float64(totalEdits)
		stats.significantEditRate = float64(significantEdits) / float64(totalEdits)
	}
	return stats, nil
}

// calculateAdjustment derives a confidence multiplier from edit
// patterns, per the original learner's three-factor formula.
func calculateAdjustment(stats editStats, t Thresholds) Adjustment {
	multiplier := 1.0
	adjType := "neutral"
	var reasoning []string

	switch {
	case stats.editRate > t.HighEditThreshold:
		penalty := 1 - ((stats.editRate - t.HighEditThreshold) / (1 - t.HighEditThreshold))
		multiplier *= maxFloat(t.PenaltyMultiplier, penalty)
		adjType = "penalty"
		reasoning = append(reasoning, fmt.Sprintf("high edit rate (%.0f%%) indicates unreliable data", stats.editRate*100))
	case stats.editRate < t.LowEditThreshold:
		multiplier *= t.BoostMultiplier
		adjType = "boost"
		reasoning = append(reasoning, fmt.Sprintf("low edit rate (%.0f%%) indicates reliable data", stats.editRate*100))
	}

	if stats.significantEditRate > significantEditRateThreshold {
		multiplier *= 0.85
		reasoning = append(reasoning, fmt.Sprintf("high significant edit rate (%.0f%%) indicates poor data quality", stats.significantEditRate*100))
	}

	switch {
	case stats.avgEditDistance > largeEditDistanceThreshold:
		multiplier *= 0.90
		reasoning = append(reasoning, fmt.Sprintf("large average edit distance (%.1f) indicates inaccurate suggestions", stats.avgEditDistance))
	case stats.avgEditDistance < smallEditDistanceThreshold && stats.editRate > 0:
		multiplier *= 1.05
		reasoning = append(reasoning, fmt.Sprintf("small average edit distance (%.1f) indicates minor corrections only", stats.avgEditDistance))
	}

	return Adjustment{
		Multiplier:          multiplier,
		Type:                adjType,
		Reasoning:           reasoning,
		EditRate:            stats.editRate,
		SignificantEditRate: stats.significantEditRate,
		AvgEditDistance:     stats.avgEditDistance,
	}
}

func generateInsights(field, source string, stats editStats, adjustment Adjustment) []string {
	var insights []string

	switch adjustment.Type {
	case "penalty":
		insights = append(insights, fmt.Sprintf("%s %s edited %.0f%% -> confidence reduced to %.0f%%", source, field, stats.editRate*100, adjustment.Multiplier*100))
	case "boost":
		insights = append(insights, fmt.Sprintf("%s %s rarely edited (%.0f%%) -> confidence increased by %.0f%%", source, field, stats.editRate*100, (adjustment.Multiplier-1)*100))
	default:
		insights = append(insights, fmt.Sprintf("%s %s has moderate edit rate (%.0f%%) -> no adjustment", source, field, stats.editRate*100))
	}

	if stats.significantEditRate > significantEditRateThreshold {
		insights = append(insights, fmt.Sprintf("%.0f%% of edits are major rewrites", stats.significantEditRate*100))
	}

	return insights
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
