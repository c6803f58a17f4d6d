package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSeverityBand(t *testing.T) {
	t.Parallel()
	cases := []struct {
		score float64
		want  string
	}{
		{7, "critical"},
		{10, "critical"},
		{4, "high"},
		{6.9, "high"},
		{2, "medium"},
		{3.9, "medium"},
		{0, "low"},
		{1.9, "low"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, severityBand(c.score))
	}
}

func TestNormalizeRiskScores_RecomputesFromProbabilityAndImpact(t *testing.T) {
	t.Parallel()
	entries := []RiskEntry{
		{Probability: 0.8, Impact: 9, RiskScore: 1, Severity: "made up"},
		{Probability: 0.1, Impact: 2, RiskScore: 999, Severity: "also made up"},
	}
	normalizeRiskScores(entries)
	assert.InDelta(t, 7.2, entries[0].RiskScore, 0.0001)
	assert.Equal(t, "critical", entries[0].Severity)
	assert.InDelta(t, 0.2, entries[1].RiskScore, 0.0001)
	assert.Equal(t, "low", entries[1].Severity)
}

func TestNormalizeEfficiencyRatios_DividesImpactByEffort(t *testing.T) {
	t.Parallel()
	entries := []RecommendationEntry{
		{Effort: 2, Impact: 8, EfficiencyRatio: -1},
	}
	normalizeEfficiencyRatios(entries)
	assert.InDelta(t, 4.0, entries[0].EfficiencyRatio, 0.0001)
}

func TestNormalizeEfficiencyRatios_ZeroEffortYieldsZeroNotInf(t *testing.T) {
	t.Parallel()
	entries := []RecommendationEntry{
		{Effort: 0, Impact: 8, EfficiencyRatio: -1},
		{Effort: -3, Impact: 8, EfficiencyRatio: -1},
	}
	normalizeEfficiencyRatios(entries)
	assert.Zero(t, entries[0].EfficiencyRatio)
	assert.Zero(t, entries[1].EfficiencyRatio)
}

func TestEnglishGiveawayCount_CountsFunctionWords(t *testing.T) {
	t.Parallel()
	raw := `{"note": "this is the plan for the company and its growth"}`
	// " this " (no), " is " x1, " the " x2, " for " x1, " and " x1 => 5
	assert.Equal(t, 5, englishGiveawayCount(raw))
}

func TestEnglishGiveawayCount_PortugueseTextScoresZero(t *testing.T) {
	t.Parallel()
	raw := `{"nota": "este é o plano para a empresa e seu crescimento"}`
	assert.Zero(t, englishGiveawayCount(raw))
}
