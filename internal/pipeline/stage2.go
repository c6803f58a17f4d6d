package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage2AnalysisMaxTokens = 800
const stage2FollowupMaxTokens = 1200
const stage2MaxQueries = 3

// Stage2Input carries Stage 1's identified data gaps forward for
// follow-up research.
type Stage2Input struct {
	Company  string
	Industry string
	Stage1   Stage1Output
}

// Stage2Output is Stage 2's follow-up research result. FollowUpCompleted
// is false whenever there were no gaps to chase or every query failed —
// Stage 2 never fails the pipeline.
type Stage2Output struct {
	FollowUpCompleted bool                      `json:"follow_up_completed"`
	FollowUpResearch  map[string]FollowUpResult `json:"follow_up_research"`
	DataGapsFilled    int                       `json:"data_gaps_filled"`
	PriorityGaps      []string                  `json:"priority_gaps"`
}

// FollowUpResult is one completed follow-up research query.
type FollowUpResult struct {
	Query    string `json:"query"`
	Research string `json:"research"`
}

type stage2QueryPlan struct {
	FollowUpQueries []string `json:"follow_up_queries"`
	PriorityGaps    []string `json:"priority_gaps"`
}

// RunStage2 identifies the most important data gaps from Stage 1 and
// dispatches up to stage2MaxQueries targeted queries to a real-time
// research client. Non-fatal by construction: every failure path returns
// a zero-value-ish Stage2Output and nil error, never propagating up.
func RunStage2(ctx context.Context, deps StageDeps, in Stage2Input) (Stage2Output, model.UsageStats, error) {
	if len(in.Stage1.DataGaps) == 0 {
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: map[string]FollowUpResult{}}, model.UsageStats{}, nil
	}
	if deps.Research == nil {
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: map[string]FollowUpResult{}}, model.UsageStats{}, nil
	}

	slot := deps.Models.GapAnalysis
	prompt := buildStage2Prompt(in)
	systemPrompt := "You are a research analyst. Generate targeted queries to fill data gaps. Output JSON only."

	raw, usage, modelUsed, err := callChain(ctx, deps, "gap_analysis", []string{slot.Primary, slot.FreeFallback}, systemPrompt, prompt, temperatureFactual, stage2AnalysisMaxTokens)
	if err != nil {
		zap.L().Warn("stage2: gap analysis failed, skipping follow-up", zap.Error(err))
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: map[string]FollowUpResult{}}, model.UsageStats{}, nil
	}

	var plan stage2QueryPlan
	if err := decodeStageJSON("gap_analysis", modelUsed, raw, &plan); err != nil {
		zap.L().Warn("stage2: query plan decode failed, skipping follow-up", zap.Error(err))
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: map[string]FollowUpResult{}}, usage, nil
	}

	queries := plan.FollowUpQueries
	if len(queries) > stage2MaxQueries {
		queries = queries[:stage2MaxQueries]
	}
	if len(queries) == 0 {
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: map[string]FollowUpResult{}}, usage, nil
	}

	results := make(map[string]FollowUpResult, len(queries))
	for i, query := range queries {
		text, researchUsage, err := deps.Research.Research(ctx, query, stage2FollowupMaxTokens)
		if err != nil {
			zap.L().Warn("stage2: follow-up query failed", zap.Int("index", i+1), zap.Error(err))
			continue
		}
		key := fmt.Sprintf("followup_%d", i+1)
		results[key] = FollowUpResult{Query: query, Research: text}
		usage.InputTokens += researchUsage.InputTokens
		usage.OutputTokens += researchUsage.OutputTokens
	}

	if len(results) == 0 {
		return Stage2Output{FollowUpCompleted: false, FollowUpResearch: results, PriorityGaps: plan.PriorityGaps}, usage, nil
	}

	return Stage2Output{
		FollowUpCompleted: true,
		FollowUpResearch:  results,
		DataGapsFilled:    len(results),
		PriorityGaps:      plan.PriorityGaps,
	}, usage, nil
}

func buildStage2Prompt(in Stage2Input) string {
	gaps, _ := json.MarshalIndent(in.Stage1.DataGaps, "", "  ")
	return fmt.Sprintf(`Based on these data gaps for %s in %s, generate up to %d targeted research queries:

Data Gaps Identified:
%s

Generate specific, actionable research queries that would fill the most important gaps. Focus on high-impact gaps (competitor data, market sizing, financial metrics).

Return JSON:
{
  "follow_up_queries": ["Specific query 1", "Specific query 2"],
  "priority_gaps": ["Most critical gap to fill"]
}`, in.Company, in.Industry, stage2MaxQueries, string(gaps))
}
