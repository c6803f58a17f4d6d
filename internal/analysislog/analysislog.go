// Package analysislog implements the per-run structured logger: per-stage
// start/end timestamps, token/cost totals, and a validation-warning
// trail, built on zap's structured logging idiom (the same pattern
// internal/llm and internal/cache use via zap.L()).
package analysislog

import (
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// Logger accumulates one pipeline run's stage timings, costs, and
// validation warnings into a model.LoggingSummary.
type Logger struct {
	submissionID int64
	company      string
	startedAt    time.Time

	stages   []model.StageLogEntry
	warnings []string

	inFlight map[string]stageStart
}

type stageStart struct {
	model     string
	startedAt time.Time
}

// New starts a logger for one submission.
func New(submissionID int64, company string) *Logger {
	return &Logger{
		submissionID: submissionID,
		company:      company,
		startedAt:    time.Now(),
		inFlight:     make(map[string]stageStart),
	}
}

// StageStart records the start of a stage and emits a structured log
// line, mirroring the original's log_stage_start.
func (l *Logger) StageStart(stage, modelID, task string) {
	l.inFlight[stage] = stageStart{model: modelID, startedAt: time.Now()}
	zap.L().Info("stage start",
		zap.Int64("submission_id", l.submissionID),
		zap.String("company", l.company),
		zap.String("stage", stage),
		zap.String("model", modelID),
		zap.String("task", task),
	)
}

// StageComplete records a stage's outcome. success=false with a non-empty
// err records a failure without panicking the caller — stage failures
// for non-mandatory stages are expected, logged traffic, not exceptional
// control flow.
func (l *Logger) StageComplete(stage string, usage model.UsageStats, costUSD float64, success bool, errMsg string) {
	start, ok := l.inFlight[stage]
	if !ok {
		start = stageStart{startedAt: time.Now()}
	}
	duration := time.Since(start.startedAt).Seconds()

	entry := model.StageLogEntry{
		Stage:        stage,
		Model:        start.model,
		DurationSec:  duration,
		InputTokens:  usage.InputTokens,
		OutputTokens: usage.OutputTokens,
		CostUSD:      costUSD,
		Success:      success,
		Error:        errMsg,
	}
	l.stages = append(l.stages, entry)
	delete(l.inFlight, stage)

	if success {
		zap.L().Info("stage complete",
			zap.String("stage", stage),
			zap.Float64("duration_seconds", duration),
			zap.Int("total_tokens", usage.InputTokens+usage.OutputTokens),
			zap.Float64("cost_usd", costUSD),
		)
		return
	}
	zap.L().Warn("stage failed",
		zap.String("stage", stage),
		zap.Float64("duration_seconds", duration),
		zap.String("error", errMsg),
	)
}

// Warn records a validation warning (a hallucination-scan miss, a
// language-enforcement rerun) surfaced in the final logging summary.
func (l *Logger) Warn(message string) {
	l.warnings = append(l.warnings, message)
	zap.L().Warn("validation warning", zap.String("message", message))
}

// Summary builds the final model.LoggingSummary for _metadata.
func (l *Logger) Summary() model.LoggingSummary {
	var totalIn, totalOut int
	var totalCost float64
	for _, s := range l.stages {
		totalIn += s.InputTokens
		totalOut += s.OutputTokens
		totalCost += s.CostUSD
	}
	return model.LoggingSummary{
		TotalCostUSD:      totalCost,
		TotalTokens:       totalIn + totalOut,
		TotalInputTokens:  totalIn,
		TotalOutputTokens: totalOut,
		Stages:            l.stages,
		Warnings:          l.warnings,
	}
}
