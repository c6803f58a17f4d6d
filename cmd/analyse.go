package main

import (
	"encoding/json"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/analysislog"
	"github.com/sells-group/strategy-pipeline/internal/cost"
	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/pipeline"
	"github.com/sells-group/strategy-pipeline/internal/sources"
)

var (
	analyseInputPath string
	analyseQuick     bool
)

var submissionValidator = validator.New()

var analyseCmd = &cobra.Command{
	Use:   "analyse",
	Short: "Run the strategic analysis pipeline for one submission",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("analyse"); err != nil {
			return err
		}

		sub, err := loadSubmission(analyseInputPath)
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := buildEnv(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "analyse: build environment")
		}
		defer e.Close()

		deps := pipeline.Deps{
			StageDeps: pipeline.StageDeps{
				LLM:      e.llmClient,
				Research: researchClient(cfg.Research),
				Calc:     e.calc,
				Tracker:  cost.NewTracker(),
				Log:      analysislog.New(sub.ID, sub.Company),
				Models:   cfg.Models,
			},
			Store:           e.store,
			MultiTier:       e.multiTier,
			StageCache:      e.stageCache,
			Sources:         e.sourceReg,
			SourceBudget:    sources.TierPremium,
			AnalysisTimeout: analysisTimeout(cfg),
		}

		report, err := pipeline.Analyse(ctx, deps, sub, !analyseQuick)
		if err != nil {
			zap.L().Error("analyse: pipeline failed", zap.Error(err))
			return eris.Wrap(err, "analyse: pipeline")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	},
}

func init() {
	analyseCmd.Flags().StringVar(&analyseInputPath, "input", "", "path to a submission JSON file (required)")
	analyseCmd.Flags().BoolVar(&analyseQuick, "quick", false, "run only stages 1, 3 and 6 (skip gap follow-up, competitive matrix and risk scoring)")
	_ = analyseCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyseCmd)
}

func loadSubmission(path string) (model.Submission, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return model.Submission{}, eris.Wrap(err, "analyse: read submission file")
	}

	var sub model.Submission
	if err := json.Unmarshal(raw, &sub); err != nil {
		return model.Submission{}, eris.Wrap(err, "analyse: parse submission file")
	}

	if err := submissionValidator.Struct(sub); err != nil {
		return model.Submission{}, eris.Wrap(err, "analyse: submission failed validation")
	}

	return sub, nil
}
