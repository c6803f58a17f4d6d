package main

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Run one confidence-learning pass over recorded field/source edit history",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("learn"); err != nil {
			return err
		}

		ctx := cmd.Context()
		e, err := buildEnv(ctx, cfg)
		if err != nil {
			return eris.Wrap(err, "learn: build environment")
		}
		defer e.Close()

		since := time.Now().AddDate(0, 0, -cfg.Confidence.LookbackDays)
		pairs, err := e.store.DistinctFieldSourcePairs(ctx, since)
		if err != nil {
			return eris.Wrap(err, "learn: list field/source pairs")
		}

		var updated, skipped int
		for _, pair := range pairs {
			field, source := pair[0], pair[1]
			result, err := e.learner.UpdateConfidenceForSource(ctx, field, source, cfg.Confidence.LookbackDays)
			if err != nil {
				zap.L().Warn("learn: pass failed", zap.String("field", field), zap.String("source", source), zap.Error(err))
				continue
			}
			if !result.Updated {
				skipped++
				zap.L().Debug("learn: skipped, insufficient sample",
					zap.String("field", field), zap.String("source", source),
					zap.Int("sample_size", result.SampleSize), zap.Int("required", result.RequiredSize))
				continue
			}
			updated++
			zap.L().Info("learn: confidence updated",
				zap.String("field", field), zap.String("source", source),
				zap.Float64("old_confidence", result.OldConfidence), zap.Float64("new_confidence", result.NewConfidence),
				zap.Strings("insights", result.Insights))
		}

		zap.L().Info("learn: pass complete", zap.Int("pairs_examined", len(pairs)), zap.Int("updated", updated), zap.Int("skipped", skipped))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(learnCmd)
}
