package pipeline

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// runStage1Cached runs Stage 1 through the per-stage content cache,
// logging its start/completion against the analysis logger.
func runStage1Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage1Input) (Stage1Output, error) {
	deps.Log.StageStart("extraction", deps.Models.Extraction.Primary, "extraction")
	res, err := deps.StageCache.Run(ctx, "extraction", sub.Company, sub.Industry, in, estimatedStageCostUSD["extraction"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage1(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["extraction"]
	if err != nil {
		deps.Log.StageComplete("extraction", res.Usage, cost, false, err.Error())
		return Stage1Output{}, err
	}
	var out Stage1Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		deps.Log.StageComplete("extraction", res.Usage, cost, false, jerr.Error())
		return Stage1Output{}, jerr
	}
	deps.Log.StageComplete("extraction", res.Usage, cost, true, "")
	return out, nil
}

func runStage2Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage2Input) (Stage2Output, error) {
	deps.Log.StageStart("gap_analysis", deps.Models.GapAnalysis.Primary, "gap_analysis")
	res, err := deps.StageCache.Run(ctx, "gap_analysis", sub.Company, sub.Industry, in, estimatedStageCostUSD["gap_analysis"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage2(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["gap_analysis"]
	if err != nil {
		deps.Log.StageComplete("gap_analysis", res.Usage, cost, false, err.Error())
		return Stage2Output{}, err
	}
	var out Stage2Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		deps.Log.StageComplete("gap_analysis", res.Usage, cost, false, jerr.Error())
		return Stage2Output{}, jerr
	}
	deps.Log.StageComplete("gap_analysis", res.Usage, cost, true, "")
	return out, nil
}

func runStage3Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage3Input) (Stage3Output, error) {
	deps.Log.StageStart("strategy", deps.Models.Strategy.Primary, "strategy")
	res, err := deps.StageCache.Run(ctx, "strategy", sub.Company, sub.Industry, in, estimatedStageCostUSD["strategy"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage3(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["strategy"]
	if err != nil {
		deps.Log.StageComplete("strategy", res.Usage, cost, false, err.Error())
		return Stage3Output{}, err
	}
	var out Stage3Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		deps.Log.StageComplete("strategy", res.Usage, cost, false, jerr.Error())
		return Stage3Output{}, jerr
	}
	deps.Log.StageComplete("strategy", res.Usage, cost, true, "")
	return out, nil
}

func runStage4Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage4Input) (Stage4Output, error) {
	deps.Log.StageStart("competitive", deps.Models.Competitive.Primary, "competitive")
	res, err := deps.StageCache.Run(ctx, "competitive", sub.Company, sub.Industry, in, estimatedStageCostUSD["competitive"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage4(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["competitive"]
	if err != nil {
		deps.Log.StageComplete("competitive", res.Usage, cost, false, err.Error())
		return Stage4Output{}, err
	}
	var out Stage4Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		deps.Log.StageComplete("competitive", res.Usage, cost, false, jerr.Error())
		return Stage4Output{}, jerr
	}
	deps.Log.StageComplete("competitive", res.Usage, cost, true, "")
	return out, nil
}

func runStage5Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage5Input) (Stage5Output, error) {
	deps.Log.StageStart("risk_scoring", deps.Models.RiskScoring.Primary, "risk_scoring")
	res, err := deps.StageCache.Run(ctx, "risk_scoring", sub.Company, sub.Industry, in, estimatedStageCostUSD["risk_scoring"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage5(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["risk_scoring"]
	if err != nil {
		deps.Log.StageComplete("risk_scoring", res.Usage, cost, false, err.Error())
		return Stage5Output{}, err
	}
	var out Stage5Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		deps.Log.StageComplete("risk_scoring", res.Usage, cost, false, jerr.Error())
		return Stage5Output{}, jerr
	}
	deps.Log.StageComplete("risk_scoring", res.Usage, cost, true, "")
	return out, nil
}

// runStage6Cached runs Stage 6 through the per-stage content cache with
// graceful degradation baked in: a cache or LLM failure logs a warning
// and returns in.Stage3 unchanged rather than propagating an error.
func runStage6Cached(ctx context.Context, deps Deps, sub model.Submission, in Stage6Input) Stage3Output {
	deps.Log.StageStart("polish", deps.Models.Polish.Primary, "polish")
	res, err := deps.StageCache.Run(ctx, "polish", sub.Company, sub.Industry, in, estimatedStageCostUSD["polish"], func(ctx context.Context) (json.RawMessage, model.UsageStats, error) {
		out, usage, err := RunStage6(ctx, deps.StageDeps, in)
		if err != nil {
			return nil, usage, err
		}
		raw, err := json.Marshal(out)
		return raw, usage, err
	})
	cost := deps.Tracker.ByStage()["polish"]
	if err != nil {
		zap.L().Warn("pipeline: polish failed, degrading to stage3 output unchanged", zap.Error(err))
		deps.Log.StageComplete("polish", res.Usage, cost, false, err.Error())
		return in.Stage3
	}
	var out Stage3Output
	if jerr := json.Unmarshal(res.Output, &out); jerr != nil {
		zap.L().Warn("pipeline: polish output malformed, degrading to stage3 output unchanged", zap.Error(jerr))
		deps.Log.StageComplete("polish", res.Usage, cost, false, jerr.Error())
		return in.Stage3
	}
	if out.TAMSAMSOM == nil {
		out.TAMSAMSOM = in.Stage3.TAMSAMSOM
	}
	deps.Log.StageComplete("polish", res.Usage, cost, true, "")
	return out
}
