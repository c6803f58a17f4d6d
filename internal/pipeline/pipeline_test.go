package pipeline_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/analysislog"
	"github.com/sells-group/strategy-pipeline/internal/apperr"
	"github.com/sells-group/strategy-pipeline/internal/cache"
	"github.com/sells-group/strategy-pipeline/internal/config"
	"github.com/sells-group/strategy-pipeline/internal/cost"
	"github.com/sells-group/strategy-pipeline/internal/llm"
	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/pipeline"
	"github.com/sells-group/strategy-pipeline/internal/store"
)

// canned maps a fake model ID to the JSON body it should answer with, so
// one httptest server can stand in for every stage at once — the model ID
// a stage calls (deps.Models.<Stage>.Primary) is the dispatch key.
type canned map[string]string

func newStageServer(t *testing.T, responses canned) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		body, ok := responses[req.Model]
		if !ok {
			http.Error(w, "no canned response for model "+req.Model, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": body}},
			},
			"usage": map[string]int{"prompt_tokens": 100, "completion_tokens": 50},
		})
	}))
}

const (
	modelExtraction  = "test/extraction"
	modelGapAnalysis = "test/gap-analysis"
	modelStrategy    = "test/strategy"
	modelCompetitive = "test/competitive"
	modelRisk        = "test/risk"
	modelPolish      = "test/polish"
)

func testModels() config.ModelsConfig {
	return config.ModelsConfig{
		Extraction:  config.ModelSlot{Primary: modelExtraction},
		GapAnalysis: config.ModelSlot{Primary: modelGapAnalysis},
		Strategy:    config.ModelSlot{Primary: modelStrategy},
		Competitive: config.ModelSlot{Primary: modelCompetitive},
		RiskScoring: config.ModelSlot{Primary: modelRisk},
		Polish:      config.ModelSlot{Primary: modelPolish},
	}
}

const stage1Response = `{
	"company_facts": {"legal_name": "Acme Ltda"},
	"competitors": [{"name": "Rival Co"}],
	"market_intelligence": {"tam_total_market": "R$ 10 milhões (fonte: IBGE)"},
	"industry_trends": [],
	"news_and_developments": [],
	"customer_intelligence": {},
	"data_gaps": ["Missing: annual revenue"]
}`

const stage3Response = `{
	"pestel": {"political": "estável"},
	"swot": {"forcas": ["marca forte"]},
	"recommendations": [{"title": "Expandir para o Sudeste"}],
	"strategy_sections": {"included": true}
}`

const stage4Response = `{
	"analise_competitiva_detalhada": [{"nome": "Rival Co", "pontos_fortes": ["preço"]}]
}`

const stage5Response = `{
	"risk_analysis": [{"description": "concentração de clientes", "probability": 0.4, "impact": 0.6}],
	"recommendation_scoring": [],
	"priority_matrix": {}
}`

const stage6Response = `{
	"pestel": {"political": "estável e previsível"},
	"swot": {"forcas": ["marca forte"]},
	"recommendations": [{"title": "Expandir para o Sudeste"}],
	"strategy_sections": {"included": true}
}`

type fakeResearch struct {
	responses map[string]string
}

func (f *fakeResearch) Research(_ context.Context, query string, _ int) (string, model.UsageStats, error) {
	return f.responses[query], model.UsageStats{InputTokens: 10, OutputTokens: 5}, nil
}

func newTestDeps(t *testing.T, responses canned, research pipeline.ResearchClient) (pipeline.Deps, func()) {
	t.Helper()

	srv := newStageServer(t, responses)

	st, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))

	stageCache := cache.NewStageCache(st, time.Hour)
	multiTier := cache.NewMultiTier(
		cache.NewHotTier(),
		func(domain string, layer int) cache.Tier { return cache.NewWarmTier(st, domain, layer) },
		nil,
		time.Minute, 24*time.Hour,
		cache.NewStats(prometheus.NewRegistry()),
	)

	llmClient := llm.NewClient(config.OpenRouterConfig{Key: "test", BaseURL: srv.URL}, nil, nil)

	deps := pipeline.Deps{
		StageDeps: pipeline.StageDeps{
			LLM:      llmClient,
			Research: research,
			Calc:     cost.NewCalculator(cost.DefaultPricing()),
			Tracker:  cost.NewTracker(),
			Log:      analysislog.New(1, "Acme Ltda"),
			Models:   testModels(),
		},
		Store:        st,
		MultiTier:    multiTier,
		StageCache:   stageCache,
		Sources:      nil,
		SourceBudget: 0,
	}

	return deps, func() { srv.Close(); _ = st.Close() }
}

func testSubmission() model.Submission {
	return model.Submission{ID: 1, Company: "Acme Ltda", Industry: "varejo"}
}

func TestAnalyse_FullRun(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction:  stage1Response,
		modelGapAnalysis: `{"follow_up_queries": ["annual revenue for Acme?"], "priority_gaps": ["annual revenue"]}`,
		modelStrategy:    stage3Response,
		modelCompetitive: stage4Response,
		modelRisk:        stage5Response,
		modelPolish:      stage6Response,
	}
	research := &fakeResearch{responses: map[string]string{
		"annual revenue for Acme?": "R$ 5 milhões em 2025 (fonte: Receita Federal)",
	}}

	deps, cleanup := newTestDeps(t, responses, research)
	defer cleanup()

	report, err := pipeline.Analyse(context.Background(), deps, testSubmission(), true)
	require.NoError(t, err)

	assert.Equal(t, "Acme Ltda", report.CompanyInfo["legal_name"])
	assert.NotEmpty(t, report.Parte1OndeEstamos["analise_pestel"])
	assert.NotEmpty(t, report.Parte1OndeEstamos["analise_swot"])
	recs, _ := report.Parte4OQueFazerAgora["recomendacoes_prioritarias"].([]map[string]any)
	assert.Len(t, recs, 1)
	assert.NotNil(t, report.CompetitiveIntel)
	assert.NotNil(t, report.RiskPriority)
	assert.NotNil(t, report.FollowUpResearch)
	assert.ElementsMatch(t, []string{"extraction", "gap_analysis", "strategy", "competitive", "risk_scoring", "polish"}, report.Metadata.StagesCompleted)
	assert.Equal(t, 1, report.Metadata.DataGapsFilled)
	assert.True(t, report.Metadata.UsedResearch)
}

func TestAnalyse_NestedPartesResolveLiteralScenarioPaths(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
		modelStrategy:   stage3Response,
		modelPolish:     stage6Response,
	}
	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	report, err := pipeline.Analyse(context.Background(), deps, testSubmission(), false)
	require.NoError(t, err)

	swot, ok := report.Parte1OndeEstamos["analise_swot"]
	assert.True(t, ok)
	assert.NotEmpty(t, swot)

	_, ok = report.Parte2OndeQueremosIr["tam_sam_som"]
	assert.True(t, ok)

	_, ok = report.Parte3ComoChegarLa["okrs_propostos"]
	assert.True(t, ok)

	_, ok = report.Parte4OQueFazerAgora["recomendacoes_prioritarias"]
	assert.True(t, ok)
}

func TestAnalyse_QuickRunSkipsOptionalStages(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
		modelStrategy:   stage3Response,
		modelPolish:     stage6Response,
	}

	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	report, err := pipeline.Analyse(context.Background(), deps, testSubmission(), false)
	require.NoError(t, err)

	assert.Nil(t, report.CompetitiveIntel)
	assert.Nil(t, report.RiskPriority)
	assert.Nil(t, report.FollowUpResearch)
	assert.ElementsMatch(t, []string{"extraction", "strategy", "polish"}, report.Metadata.StagesCompleted)
}

func TestAnalyse_Stage1FailureIsFatal(t *testing.T) {
	t.Parallel()

	deps, cleanup := newTestDeps(t, canned{}, nil)
	defer cleanup()

	_, err := pipeline.Analyse(context.Background(), deps, testSubmission(), false)
	require.Error(t, err)

	var fatal *apperr.FatalPipelineError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "extraction", fatal.FailedStage)
}

func TestAnalyse_Stage3FailureIsFatal(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
	}
	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	_, err := pipeline.Analyse(context.Background(), deps, testSubmission(), false)
	require.Error(t, err)

	var fatal *apperr.FatalPipelineError
	require.ErrorAs(t, err, &fatal)
	assert.Equal(t, "strategy", fatal.FailedStage)
}

func TestAnalyse_Stage4And5FailuresAreNonFatal(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
		modelStrategy:   stage3Response,
		modelPolish:     stage6Response,
		// modelCompetitive and modelRisk deliberately omitted: the stub
		// server answers with a 400, which RunStage4/5 should surface as
		// a non-fatal error the orchestrator logs and omits.
	}

	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	report, err := pipeline.Analyse(context.Background(), deps, testSubmission(), true)
	require.NoError(t, err)

	assert.Nil(t, report.CompetitiveIntel)
	assert.Nil(t, report.RiskPriority)
	assert.NotEmpty(t, report.Parte1OndeEstamos["analise_pestel"])
	assert.NotContains(t, report.Metadata.StagesCompleted, "competitive")
	assert.NotContains(t, report.Metadata.StagesCompleted, "risk_scoring")
}

func TestAnalyse_Stage6DegradesToStage3OnFailure(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
		modelStrategy:   stage3Response,
		// modelPolish omitted: stage 6 fails, orchestrator should fall
		// back to stage 3's unpolished output rather than erroring.
	}

	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	report, err := pipeline.Analyse(context.Background(), deps, testSubmission(), false)
	require.NoError(t, err)

	// Stage 6 degrades rather than fails the run, so stage 3's prose
	// survives unpolished and "polish" is still recorded as completed.
	pestel, _ := report.Parte1OndeEstamos["analise_pestel"].(map[string]any)
	assert.Equal(t, "estável", pestel["political"])
	assert.Contains(t, report.Metadata.StagesCompleted, "polish")
}

func TestAnalyse_StageCacheHitSkipsModelCall(t *testing.T) {
	t.Parallel()

	responses := canned{
		modelExtraction: stage1Response,
		modelStrategy:   stage3Response,
		modelPolish:     stage6Response,
	}

	deps, cleanup := newTestDeps(t, responses, nil)
	defer cleanup()

	sub := testSubmission()
	first, err := pipeline.Analyse(context.Background(), deps, sub, false)
	require.NoError(t, err)

	// Break the server for every model; a cache hit must still succeed
	// since RunStageN is never invoked again for identical input.
	deps.StageDeps.LLM = llm.NewClient(config.OpenRouterConfig{Key: "test", BaseURL: "http://127.0.0.1:1"}, nil, nil)

	second, err := pipeline.Analyse(context.Background(), deps, sub, false)
	require.NoError(t, err)
	assert.Equal(t, first.CompanyInfo, second.CompanyInfo)
	assert.Equal(t, first.Parte1OndeEstamos, second.Parte1OndeEstamos)
}
