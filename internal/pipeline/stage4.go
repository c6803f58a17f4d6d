package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage4MaxTokens = 3500
const temperatureCompetitive = 0.5
const minCompetitorsDetailed = 5

// Stage4Input is the competitive-matrix stage's input: Stage 1's
// extracted competitor list plus whatever Stage 2 follow-up research
// turned up about them.
type Stage4Input struct {
	Company  string
	Industry string
	Stage1   Stage1Output
	FollowUp Stage2Output
}

// Stage4Output is the competitive-intelligence section of the final
// report. Non-fatal on failure: the orchestrator logs and omits it.
type Stage4Output struct {
	AnaliseCompetitivaDetalhada []CompetitorDetail `json:"analise_competitiva_detalhada"`
	PositioningMatrix           map[string]any     `json:"positioning_matrix,omitempty"`
	Gaps                        []string           `json:"gaps,omitempty"`
	Threats                     []string           `json:"threats,omitempty"`
}

// CompetitorDetail is one row of the detailed competitive matrix.
type CompetitorDetail struct {
	Nome           string   `json:"nome"`
	PontosFortes   []string `json:"pontos_fortes,omitempty"`
	PontosFracos   []string `json:"pontos_fracos,omitempty"`
	Posicionamento string   `json:"posicionamento,omitempty"`
	AmeacaNivel    string   `json:"ameaca_nivel,omitempty"`
}

// RunStage4 builds the competitive matrix. Model tier: premium,
// Portuguese-enforcing system prompt. Failure here is non-fatal — the
// orchestrator catches the error, logs it, and omits the section.
func RunStage4(ctx context.Context, deps StageDeps, in Stage4Input) (Stage4Output, model.UsageStats, error) {
	slot := deps.Models.Competitive
	prompt := buildStage4Prompt(in)
	systemPrompt := "Você é um analista de inteligência competitiva brasileiro. Responda SOMENTE em português do Brasil, com JSON válido."

	raw, usage, modelUsed, err := callChain(ctx, deps, "competitive", []string{slot.Primary, slot.PaidFallback, slot.FreeFallback}, systemPrompt, prompt, temperatureCompetitive, stage4MaxTokens)
	if err != nil {
		return Stage4Output{}, usage, err
	}

	var out Stage4Output
	if err := decodeStageJSON("competitive", modelUsed, raw, &out); err != nil {
		return Stage4Output{}, usage, err
	}

	if len(out.AnaliseCompetitivaDetalhada) < minCompetitorsDetailed {
		zap.L().Warn("stage4: fewer than the expected minimum competitors returned",
			zap.Int("count", len(out.AnaliseCompetitivaDetalhada)), zap.Int("minimum", minCompetitorsDetailed))
	}

	return out, usage, nil
}

func buildStage4Prompt(in Stage4Input) string {
	competitors, _ := json.MarshalIndent(in.Stage1.Competitors, "", "  ")
	research, _ := json.MarshalIndent(in.FollowUp.FollowUpResearch, "", "  ")

	return fmt.Sprintf(`# MATRIZ COMPETITIVA PARA %s (%s)

## Concorrentes Conhecidos
%s

## Pesquisa Adicional
%s

# SUA TAREFA

Construa uma matriz competitiva detalhada com NO MÍNIMO %d concorrentes. Para cada um, forneça pontos fortes, pontos fracos, posicionamento de mercado e nível de ameaça (baixo/médio/alto). Identifique lacunas (gaps) na oferta competitiva e as principais ameaças ao negócio.

Retorne JSON com as chaves: analise_competitiva_detalhada (array de {nome, pontos_fortes, pontos_fracos, posicionamento, ameaca_nivel}), positioning_matrix, gaps, threats.

Responda SOMENTE em português do Brasil. Apenas JSON, sem markdown.`, in.Company, in.Industry, string(competitors), string(research), minCompetitorsDetailed)
}
