package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage6MaxTokens = 6000
const temperaturePolish = 0.4

// Stage6Input carries Stage 3's output forward for a prose pass. Only
// the free-text sections are meant to change; numbers, dates and
// recommendation content must survive unchanged.
type Stage6Input struct {
	Company  string
	Industry string
	Stage3   Stage3Output
}

// RunStage6 rewrites Stage 3's prose for executive tone and clarity.
// Model tier: premium (Sonnet-class). On any failure, the caller is
// expected to substitute Stage6Input.Stage3 unchanged ("graceful
// degradation") — RunStage6 itself just reports the error so the
// orchestrator can do that substitution and log it.
func RunStage6(ctx context.Context, deps StageDeps, in Stage6Input) (Stage3Output, model.UsageStats, error) {
	slot := deps.Models.Polish
	prompt := buildStage6Prompt(in)
	systemPrompt := "Você é um editor executivo brasileiro. Refine o tom e a clareza do texto SEM alterar números, datas ou recomendações. Apenas JSON."

	raw, usage, modelUsed, err := callChain(ctx, deps, "polish", []string{slot.Primary, slot.PaidFallback, slot.FreeFallback}, systemPrompt, prompt, temperaturePolish, stage6MaxTokens)
	if err != nil {
		return Stage3Output{}, usage, err
	}

	var out Stage3Output
	if err := decodeStageJSON("polish", modelUsed, raw, &out); err != nil {
		return Stage3Output{}, usage, err
	}

	if out.TAMSAMSOM == nil {
		out.TAMSAMSOM = in.Stage3.TAMSAMSOM
	}
	return out, usage, nil
}

func buildStage6Prompt(in Stage6Input) string {
	stage3JSON, _ := json.MarshalIndent(in.Stage3, "", "  ")

	return fmt.Sprintf(`# REVISÃO EXECUTIVA PARA %s (%s)

## Análise Estratégica (rascunho)
%s

# SUA TAREFA

Reescreva o texto acima para tom executivo: conciso, direto, sem jargão desnecessário. NÃO altere nenhum número, data, percentual ou recomendação — apenas a prosa ao redor deles. Preserve exatamente a mesma estrutura de chaves JSON do rascunho.

Retorne APENAS o JSON revisado, com a mesma forma do rascunho (pestel, porter, swot, blue_ocean, positioning, tam_sam_som, recommendations, okrs, scenarios, roadmap, strategy_sections).`, in.Company, in.Industry, string(stage3JSON))
}
