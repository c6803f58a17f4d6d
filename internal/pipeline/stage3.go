package pipeline

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const stage3MaxTokens = 6000
const temperatureStrategic = 0.6

// Stage3Input is the mandatory strategic-frameworks stage's input: Stage
// 1's extracted facts, gated by which sections the assessed quality tier
// enables.
type Stage3Input struct {
	Company     string
	Industry    string
	Challenge   string
	Stage1      Stage1Output
	Tier        Tier
	CompanySize string // Brazilian band ("Micro"/"Pequena"/"Média"/"Grande"), for TAM/SAM/SOM validation
}

// Stage3Output is the strategic-frameworks section of the final report.
type Stage3Output struct {
	PESTEL           map[string]any    `json:"pestel,omitempty"`
	Porter           map[string]any    `json:"porter,omitempty"`
	SWOT             map[string]any    `json:"swot,omitempty"`
	BlueOcean        map[string]any    `json:"blue_ocean,omitempty"`
	Positioning      map[string]any    `json:"positioning,omitempty"`
	TAMSAMSOM        *model.TAMSAMSOM  `json:"tam_sam_som,omitempty"`
	Recommendations  []map[string]any  `json:"recommendations,omitempty"`
	OKRs             map[string]any    `json:"okrs,omitempty"`
	Scenarios        map[string]any    `json:"scenarios,omitempty"`
	Roadmap          map[string]any    `json:"roadmap,omitempty"`
	StrategySections map[string]any    `json:"strategy_sections,omitempty"`
}

// RunStage3 applies the strategic frameworks and runs post-hoc
// hallucination validation on the result. It uses the full three-tier
// model fallback (primary, paid fallback, free fallback), as Stages 4-6
// do; unlike them, its failure is fatal to the run.
func RunStage3(ctx context.Context, deps StageDeps, in Stage3Input) (Stage3Output, model.UsageStats, error) {
	slot := deps.Models.Strategy
	sections := in.Tier.EnabledSections()

	prompt := buildStage3Prompt(in, sections)
	systemPrompt := "Você é um consultor estratégico sênior brasileiro. Aplique frameworks estratégicos com rigor. Output somente JSON em português."

	raw, usage, modelUsed, err := callChain(ctx, deps, "strategy", []string{slot.Primary, slot.PaidFallback, slot.FreeFallback}, systemPrompt, prompt, temperatureStrategic, stage3MaxTokens)
	if err != nil {
		return Stage3Output{}, usage, err
	}

	var out Stage3Output
	if err := decodeStageJSON("strategy", modelUsed, raw, &out); err != nil {
		return Stage3Output{}, usage, err
	}

	out.TAMSAMSOM = ValidateTAMSAMSOM(out.TAMSAMSOM, in.CompanySize)
	for _, violation := range ScanUnsourcedClaims(raw) {
		deps.Log.Warn("stage3: " + violation)
	}

	return out, usage, nil
}

func buildStage3Prompt(in Stage3Input, sections SectionSet) string {
	facts, _ := json.MarshalIndent(in.Stage1.CompanyFacts, "", "  ")
	competitors, _ := json.MarshalIndent(in.Stage1.Competitors, "", "  ")
	market, _ := json.MarshalIndent(in.Stage1.MarketIntelligence, "", "  ")

	var b fmt.Stringer = sectionListing(sections)

	return fmt.Sprintf(`# ANÁLISE ESTRATÉGICA DE NEGÓCIOS PARA %s

## Desafio de Negócio
%s

## Fatos da Empresa
%s

## Concorrentes Conhecidos
%s

## Inteligência de Mercado
%s

# SUA TAREFA

Aplique os seguintes frameworks estratégicos, no nível de detalhe habilitado para este run (%s):
%s

Para TAM/SAM/SOM, SEMPRE garanta SOM <= SAM <= TAM e baseie as estimativas nos dados fornecidos; se não houver base suficiente, retorne {"insufficient_data": true, "status": "dados_insuficientes", "mensagem": "...", "o_que_fornecer": [...]} em vez de estimar.

Para toda afirmação numérica (R$ ..., %%), inclua uma atribuição de fonte: "(fonte: ...)" ou "(estimativa: ...)".

Retorne JSON em português brasileiro com as chaves: pestel, porter, swot, blue_ocean, positioning, tam_sam_som, recommendations, okrs, scenarios, roadmap, strategy_sections (contendo balanced_scorecard, growth_loops, decision_matrix, integration_map, case_references, review_cycle quando aplicável).`,
		in.Company, orNA(in.Challenge), string(facts), string(competitors), string(market), in.Tier, b)
}

// sectionListing renders the enabled sections as a human-readable
// bullet list for the prompt's framework list. Gated-out sections are
// left out of that list; the prompt's closing list of JSON keys still
// names every section.
func sectionListing(s SectionSet) stringerSlice {
	var lines []string
	add := func(enabled bool, name string) {
		if enabled {
			lines = append(lines, "- "+name)
		}
	}
	add(s.PESTEL, "PESTEL")
	add(s.Porter, "Porter's Five/Seven Forces")
	add(s.SWOT, "SWOT")
	add(s.BlueOcean, "Blue Ocean")
	add(s.Positioning, "Competitive positioning")
	add(s.TAMSAMSOM, "TAM/SAM/SOM market sizing")
	add(s.BalancedScorecard, "Balanced scorecard")
	add(true, "Priority recommendations") // always enabled, even at minimal tier
	add(s.OKRsFullYear, "OKRs (full year)")
	add(s.Roadmap, "Implementation roadmap")
	add(s.GrowthLoops, "Growth loops")
	add(s.Scenarios, "Scenario planning (best/expected/worst case)")
	add(s.DecisionMatrix, "Multi-criteria decision matrix")
	add(s.IntegrationMap, "Integration map")
	add(s.CaseReferences, "Brazilian case references")
	add(s.ReviewCycle, "Review cycle")
	return stringerSlice(lines)
}

type stringerSlice []string

func (s stringerSlice) String() string {
	out := ""
	for _, line := range s {
		out += line + "\n"
	}
	return out
}
