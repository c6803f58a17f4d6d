package pipeline

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// currencyPattern parses Brazilian currency shorthand like "R$ 1,5
// bilhões" or "R$ 320 milhões" into a reais amount.
var currencyPattern = regexp.MustCompile(`(?i)R\$\s*([\d.,]+)\s*(milh[õo]es|bilh[õo]es)`)

func parseCurrency(s string) (float64, bool) {
	m := currencyPattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	normalized := strings.ReplaceAll(strings.ReplaceAll(m[1], ".", ""), ",", ".")
	value, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	if strings.HasPrefix(strings.ToLower(m[2]), "bilh") {
		value *= 1e9
	} else {
		value *= 1e6
	}
	return value, true
}

// somTAMRatioBand returns the allowed SOM/TAM ratio range for a detected
// company size.
func somTAMRatioBand(size string) (lo, hi float64) {
	switch size {
	case "small":
		return 0.0001, 0.005
	case "large":
		return 0.02, 0.10
	default: // "medium"
		return 0.005, 0.02
	}
}

// sizeBandFromCompanySize maps the four Brazilian company-size bands
// reconcile.ApplyGapInference assigns onto the three TAM/SAM/SOM ratio
// bands.
func sizeBandFromCompanySize(companySize string) string {
	switch companySize {
	case "Grande":
		return "large"
	case "Média":
		return "medium"
	default: // "Micro", "Pequena", or unknown
		return "small"
	}
}

// tamSamSomGuidance is the literal "o que fornecer" list handed back
// whenever TAM/SAM/SOM can't be grounded: the same three data points the
// original analysis asked for.
var tamSamSomGuidance = []string{
	"Demonstrações financeiras (últimos 2 anos)",
	"Faturamento atual da empresa",
	"Relatórios de mercado ou pesquisa setorial específica",
}

// newInsufficientTAMSAMSOM builds a fresh insufficient-data sentinel —
// never a shared pointer, since backfillInsufficientData mutates it.
func newInsufficientTAMSAMSOM() *model.TAMSAMSOM {
	return &model.TAMSAMSOM{
		InsufficientData: true,
		Status:           "dados_insuficientes",
		Mensagem:         "Análise TAM/SAM/SOM requer dados adicionais para evitar estimativas imprecisas",
		OQueFornecer:     append([]string(nil), tamSamSomGuidance...),
	}
}

// backfillInsufficientData fills in Status/Mensagem/OQueFornecer when the
// model itself set insufficient_data=true without the explanatory fields
// the client contract requires.
func backfillInsufficientData(t *model.TAMSAMSOM) *model.TAMSAMSOM {
	if t.Status == "" {
		t.Status = "dados_insuficientes"
	}
	if t.Mensagem == "" {
		t.Mensagem = "Análise TAM/SAM/SOM requer dados adicionais para evitar estimativas imprecisas"
	}
	if len(t.OQueFornecer) == 0 {
		t.OQueFornecer = append([]string(nil), tamSamSomGuidance...)
	}
	return t
}

// ValidateTAMSAMSOM enforces SOM <= SAM <= TAM and the size-banded
// SOM/TAM ratio, replacing the whole block with the insufficient-data
// sentinel on any violation or unparseable figure rather than repairing
// individual numbers — a partially-fabricated market size is not
// trustworthy just because two of three figures parsed.
func ValidateTAMSAMSOM(t *model.TAMSAMSOM, companySize string) *model.TAMSAMSOM {
	if t == nil {
		return t
	}
	if t.InsufficientData {
		return backfillInsufficientData(t)
	}

	tam, tamOK := parseCurrency(t.TAM)
	sam, samOK := parseCurrency(t.SAM)
	som, somOK := parseCurrency(t.SOM)
	if !tamOK || !samOK || !somOK {
		return newInsufficientTAMSAMSOM()
	}
	if !(som <= sam && sam <= tam) {
		return newInsufficientTAMSAMSOM()
	}
	if tam == 0 {
		return newInsufficientTAMSAMSOM()
	}

	ratio := som / tam
	lo, hi := somTAMRatioBand(sizeBandFromCompanySize(companySize))
	if ratio < lo || ratio > hi {
		return newInsufficientTAMSAMSOM()
	}
	return t
}

// unsourcedClaimPattern finds currency and percentage claims that a
// source-attribution annotation must follow.
var unsourcedClaimPattern = regexp.MustCompile(`(?i)(R\$\s*[\d.,]+\s*(?:milh[õo]es|bilh[õo]es)|\b\d+(?:[.,]\d+)?\s*%)`)
var sourceAnnotationPattern = regexp.MustCompile(`(?i)\((?:fonte|estimativa)\s*:`)

// scanLeafStrings decodes raw as JSON and returns every string leaf value
// found anywhere in the tree, however deeply nested under maps/arrays
// stage 3's output shape produces (pestel.*, swot.*,
// recommendations[].*, ...) — walking the decoded value directly means
// this check never needs to know Stage3Output's concrete shape. A
// non-JSON raw (shouldn't happen for a stage output that already
// round-tripped through decodeStageJSON) yields no leaves rather than
// erroring, since this check is advisory.
func scanLeafStrings(raw string) []string {
	var decoded any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return nil
	}

	var leaves []string
	var walk func(v any)
	walk = func(v any) {
		switch t := v.(type) {
		case string:
			leaves = append(leaves, t)
		case map[string]any:
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(decoded)
	return leaves
}

// ScanUnsourcedClaims looks for numeric claims (currency amounts,
// percentages) in raw that lack an accompanying "(fonte: ...)" or
// "(estimativa: ...)" annotation within the trailing context. Each match
// is checked against the lookahead window of its own string leaf only —
// scanning the raw JSON text directly would let one field's "(fonte:
// ...)" satisfy a claim sitting in the next key's value. Violations are
// returned for the caller to log — they are never auto-fixed, to avoid
// deleting a claim that merely misplaced its source annotation.
func ScanUnsourcedClaims(raw string) []string {
	var violations []string
	for _, leaf := range scanLeafStrings(raw) {
		matches := unsourcedClaimPattern.FindAllStringIndex(leaf, -1)
		for _, loc := range matches {
			end := loc[1]
			lookahead := end + 80
			if lookahead > len(leaf) {
				lookahead = len(leaf)
			}
			window := leaf[end:lookahead]
			if !sourceAnnotationPattern.MatchString(window) {
				claim := leaf[loc[0]:loc[1]]
				violations = append(violations, fmt.Sprintf("unsourced numeric claim: %q", claim))
			}
		}
	}
	return violations
}
