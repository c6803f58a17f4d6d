package reconcile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/sells-group/strategy-pipeline/internal/sources"
)

// companySizeBand is the Brazilian company-size taxonomy derived from
// employee count: Micro <10, Pequena <50, Média <250, Grande ≥250.
type companySizeBand string

const (
	CompanySizeMicro   companySizeBand = "Micro"
	CompanySizePequena companySizeBand = "Pequena"
	CompanySizeMedia   companySizeBand = "Média"
	CompanySizeGrande  companySizeBand = "Grande"
)

// modernTech is the digital_maturity whitelist: technologies a company
// running them is presumed to maintain an actively engineered web
// presence, mirroring the original's "based on tech stack" framing in
// the enhanced AI-inference prompt.
var modernTech = map[string]bool{
	"React":    true,
	"Next.js":  true,
	"Vue.js":   true,
	"Angular":  true,
	"Vercel":   true,
	"Tailwind": true,
}

var employeeRangePattern = regexp.MustCompile(`(\d+)\s*-\s*(\d+)`)
var employeePlusPattern = regexp.MustCompile(`(\d+)\s*\+`)

// ApplyGapInference derives company_size from employee_count and
// digital_maturity from website_tech, writing both into fields and
// assigning them a confidence derived from the fields they were
// inferred from (never higher than the weakest input, since an
// inference is only as good as its inputs).
func ApplyGapInference(fields map[string]any, confidence map[string]float64) {
	if size, ok := inferCompanySize(fields["employee_count"]); ok {
		fields["company_size"] = string(size)
		confidence["company_size"] = confidence["employee_count"] * 0.9
	}

	if maturity, ok := inferDigitalMaturity(fields["website_tech"]); ok {
		fields["digital_maturity"] = maturity
		confidence["digital_maturity"] = confidence["website_tech"] * 0.9
	}
}

func inferCompanySize(employeeCount any) (companySizeBand, bool) {
	midpoint, ok := employeeCountMidpoint(employeeCount)
	if !ok {
		return "", false
	}

	switch {
	case midpoint < 10:
		return CompanySizeMicro, true
	case midpoint < 50:
		return CompanySizePequena, true
	case midpoint < 250:
		return CompanySizeMedia, true
	default:
		return CompanySizeGrande, true
	}
}

// employeeCountMidpoint parses the common employee-count shapes adapters
// report ("51-200", "1000+", or a bare exact integer) into the midpoint
// used to bucket the company-size band.
func employeeCountMidpoint(v any) (float64, bool) {
	switch vv := v.(type) {
	case int:
		return float64(vv), true
	case float64:
		return vv, true
	case string:
		s := strings.TrimSpace(vv)
		if m := employeeRangePattern.FindStringSubmatch(s); m != nil {
			low, errLow := strconv.ParseFloat(m[1], 64)
			high, errHigh := strconv.ParseFloat(m[2], 64)
			if errLow == nil && errHigh == nil {
				return (low + high) / 2, true
			}
		}
		if m := employeePlusPattern.FindStringSubmatch(s); m != nil {
			base, err := strconv.ParseFloat(m[1], 64)
			if err == nil {
				return base, true
			}
		}
		if exact, err := strconv.ParseFloat(s, 64); err == nil {
			return exact, true
		}
	}
	return 0, false
}

func inferDigitalMaturity(websiteTech any) (string, bool) {
	items, ok := websiteTech.([]any)
	if !ok {
		return "", false
	}

	modernCount := 0
	for _, item := range items {
		name, ok := item.(string)
		if !ok {
			continue
		}
		if modernTech[name] {
			modernCount++
		}
	}

	switch {
	case modernCount >= 2:
		return "Alta", true
	case modernCount == 1:
		return "Média", true
	default:
		return "Baixa", true
	}
}

const cnpjInvalidPenalty = 10

// ApplyCNPJPenalty validates the reconciled cnpj field and subtracts
// cnpjInvalidPenalty confidence points when it fails the modulo-11
// checksum.
func ApplyCNPJPenalty(fields map[string]any, confidence map[string]float64) {
	raw, ok := fields["cnpj"].(string)
	if !ok || raw == "" {
		return
	}

	if sources.ValidateCNPJ(nonDigits.ReplaceAllString(raw, "")) {
		return
	}

	current := confidence["cnpj"]
	confidence["cnpj"] = maxFloat(0, current-cnpjInvalidPenalty)
}

var nonDigits = regexp.MustCompile(`\D`)

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
