package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const registryBREstimatedCostUSD = 0

var cnpjNonDigits = regexp.MustCompile(`\D`)

// RegistryBRAdapter looks up a Brazilian company by CNPJ against a
// ReceitaWS-compatible registry API (SOURCE_RELIABILITY "receita_ws": 95
// in the original confidence scorer, the highest of any source since it
// is government-sourced data).
type RegistryBRAdapter struct {
	baseURL string
	http    *http.Client
}

func NewRegistryBRAdapter(baseURL string) *RegistryBRAdapter {
	return &RegistryBRAdapter{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *RegistryBRAdapter) Name() string              { return "receita_ws" }
func (a *RegistryBRAdapter) EstimatedCostUSD() float64 { return registryBREstimatedCostUSD }

type registryBRResponse struct {
	Nome      string `json:"nome"`
	Fantasia  string `json:"fantasia"`
	Abertura  string `json:"abertura"`
	Situacao  string `json:"situacao"`
	UF        string `json:"uf"`
	Municipio string `json:"municipio"`
	CNPJ      string `json:"cnpj"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

// Fetch looks up company.Domain as a CNPJ (formatted or digits-only).
// ValidateCNPJ rejects malformed identifiers before the network round
// trip; the original implementation only checked digit length, noting
// "full validation would check modulo-11 checksums" — this adapter
// does.
func (a *RegistryBRAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	cnpj := cnpjNonDigits.ReplaceAllString(company.Domain, "")
	if !ValidateCNPJ(cnpj) {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/v1/cnpj/"+cnpj, nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build registry_br request")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: registry_br request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read registry_br response")
	}
	if resp.StatusCode == http.StatusNotFound {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: registry_br status %d: %s", resp.StatusCode, string(body))
	}

	var parsed registryBRResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal registry_br response")
	}
	if parsed.Status == "ERROR" {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	return model.SourceResult{
		Source:  a.Name(),
		Success: true,
		Fields: map[string]any{
			"legal_name":          parsed.Nome,
			"trade_name":          parsed.Fantasia,
			"founded_year":        yearFromBRDate(parsed.Abertura),
			"registration_status": parsed.Situacao,
			"jurisdiction":        parsed.UF,
			"city":                parsed.Municipio,
			"cnpj":                parsed.CNPJ,
		},
		FetchedAt: time.Now(),
	}, nil
}

func yearFromBRDate(date string) string {
	// abertura is formatted dd/mm/yyyy.
	if len(date) < 10 {
		return ""
	}
	return date[6:10]
}

// ValidateCNPJ validates a 14-digit Brazilian CNPJ via its two
// modulo-11 check digits. digits may contain only [0-9]; callers strip
// formatting (dots, slash, dash) first.
func ValidateCNPJ(digits string) bool {
	if len(digits) != 14 {
		return false
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return false
		}
	}
	if allSameDigit(digits) {
		return false
	}

	nums := make([]int, 14)
	for i, r := range digits {
		nums[i] = int(r - '0')
	}

	firstCheck := cnpjCheckDigit(nums[:12], []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	if firstCheck != nums[12] {
		return false
	}
	secondCheck := cnpjCheckDigit(nums[:13], []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2})
	return secondCheck == nums[13]
}

func cnpjCheckDigit(digits, weights []int) int {
	sum := 0
	for i, d := range digits {
		sum += d * weights[i]
	}
	remainder := sum % 11
	if remainder < 2 {
		return 0
	}
	return 11 - remainder
}

func allSameDigit(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}
