package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const (
	registryFreeEstimatedCostUSD = 0
	registryFreeBaseURL          = "https://api.opencorporates.com/v0.4"
	registryFreeRPS              = 0.5 // OpenCorporates' unauthenticated tier throttles aggressively
)

// RegistryFreeAdapter looks a company up against OpenCorporates' public
// search API. apiToken is optional — OpenCorporates serves a reduced,
// rate-limited unauthenticated tier when it is empty, the key-optional
// public-lookup mode this adapter targets.
type RegistryFreeAdapter struct {
	baseURL  string
	apiToken string
	http     *http.Client
	limiter  *rate.Limiter
}

func NewRegistryFreeAdapter(apiToken string) *RegistryFreeAdapter {
	return &RegistryFreeAdapter{
		baseURL:  registryFreeBaseURL,
		apiToken: apiToken,
		http:     &http.Client{Timeout: 10 * time.Second},
		limiter:  rate.NewLimiter(rate.Limit(registryFreeRPS), 1),
	}
}

func (a *RegistryFreeAdapter) Name() string              { return "opencorporates" }
func (a *RegistryFreeAdapter) EstimatedCostUSD() float64 { return registryFreeEstimatedCostUSD }

type registryFreeResponse struct {
	Results struct {
		Companies []struct {
			Company struct {
				Name              string `json:"name"`
				CompanyNumber     string `json:"company_number"`
				Jurisdiction      string `json:"jurisdiction_code"`
				IncorporationDate string `json:"incorporation_date"`
				CurrentStatus     string `json:"current_status"`
				OpencorporatesURL string `json:"opencorporates_url"`
			} `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

func (a *RegistryFreeAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Name == "" {
		return model.SourceResult{}, eris.New("sources: registry_free adapter requires a company name")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: opencorporates rate limiter")
	}

	values := url.Values{"q": {company.Name}}
	if company.Country != "" {
		values.Set("jurisdiction_code", company.Country)
	}
	if a.apiToken != "" {
		values.Set("api_token", a.apiToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/companies/search?"+values.Encode(), nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build opencorporates request")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: opencorporates request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read opencorporates response")
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeRateLimit, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: opencorporates status %d: %s", resp.StatusCode, string(body))
	}

	var parsed registryFreeResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal opencorporates response")
	}
	if len(parsed.Results.Companies) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	c := parsed.Results.Companies[0].Company
	return model.SourceResult{
		Source:  a.Name(),
		Success: true,
		Fields: map[string]any{
			"legal_name":          c.Name,
			"company_number":      c.CompanyNumber,
			"jurisdiction":        c.Jurisdiction,
			"founded_year":        yearFromISODate(c.IncorporationDate),
			"registration_status": c.CurrentStatus,
			"opencorporates_url":  c.OpencorporatesURL,
		},
		FetchedAt: time.Now(),
	}, nil
}

func yearFromISODate(date string) string {
	if len(date) < 4 {
		return ""
	}
	return date[:4]
}
