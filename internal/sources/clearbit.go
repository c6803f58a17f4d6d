package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const (
	clearbitEstimatedCostUSD = 0.10
	clearbitAPIURL           = "https://company.clearbit.com/v2/companies/find"
)

// ClearbitAdapter queries Clearbit's Company API for comprehensive
// business intelligence (SOURCE_RELIABILITY "clearbit": 85 in the
// original confidence scorer, tied with google_places as the most
// reliable paid source).
type ClearbitAdapter struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

func NewClearbitAdapter(apiKey string) *ClearbitAdapter {
	return &ClearbitAdapter{apiKey: apiKey, baseURL: clearbitAPIURL, http: &http.Client{Timeout: 10 * time.Second}}
}

func (a *ClearbitAdapter) Name() string              { return "clearbit" }
func (a *ClearbitAdapter) EstimatedCostUSD() float64 { return clearbitEstimatedCostUSD }

type clearbitResponse struct {
	Name        string `json:"name"`
	LegalName   string `json:"legalName"`
	Description string `json:"description"`
	Domain      string `json:"domain"`
	Type        string `json:"type"`
	FoundedYear int    `json:"foundedYear"`
	Logo        string `json:"logo"`
	Category    struct {
		Industry string `json:"industry"`
		Sector   string `json:"sector"`
	} `json:"category"`
	Tags    []string `json:"tags"`
	Metrics struct {
		EmployeesRange         string `json:"employeesRange"`
		Employees              int    `json:"employees"`
		EstimatedAnnualRevenue string `json:"estimatedAnnualRevenue"`
	} `json:"metrics"`
	Location struct {
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"location"`
	Twitter struct {
		Handle string `json:"handle"`
	} `json:"twitter"`
	Facebook struct {
		Handle string `json:"handle"`
	} `json:"facebook"`
	LinkedIn struct {
		Handle string `json:"handle"`
	} `json:"linkedin"`
	Tech []string `json:"tech"`
}

func (a *ClearbitAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if a.apiKey == "" {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}
	if company.Domain == "" {
		return model.SourceResult{}, eris.New("sources: clearbit adapter requires a domain")
	}

	cleanDomain := cleanHostname(company.Domain)
	endpoint := a.baseURL + "?" + url.Values{"domain": {cleanDomain}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build clearbit request")
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: clearbit request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusPaymentRequired {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read clearbit response")
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: clearbit status %d: %s", resp.StatusCode, string(body))
	}

	var parsed clearbitResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal clearbit response")
	}

	fields := map[string]any{}
	setIf := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	setIf("company_name", parsed.Name)
	setIf("legal_name", parsed.LegalName)
	setIf("description", parsed.Description)
	setIf("industry", parsed.Category.Industry)
	setIf("sector", parsed.Category.Sector)
	setIf("company_type", parsed.Type)
	setIf("logo_url", parsed.Logo)
	setIf("domain", parsed.Domain)
	setIf("employee_count", parsed.Metrics.EmployeesRange)
	setIf("annual_revenue", parsed.Metrics.EstimatedAnnualRevenue)

	if len(parsed.Tags) > 0 {
		fields["tags"] = limitStrings(parsed.Tags, 10)
	}
	if parsed.Metrics.Employees > 0 {
		fields["employee_count_exact"] = parsed.Metrics.Employees
	}
	if parsed.FoundedYear > 0 {
		fields["founded_year"] = parsed.FoundedYear
	}
	if len(parsed.Tech) > 0 {
		fields["website_tech"] = limitStrings(parsed.Tech, 15)
	}

	var locationParts []string
	for _, p := range []string{parsed.Location.City, parsed.Location.State, parsed.Location.Country} {
		if p != "" {
			locationParts = append(locationParts, p)
		}
	}
	if len(locationParts) > 0 {
		fields["location"] = strings.Join(locationParts, ", ")
	}
	setIf("city", parsed.Location.City)
	setIf("state", parsed.Location.State)
	setIf("country", parsed.Location.Country)

	social := map[string]string{}
	if parsed.Twitter.Handle != "" {
		social["twitter"] = "https://twitter.com/" + parsed.Twitter.Handle
	}
	if parsed.Facebook.Handle != "" {
		social["facebook"] = "https://facebook.com/" + parsed.Facebook.Handle
	}
	if parsed.LinkedIn.Handle != "" {
		social["linkedin"] = "https://linkedin.com/company/" + parsed.LinkedIn.Handle
	}
	if len(social) > 0 {
		fields["social_media"] = social
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		CostUSD:   clearbitEstimatedCostUSD,
		FetchedAt: time.Now(),
	}, nil
}

func limitStrings(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
