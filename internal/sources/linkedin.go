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
	linkedInEstimatedCostUSD = 0.03
	linkedInResolveURL       = "https://nubela.co/proxycurl/api/linkedin/company/resolve"
	linkedInCompanyURL       = "https://nubela.co/proxycurl/api/linkedin/company"
	linkedInTimeout          = 15 * time.Second
)

// LinkedInAdapter queries Proxycurl for LinkedIn company profile data:
// follower count, specialties, headquarters, and employee count as
// reported on LinkedIn rather than the registry or website. SOURCE_RELIABILITY
// "proxycurl": 80 in the original confidence scorer. Paid, ~$0.03/call.
type LinkedInAdapter struct {
	apiKey     string
	resolveURL string
	companyURL string
	http       *http.Client
}

func NewLinkedInAdapter(apiKey string) *LinkedInAdapter {
	return &LinkedInAdapter{
		apiKey:     apiKey,
		resolveURL: linkedInResolveURL,
		companyURL: linkedInCompanyURL,
		http:       &http.Client{Timeout: linkedInTimeout},
	}
}

func (a *LinkedInAdapter) Name() string              { return "proxycurl" }
func (a *LinkedInAdapter) EstimatedCostUSD() float64 { return linkedInEstimatedCostUSD }

type linkedInResolveResponse struct {
	URL string `json:"url"`
}

type linkedInLocation struct {
	IsHQ    bool   `json:"is_hq"`
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}

type linkedInCompanyResponse struct {
	Name             string             `json:"name"`
	Description      string             `json:"description"`
	FollowerCount    int                `json:"follower_count"`
	LinkedInInternal string             `json:"linkedin_internal_id"`
	CompanySize      string             `json:"company_size"`
	CompanyType      string             `json:"company_type"`
	Industry         string             `json:"industry"`
	Specialities     string             `json:"specialities"`
	Locations        []linkedInLocation `json:"locations"`
	FoundedYear      int                `json:"founded_year"`
	Website          string             `json:"website"`
	LogoURL          string             `json:"logo_url"`
}

func (a *LinkedInAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if a.apiKey == "" {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}
	if company.Domain == "" && company.Name == "" {
		return model.SourceResult{}, eris.New("sources: linkedin adapter requires a domain or name")
	}

	linkedInURL, err := a.resolveCompanyURL(ctx, company)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: linkedin resolve")
	}
	if linkedInURL == "" {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	body, status, err := a.getJSON(ctx, a.companyURL+"?"+url.Values{"url": {linkedInURL}}.Encode())
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: linkedin company fetch")
	}
	if status == http.StatusNotFound {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}
	if status == http.StatusTooManyRequests {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeRateLimit, FetchedAt: time.Now()}, nil
	}
	if status != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: linkedin status %d: %s", status, string(body))
	}

	var parsed linkedInCompanyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal linkedin company response")
	}

	fields := map[string]any{}
	setIf := func(key, value string) {
		if value != "" {
			fields[key] = value
		}
	}
	setIf("company_name", parsed.Name)
	setIf("linkedin_description", parsed.Description)
	setIf("linkedin_id", parsed.LinkedInInternal)
	fields["linkedin_url"] = linkedInURL
	setIf("employee_count_linkedin", parsed.CompanySize)
	setIf("company_type", parsed.CompanyType)
	setIf("industry", parsed.Industry)
	setIf("website", parsed.Website)
	setIf("logo_url", parsed.LogoURL)

	if parsed.FollowerCount > 0 {
		fields["linkedin_followers"] = parsed.FollowerCount
	}
	if parsed.FoundedYear > 0 {
		fields["founded_year"] = parsed.FoundedYear
	}
	if parsed.Specialities != "" {
		var specialties []string
		for _, s := range strings.Split(parsed.Specialities, ",") {
			if s = strings.TrimSpace(s); s != "" {
				specialties = append(specialties, s)
			}
		}
		if len(specialties) > 0 {
			fields["specialties"] = limitStrings(specialties, 10)
		}
	}

	for _, loc := range parsed.Locations {
		if !loc.IsHQ {
			continue
		}
		var parts []string
		for _, p := range []string{loc.City, loc.State, loc.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			fields["location"] = strings.Join(parts, ", ")
		}
		break
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		CostUSD:   linkedInEstimatedCostUSD,
		FetchedAt: time.Now(),
	}, nil
}

// resolveCompanyURL looks up the LinkedIn company URL from a domain,
// preferring the domain over a name search the way proxycurl's resolve
// endpoint does.
func (a *LinkedInAdapter) resolveCompanyURL(ctx context.Context, company CompanyRef) (string, error) {
	params := url.Values{}
	if company.Domain != "" {
		params.Set("company_domain", cleanHostname(company.Domain))
	} else if company.Name != "" {
		params.Set("company_name", company.Name)
	}

	body, status, err := a.getJSON(ctx, a.resolveURL+"?"+params.Encode())
	if err != nil {
		return "", err
	}
	if status == http.StatusNotFound {
		return "", nil
	}
	if status != http.StatusOK {
		return "", eris.Errorf("sources: linkedin resolve status %d: %s", status, string(body))
	}

	var parsed linkedInResolveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", eris.Wrap(err, "sources: unmarshal linkedin resolve response")
	}
	return parsed.URL, nil
}

func (a *LinkedInAdapter) getJSON(ctx context.Context, endpoint string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sources: build linkedin request")
	}
	req.Header.Set("Authorization", "Bearer "+a.apiKey)

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sources: linkedin request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, eris.Wrap(err, "sources: read linkedin response")
	}
	return body, resp.StatusCode, nil
}
