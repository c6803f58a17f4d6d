package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const (
	researchApifyEstimatedCostUSD = 0.05
	researchApifyBaseURL          = "https://api.apify.com/v2"
	researchApifyActor            = "apify~google-search-scraper"
	researchApifyTimeout          = 30 * time.Second
)

// ResearchApifyAdapter runs a hosted web-search actor on Apify to surface
// named competitors and market-trend snippets the structured sources
// never carry, a late-stage fallback for the sparse-data case rather
// than a primary source. Supplements the distilled source set: the
// original enrichment pipeline's apify_research.research_competitors /
// research_industry_trends have no equivalent among the named
// enrichment sources.
type ResearchApifyAdapter struct {
	apiToken string
	baseURL  string
	actorID  string
	http     *http.Client
}

func NewResearchApifyAdapter(apiToken string) *ResearchApifyAdapter {
	return &ResearchApifyAdapter{
		apiToken: apiToken,
		baseURL:  researchApifyBaseURL,
		actorID:  researchApifyActor,
		http:     &http.Client{Timeout: researchApifyTimeout},
	}
}

func (a *ResearchApifyAdapter) Name() string              { return "research_apify" }
func (a *ResearchApifyAdapter) EstimatedCostUSD() float64 { return researchApifyEstimatedCostUSD }

type apifySearchResultItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

func (a *ResearchApifyAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if a.apiToken == "" {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}
	if company.Name == "" {
		return model.SourceResult{}, eris.New("sources: research_apify adapter requires a company name")
	}

	query := fmt.Sprintf("%s competitors %s", company.Industry, company.Name)
	runInput := map[string]any{
		"queries":          query,
		"maxPagesPerQuery": 3,
		"resultsPerPage":   10,
	}
	payload, err := json.Marshal(runInput)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: marshal apify run input")
	}

	endpoint := a.baseURL + "/acts/" + a.actorID + "/run-sync-get-dataset-items?" +
		url.Values{"token": {a.apiToken}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build apify request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: apify request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeAuth, FetchedAt: time.Now()}, nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeRateLimit, FetchedAt: time.Now()}, nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read apify response")
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: apify status %d: %s", resp.StatusCode, string(body))
	}

	var items []apifySearchResultItem
	if err := json.Unmarshal(body, &items); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal apify dataset items")
	}
	if len(items) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	topResults := make([]map[string]string, 0, 5)
	var insights []string
	for i, item := range items {
		if i < 5 {
			topResults = append(topResults, map[string]string{
				"title":       item.Title,
				"description": item.Description,
				"url":         item.URL,
			})
		}
		if i < 3 && item.Description != "" {
			insights = append(insights, item.Description)
		}
	}

	fields := map[string]any{
		"competitors_found":  len(items),
		"competitor_results": topResults,
	}
	if len(insights) > 0 {
		fields["market_insights"] = strings.Join(insights, " ")
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		CostUSD:   researchApifyEstimatedCostUSD,
		FetchedAt: time.Now(),
	}, nil
}
