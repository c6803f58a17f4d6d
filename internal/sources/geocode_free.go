package sources

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// GeocodeFreeAdapter geocodes a company's city/state/country against the
// free Nominatim API (OpenStreetMap). Nominatim's usage policy caps
// anonymous callers at one request/second, enforced here with
// x/time/rate rather than left to the caller.
type GeocodeFreeAdapter struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
}

func NewGeocodeFreeAdapter(baseURL, userAgent string) *GeocodeFreeAdapter {
	return &GeocodeFreeAdapter{
		baseURL:   baseURL,
		userAgent: userAgent,
		http:      &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
	}
}

func (a *GeocodeFreeAdapter) Name() string              { return "nominatim" }
func (a *GeocodeFreeAdapter) EstimatedCostUSD() float64 { return 0 }

type nominatimResult struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (a *GeocodeFreeAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	query := company.City
	if company.State != "" {
		query += ", " + company.State
	}
	if company.Country != "" {
		query += ", " + company.Country
	}
	if query == "" {
		return model.SourceResult{}, eris.New("sources: nominatim adapter requires city, state, or country")
	}

	if err := a.limiter.Wait(ctx); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: nominatim rate limiter")
	}

	endpoint := a.baseURL + "/search?" + url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build nominatim request")
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: nominatim request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read nominatim response")
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: nominatim status %d: %s", resp.StatusCode, string(body))
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal nominatim response")
	}
	if len(results) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	lat, _ := strconv.ParseFloat(results[0].Lat, 64)
	lon, _ := strconv.ParseFloat(results[0].Lon, 64)

	return model.SourceResult{
		Source:  a.Name(),
		Success: true,
		Fields: map[string]any{
			"latitude":          lat,
			"longitude":         lon,
			"formatted_address": results[0].DisplayName,
		},
		FetchedAt: time.Now(),
	}, nil
}
