package sources

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const (
	geoIPEstimatedCostUSD = 0
	geoIPBaseURL          = "http://ip-api.com/json/"
)

// GeoIPAdapter resolves a domain's IP address and looks up its
// approximate location via ip-api.com's free tier (SOURCE_RELIABILITY
// "ip_api": 60 in the original confidence scorer, among the lowest of
// all sources since IP geolocation is approximate by nature).
type GeoIPAdapter struct {
	http       *http.Client
	baseURL    string
	lookupHost func(ctx context.Context, host string) ([]string, error)
}

// GeoIPOption configures a GeoIPAdapter.
type GeoIPOption func(*GeoIPAdapter)

// WithGeoIPBaseURL overrides the ip-api.com base URL, used in tests to
// point at an httptest server.
func WithGeoIPBaseURL(baseURL string) GeoIPOption {
	return func(a *GeoIPAdapter) { a.baseURL = baseURL }
}

// WithGeoIPLookupHost overrides domain-to-IP resolution, used in tests
// to avoid real DNS.
func WithGeoIPLookupHost(fn func(ctx context.Context, host string) ([]string, error)) GeoIPOption {
	return func(a *GeoIPAdapter) { a.lookupHost = fn }
}

func NewGeoIPAdapter(opts ...GeoIPOption) *GeoIPAdapter {
	a := &GeoIPAdapter{
		http:       &http.Client{Timeout: 5 * time.Second},
		baseURL:    geoIPBaseURL,
		lookupHost: (&net.Resolver{}).LookupHost,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *GeoIPAdapter) Name() string              { return "ip_api" }
func (a *GeoIPAdapter) EstimatedCostUSD() float64 { return geoIPEstimatedCostUSD }

type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	Timezone    string `json:"timezone"`
	ISP         string `json:"isp"`
	Query       string `json:"query"`
}

func (a *GeoIPAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Domain == "" {
		return model.SourceResult{}, eris.New("sources: geoip adapter requires a domain")
	}

	cleanDomain := cleanHostname(company.Domain)

	ips, err := a.lookupHost(ctx, cleanDomain)
	if err != nil {
		return model.SourceResult{}, eris.Wrapf(err, "sources: resolve %s to IP", cleanDomain)
	}
	if len(ips) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	url := a.baseURL + ips[0] + "?fields=status,message,country,countryCode,regionName,city,timezone,isp,query"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: build ip-api request")
	}

	resp, err := a.http.Do(req)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: ip-api request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: read ip-api response")
	}
	if resp.StatusCode != http.StatusOK {
		return model.SourceResult{}, eris.Errorf("sources: ip-api status %d: %s", resp.StatusCode, string(body))
	}

	var parsed ipAPIResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: unmarshal ip-api response")
	}
	if parsed.Status != "success" {
		return model.SourceResult{}, eris.Errorf("sources: ip-api error: %s", parsed.Message)
	}

	fields := map[string]any{
		"country":      parsed.CountryCode,
		"country_name": parsed.Country,
		"region":       parsed.RegionName,
		"city":         parsed.City,
		"timezone":     parsed.Timezone,
		"isp":          parsed.ISP,
		"ip_address":   parsed.Query,
	}

	var locationParts []string
	if parsed.City != "" {
		locationParts = append(locationParts, parsed.City)
	}
	if parsed.RegionName != "" && parsed.RegionName != parsed.City {
		locationParts = append(locationParts, parsed.RegionName)
	}
	if parsed.Country != "" {
		locationParts = append(locationParts, parsed.Country)
	}
	if len(locationParts) > 0 {
		fields["ip_location"] = strings.Join(locationParts, ", ")
	}

	return model.SourceResult{
		Source:    a.Name(),
		Success:   true,
		Fields:    fields,
		FetchedAt: time.Now(),
	}, nil
}

func cleanHostname(domain string) string {
	d := strings.TrimPrefix(domain, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if idx := strings.Index(d, "/"); idx >= 0 {
		d = d[:idx]
	}
	return d
}
