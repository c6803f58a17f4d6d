package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

func newLinkedInAdapterForTest(apiKey, resolveURL, companyURL string) *LinkedInAdapter {
	a := NewLinkedInAdapter(apiKey)
	a.resolveURL = resolveURL
	a.companyURL = companyURL
	return a
}

func TestLinkedInAdapter_NoAPIKeyIsAuthError(t *testing.T) {
	t.Parallel()
	a := NewLinkedInAdapter("")

	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeAuth, res.ErrorType)
}

func TestLinkedInAdapter_RequiresIdentifier(t *testing.T) {
	t.Parallel()
	a := NewLinkedInAdapter("key")

	_, err := a.Fetch(context.Background(), CompanyRef{})
	assert.Error(t, err)
}

func TestLinkedInAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	resolveServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "acme.com", r.URL.Query().Get("company_domain"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url": "https://www.linkedin.com/company/acme"}`))
	}))
	defer resolveServer.Close()

	companyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.Equal(t, "https://www.linkedin.com/company/acme", r.URL.Query().Get("url"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "Acme",
			"description": "We make widgets",
			"follower_count": 1247,
			"linkedin_internal_id": "12345",
			"company_size": "51-200",
			"company_type": "Privately Held",
			"industry": "Manufacturing",
			"specialities": "Widgets, Automation, B2B",
			"founded_year": 2012,
			"website": "https://acme.com",
			"logo_url": "https://logo.clearbit.com/acme.com",
			"locations": [
				{"is_hq": false, "city": "Chicago", "state": "IL", "country": "US"},
				{"is_hq": true, "city": "Springfield", "state": "IL", "country": "US"}
			]
		}`))
	}))
	defer companyServer.Close()

	a := newLinkedInAdapterForTest("key", resolveServer.URL, companyServer.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "proxycurl", res.Source)
	assert.Equal(t, "Acme", res.Fields["company_name"])
	assert.Equal(t, "We make widgets", res.Fields["linkedin_description"])
	assert.Equal(t, 1247, res.Fields["linkedin_followers"])
	assert.Equal(t, "12345", res.Fields["linkedin_id"])
	assert.Equal(t, "https://www.linkedin.com/company/acme", res.Fields["linkedin_url"])
	assert.Equal(t, "51-200", res.Fields["employee_count_linkedin"])
	assert.Equal(t, "Privately Held", res.Fields["company_type"])
	assert.Equal(t, "Manufacturing", res.Fields["industry"])
	assert.Equal(t, []string{"Widgets", "Automation", "B2B"}, res.Fields["specialties"])
	assert.Equal(t, 2012, res.Fields["founded_year"])
	assert.Equal(t, "https://acme.com", res.Fields["website"])
	assert.Equal(t, "Springfield, IL, US", res.Fields["location"])
	assert.Equal(t, linkedInEstimatedCostUSD, res.CostUSD)
}

func TestLinkedInAdapter_UnresolvedIsNotFound(t *testing.T) {
	t.Parallel()
	resolveServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer resolveServer.Close()

	a := newLinkedInAdapterForTest("key", resolveServer.URL, "http://unused")
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "ghost.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestLinkedInAdapter_RateLimitedStatus(t *testing.T) {
	t.Parallel()
	resolveServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"url": "https://www.linkedin.com/company/acme"}`))
	}))
	defer resolveServer.Close()

	companyServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer companyServer.Close()

	a := newLinkedInAdapterForTest("key", resolveServer.URL, companyServer.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeRateLimit, res.ErrorType)
}
