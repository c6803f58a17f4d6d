package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

func newRegistryFreeAdapterForTest(baseURL string) *RegistryFreeAdapter {
	a := NewRegistryFreeAdapter("")
	a.baseURL = baseURL
	a.limiter.SetLimit(rate.Inf)
	return a
}

func TestRegistryFreeAdapter_RequiresName(t *testing.T) {
	t.Parallel()
	a := newRegistryFreeAdapterForTest("http://unused")

	_, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	assert.Error(t, err)
}

func TestRegistryFreeAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Acme Corp", r.URL.Query().Get("q"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"results": {
				"companies": [
					{"company": {"name": "Acme Corp Ltd", "company_number": "12345", "jurisdiction_code": "us_de", "incorporation_date": "2015-06-01", "current_status": "Active", "opencorporates_url": "https://opencorporates.com/companies/us_de/12345"}}
				]
			}
		}`))
	}))
	defer server.Close()

	a := newRegistryFreeAdapterForTest(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "Acme Corp Ltd", res.Fields["legal_name"])
	assert.Equal(t, "12345", res.Fields["company_number"])
	assert.Equal(t, "2015", res.Fields["founded_year"])
	assert.Equal(t, "Active", res.Fields["registration_status"])
}

func TestRegistryFreeAdapter_NoResultsIsNotFound(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results": {"companies": []}}`))
	}))
	defer server.Close()

	a := newRegistryFreeAdapterForTest(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Ghost Co"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestRegistryFreeAdapter_RateLimitedStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	a := newRegistryFreeAdapterForTest(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeRateLimit, res.ErrorType)
}
