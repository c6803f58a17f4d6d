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

func newResearchApifyAdapterForTest(apiToken, baseURL string) *ResearchApifyAdapter {
	a := NewResearchApifyAdapter(apiToken)
	a.baseURL = baseURL
	return a
}

func TestResearchApifyAdapter_NoTokenIsAuthError(t *testing.T) {
	t.Parallel()
	a := NewResearchApifyAdapter("")

	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeAuth, res.ErrorType)
}

func TestResearchApifyAdapter_RequiresName(t *testing.T) {
	t.Parallel()
	a := NewResearchApifyAdapter("token")

	_, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	assert.Error(t, err)
}

func TestResearchApifyAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "token", r.URL.Query().Get("token"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"title": "Rival Co", "description": "A competing widget maker", "url": "https://rival.com"},
			{"title": "Other Inc", "description": "Another player in the space", "url": "https://other.com"}
		]`))
	}))
	defer server.Close()

	a := newResearchApifyAdapterForTest("token", server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp", Industry: "manufacturing"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "research_apify", res.Source)
	assert.Equal(t, 2, res.Fields["competitors_found"])
	assert.Contains(t, res.Fields["market_insights"], "A competing widget maker")
	results, ok := res.Fields["competitor_results"].([]map[string]string)
	require.True(t, ok)
	assert.Len(t, results, 2)
	assert.Equal(t, "Rival Co", results[0]["title"])
}

func TestResearchApifyAdapter_NoResultsIsNotFound(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	a := newResearchApifyAdapterForTest("token", server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Ghost Co"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestResearchApifyAdapter_RateLimitedStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	a := newResearchApifyAdapterForTest("token", server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeRateLimit, res.ErrorType)
}
