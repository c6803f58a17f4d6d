package sources

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/pkg/google"
	"github.com/sells-group/strategy-pipeline/pkg/google/mocks"
)

func TestPlacesAdapter_RequiresName(t *testing.T) {
	t.Parallel()
	a := NewPlacesAdapter(mocks.NewMockClient(t))

	_, err := a.Fetch(context.Background(), CompanyRef{Domain: "acme.com"})
	assert.Error(t, err)
}

func TestPlacesAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("TextSearch", context.Background(), "Acme Corp").Return(&google.TextSearchResponse{
		Places: []google.Place{
			{DisplayName: google.DisplayName{Text: "Acme Corporation"}, Rating: 4.5, UserRatingCount: 128},
		},
	}, nil)
	a := NewPlacesAdapter(client)

	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp"})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "google_places", res.Source)
	assert.Equal(t, "Acme Corporation", res.Fields["legal_name"])
	assert.Equal(t, 4.5, res.Fields["rating"])
	assert.Equal(t, 128, res.Fields["user_rating_count"])
	assert.Equal(t, placesEstimatedCostUSD, res.CostUSD)
}

func TestPlacesAdapter_NoResultsIsNotFound(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("TextSearch", context.Background(), "Ghost Co").Return(&google.TextSearchResponse{}, nil)
	a := NewPlacesAdapter(client)

	res, err := a.Fetch(context.Background(), CompanyRef{Name: "Ghost Co"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestPlacesAdapter_PropagatesClientError(t *testing.T) {
	t.Parallel()
	client := mocks.NewMockClient(t)
	client.On("TextSearch", context.Background(), "Acme Corp").Return(nil, eris.New("boom"))
	a := NewPlacesAdapter(client)

	_, err := a.Fetch(context.Background(), CompanyRef{Name: "Acme Corp"})
	assert.Error(t, err)
}
