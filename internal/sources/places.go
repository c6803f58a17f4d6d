package sources

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/pkg/google"
)

const placesEstimatedCostUSD = 0.02

// PlacesAdapter wraps pkg/google.Client to supply rating/review-count
// style verification data (SOURCE_RELIABILITY "google_places": 85 in the
// original confidence scorer).
type PlacesAdapter struct {
	client google.Client
}

func NewPlacesAdapter(client google.Client) *PlacesAdapter {
	return &PlacesAdapter{client: client}
}

func (a *PlacesAdapter) Name() string              { return "google_places" }
func (a *PlacesAdapter) EstimatedCostUSD() float64 { return placesEstimatedCostUSD }

func (a *PlacesAdapter) Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error) {
	if company.Name == "" {
		return model.SourceResult{}, eris.New("sources: places adapter requires a company name")
	}

	resp, err := a.client.TextSearch(ctx, company.Name)
	if err != nil {
		return model.SourceResult{}, eris.Wrap(err, "sources: places text search")
	}
	if len(resp.Places) == 0 {
		return model.SourceResult{Source: a.Name(), Success: false, ErrorType: model.ErrorTypeNotFound, FetchedAt: time.Now()}, nil
	}

	place := resp.Places[0]
	return model.SourceResult{
		Source:  a.Name(),
		Success: true,
		Fields: map[string]any{
			"legal_name":        place.DisplayName.Text,
			"rating":            place.Rating,
			"user_rating_count": place.UserRatingCount,
		},
		CostUSD:   placesEstimatedCostUSD,
		FetchedAt: time.Now(),
	}, nil
}
