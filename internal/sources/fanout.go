package sources

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// FanOutTimeout bounds the whole source fan-out, independent of each
// adapter's own per-call timeout.
const FanOutTimeout = 120 * time.Second

// FanOut queries every adapter concurrently and returns each one's
// result keyed by adapter name. An adapter that errors still contributes
// a SourceResult (MonitoringAdapter never propagates an error; a bare
// Adapter's error becomes an unsuccessful result here) so one slow or
// broken source never drops the others.
func FanOut(ctx context.Context, adapters []Adapter, company CompanyRef) map[string]model.SourceResult {
	ctx, cancel := context.WithTimeout(ctx, FanOutTimeout)
	defer cancel()

	results := make(map[string]model.SourceResult, len(adapters))
	var mu sync.Mutex

	g, gCtx := errgroup.WithContext(ctx)
	for _, adapter := range adapters {
		adapter := adapter
		g.Go(func() error {
			result, err := adapter.Fetch(gCtx, company)
			if err != nil {
				result = model.SourceResult{
					Source:    adapter.Name(),
					Success:   false,
					ErrorType: model.ErrorTypeUnknown,
					FetchedAt: time.Now(),
				}
			}
			mu.Lock()
			results[adapter.Name()] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}
