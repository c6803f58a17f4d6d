// Package sources implements the data-source fan-out: one Adapter per
// external provider (company metadata, registries, geocoding, paid
// enrichment APIs, and the free/paid LLM-inference fallback), each
// normalising its response into a model.SourceResult. Adapter generalises
// the teacher's waterfall/provider.Provider interface; every adapter is
// wrapped in a MonitoringAdapter so a panicking or circuit-broken source
// never takes down the fan-out around it.
package sources

import (
	"context"
	"errors"
	"net"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/strategy-pipeline/internal/model"
	"github.com/sells-group/strategy-pipeline/internal/resilience"
)

// Adapter fetches one data source's view of a company. Implementations
// must be safe for concurrent use; the pipeline fans out over adapters
// with errgroup.
type Adapter interface {
	// Name identifies the source in model.SourceResult.Source and in the
	// source-performance/confidence-learning tables.
	Name() string
	// EstimatedCostUSD is the flat or typical per-call cost, used for
	// cache-savings accounting even on a cache hit.
	EstimatedCostUSD() float64
	// Fetch queries the source for domain/company and returns a
	// normalized result. Fetch itself may return an error; callers
	// should prefer the MonitoringAdapter wrapper, which never does.
	Fetch(ctx context.Context, company CompanyRef) (model.SourceResult, error)
}

// CompanyRef is the identifying information adapters key their lookups
// on, generalising waterfall/provider.CompanyIdentifier to this domain.
type CompanyRef struct {
	Domain   string
	Name     string
	Industry string
	Country  string
	City     string
	State    string
}

// MonitoringAdapter wraps an Adapter with panic recovery and a circuit
// breaker, so a single misbehaving source degrades to an unsuccessful
// model.SourceResult instead of aborting the whole fan-out.
type MonitoringAdapter struct {
	inner   Adapter
	breaker *resilience.CircuitBreaker
}

// NewMonitoringAdapter wraps inner with a dedicated circuit breaker using
// cfg (resilience.DefaultCircuitBreakerConfig if the zero value is
// passed in by the caller).
func NewMonitoringAdapter(inner Adapter, cfg resilience.CircuitBreakerConfig) *MonitoringAdapter {
	return &MonitoringAdapter{inner: inner, breaker: resilience.NewCircuitBreaker(cfg)}
}

func (m *MonitoringAdapter) Name() string {
	return m.inner.Name()
}

func (m *MonitoringAdapter) EstimatedCostUSD() float64 {
	return m.inner.EstimatedCostUSD()
}

// Fetch always returns a model.SourceResult, never an error: a circuit-
// open source, a panic, or a returned error are all translated into
// Success: false with the appropriate ErrorType so the reconciliation
// stage can treat every source uniformly.
func (m *MonitoringAdapter) Fetch(ctx context.Context, company CompanyRef) (result model.SourceResult) {
	result = model.SourceResult{Source: m.inner.Name(), FetchedAt: time.Now()}

	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("sources: adapter panicked",
				zap.String("source", m.inner.Name()), zap.Any("panic", r))
			result.Success = false
			result.ErrorType = model.ErrorTypeUnknown
		}
	}()

	res, err := resilience.ExecuteVal(ctx, m.breaker, func(ctx context.Context) (model.SourceResult, error) {
		return m.inner.Fetch(ctx, company)
	})
	if err != nil {
		if err == resilience.ErrCircuitOpen {
			zap.L().Warn("sources: circuit open, skipping", zap.String("source", m.inner.Name()))
			result.ErrorType = model.ErrorTypeCircuitOpen
			return result
		}
		zap.L().Warn("sources: fetch failed", zap.String("source", m.inner.Name()), zap.Error(err))
		result.ErrorType = classifyError(err)
		return result
	}
	return res
}

func classifyError(err error) model.ErrorType {
	var te *resilience.TransientError
	if errors.As(err, &te) {
		if te.StatusCode == 429 {
			return model.ErrorTypeRateLimit
		}
		if te.StatusCode == 401 || te.StatusCode == 403 {
			return model.ErrorTypeAuth
		}
		if te.StatusCode == 404 {
			return model.ErrorTypeNotFound
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorTypeTimeout
	}

	return model.ErrorTypeUnknown
}
