package cache

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Stats tracks hot/warm/cold hits, misses, and total_savings_usd as
// plain counters, mirrored into Prometheus gauges for scraping.
type Stats struct {
	mu sync.Mutex

	HotHits         int
	WarmHits        int
	ColdHits        int
	Misses          int
	TotalSavingsUSD float64

	gauges *statGauges
}

type statGauges struct {
	hotHits  prometheus.Gauge
	warmHits prometheus.Gauge
	coldHits prometheus.Gauge
	misses   prometheus.Gauge
	savings  prometheus.Gauge
}

// NewStats builds a Stats and registers its gauges on reg. reg may be nil,
// in which case Stats tracks counts without exporting them.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{}
	if reg == nil {
		return s
	}

	g := &statGauges{
		hotHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_hot_hits_total", Help: "Multi-tier cache hot-tier hits.",
		}),
		warmHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_warm_hits_total", Help: "Multi-tier cache warm-tier hits.",
		}),
		coldHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_cold_hits_total", Help: "Multi-tier cache cold-tier hits.",
		}),
		misses: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_misses_total", Help: "Multi-tier cache misses (API calls made).",
		}),
		savings: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_total_savings_usd", Help: "Estimated USD saved by cache hits.",
		}),
	}
	reg.MustRegister(g.hotHits, g.warmHits, g.coldHits, g.misses, g.savings)
	s.gauges = g
	return s
}

func (s *Stats) recordHit(tier string, estimatedCost float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch tier {
	case "hot":
		s.HotHits++
	case "warm":
		s.WarmHits++
	case "cold":
		s.ColdHits++
	}
	s.TotalSavingsUSD += estimatedCost
	s.sync()
}

func (s *Stats) recordMiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Misses++
	s.sync()
}

// sync must be called with mu held.
func (s *Stats) sync() {
	if s.gauges == nil {
		return
	}
	s.gauges.hotHits.Set(float64(s.HotHits))
	s.gauges.warmHits.Set(float64(s.WarmHits))
	s.gauges.coldHits.Set(float64(s.ColdHits))
	s.gauges.misses.Set(float64(s.Misses))
	s.gauges.savings.Set(s.TotalSavingsUSD)
}

// HitRate returns the fraction (0..1) of lookups that hit any tier.
func (s *Stats) HitRate() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	hits := s.HotHits + s.WarmHits + s.ColdHits
	total := hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
