package model

import "time"

// StageCacheEntry is one row of the per-stage content-hashed cache.
type StageCacheEntry struct {
	Stage       string    `json:"stage"`
	Company     string    `json:"company"`
	Industry    string    `json:"industry"`
	ContentHash string    `json:"content_hash"`
	Result      []byte    `json:"result"`
	CostUSD     float64   `json:"cost_usd"`
	CreatedAt   time.Time `json:"created_at"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// CostTraceEntry is one append-only record in the run-level cost ledger.
type CostTraceEntry struct {
	Stage        string  `json:"stage"`
	Model        string  `json:"model"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	CacheHit     bool    `json:"cache_hit"`
}

// SourcePerformanceRecord tracks a (field, source) pair's learned
// confidence and the sample size it rests on.
type SourcePerformanceRecord struct {
	Field          string    `json:"field"`
	Source         string    `json:"source"`
	Confidence     float64   `json:"confidence"`
	SampleSize     int       `json:"sample_size"`
	EditRate       float64   `json:"edit_rate"` // the learner stores the success rate (1 - edit rate) here
	UpdatedAt      time.Time `json:"updated_at"`
}

// ValidationHistoryRecord is one observed user edit of an auto-filled
// field, the raw material the confidence learner trains on.
type ValidationHistoryRecord struct {
	Field         string    `json:"field"`
	Source        string    `json:"source"`
	SuggestedValue string   `json:"suggested_value"`
	FinalValue    string    `json:"final_value"`
	WasEdited     bool      `json:"was_edited"`
	EditDistance  int       `json:"edit_distance"`
	RecordedAt    time.Time `json:"recorded_at"`
}

// EnrichmentSession is the warm-tier cache row keyed by
// "progressive_enrichment:{domain}".
type EnrichmentSession struct {
	CacheKey  string          `json:"cache_key"`
	Domain    string          `json:"domain"`
	Layers    map[int][]byte  `json:"layers"`
	ExpiresAt time.Time       `json:"expires_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}
