package cost

import (
	"sync"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

// Tracker is the run-level cost ledger the orchestrator feeds from each
// stage and each data-source fan-out call, mirroring the running
// cost_usd total kept by AnalysisLogger in the original implementation.
// Safe for concurrent use by the source fan-out goroutines.
type Tracker struct {
	mu      sync.Mutex
	entries []model.CostTraceEntry
}

// NewTracker returns an empty cost ledger.
func NewTracker() *Tracker {
	return &Tracker{}
}

// RecordLLM appends one LLM-call trace entry.
func (t *Tracker) RecordLLM(stage, model_ string, inputTokens, outputTokens int, costUSD float64, cacheHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, model.CostTraceEntry{
		Stage:        stage,
		Model:        model_,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      costUSD,
		CacheHit:     cacheHit,
	})
}

// RecordSource appends one data-source-call trace entry, tagged with
// the source name in the Model field since sources have no token counts.
func (t *Tracker) RecordSource(source string, costUSD float64, cacheHit bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, model.CostTraceEntry{
		Stage:    "source_fanout",
		Model:    source,
		CostUSD:  costUSD,
		CacheHit: cacheHit,
	})
}

// Total returns the sum of every recorded cost.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	var sum float64
	for _, e := range t.entries {
		sum += e.CostUSD
	}
	return sum
}

// ByStage returns the summed cost per stage name, for the per-stage
// cost breakdown in the final report's metadata.
func (t *Tracker) ByStage() map[string]float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]float64)
	for _, e := range t.entries {
		out[e.Stage] += e.CostUSD
	}
	return out
}

// Entries returns a copy of the full ledger, in recorded order.
func (t *Tracker) Entries() []model.CostTraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.CostTraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}
