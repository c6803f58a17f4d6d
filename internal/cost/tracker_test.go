package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTracker_TotalAndByStage(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	tr.RecordLLM("extraction", "google/gemini-2.5-flash", 1000, 200, 0.002, false)
	tr.RecordLLM("strategy", "openai/gpt-4o", 5000, 2000, 0.15, false)
	tr.RecordLLM("strategy", "openai/gpt-4o", 0, 0, 0, true)
	tr.RecordSource("clearbit", 0.05, false)

	assert.InDelta(t, 0.202, tr.Total(), 0.0001)

	byStage := tr.ByStage()
	assert.InDelta(t, 0.002, byStage["extraction"], 0.0001)
	assert.InDelta(t, 0.15, byStage["strategy"], 0.0001)
	assert.InDelta(t, 0.05, byStage["source_fanout"], 0.0001)

	assert.Len(t, tr.Entries(), 4)
}

func TestTracker_ConcurrentSafe(t *testing.T) {
	t.Parallel()
	tr := NewTracker()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr.RecordSource("clearbit", 0.05, false)
		}()
	}
	wg.Wait()

	assert.Len(t, tr.Entries(), 50)
	assert.InDelta(t, 2.5, tr.Total(), 0.0001)
}
