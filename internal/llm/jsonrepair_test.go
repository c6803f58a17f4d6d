package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"already clean", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"leading prose", `Here is the analysis: {"a":1}`, `{"a":1}`},
		{"trailing prose", `{"a":1} Hope this helps!`, `{"a":1}`},
		{"nested braces balance", `{"a":{"b":1}} trailing`, `{"a":{"b":1}}`},
		{"fence with trailing prose", "```json\n{\"a\":1}\n```\nLet me know if you need more.", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanJSONResponse(tt.content))
		})
	}
}
