package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContent_StableAcrossKeyOrder(t *testing.T) {
	t.Parallel()

	a := map[string]any{"company": "Acme", "industry": "SaaS"}
	b := map[string]any{"industry": "SaaS", "company": "Acme"}

	ha, err := Content(a)
	require.NoError(t, err)
	hb, err := Content(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestContent_WhitespaceInsensitive(t *testing.T) {
	t.Parallel()

	ha, err := Content(map[string]any{"challenge": "scaling   support\nteam"})
	require.NoError(t, err)
	hb, err := Content(map[string]any{"challenge": "scaling support team"})
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestContent_DifferentValuesDiffer(t *testing.T) {
	t.Parallel()

	ha, err := Content(map[string]any{"company": "Acme"})
	require.NoError(t, err)
	hb, err := Content(map[string]any{"company": "Beta"})
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestContent_StructRoundTrips(t *testing.T) {
	t.Parallel()

	type input struct {
		Company  string `json:"company"`
		Industry string `json:"industry"`
	}

	ha, err := Content(input{Company: "Acme", Industry: "SaaS"})
	require.NoError(t, err)
	hb, err := Content(map[string]any{"company": "Acme", "industry": "SaaS"})
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestMustContent_NeverPanics(t *testing.T) {
	t.Parallel()
	assert.NotPanics(t, func() {
		_ = MustContent(make(chan int))
	})
}

func TestDomain(t *testing.T) {
	t.Parallel()

	tests := []struct{ raw, want string }{
		{"https://www.acme.com/about", "acme.com"},
		{"http://acme.com", "acme.com"},
		{"WWW.Acme.COM", "acme.com"},
		{"acme.com?ref=x", "acme.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Domain(tt.raw))
	}
}

func TestKey_DeterministicAndLayerScoped(t *testing.T) {
	t.Parallel()

	k1 := Key(2, "acme.com")
	k2 := Key(2, "https://www.acme.com")
	k3 := Key(3, "acme.com")

	assert.Equal(t, k1, k2)
	assert.NotEqual(t, k1, k3)
}
