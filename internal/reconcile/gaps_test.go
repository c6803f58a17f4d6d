package reconcile

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInferCompanySize_Bands(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		input any
		want  companySizeBand
	}{
		{"exact int micro", 5, CompanySizeMicro},
		{"exact float pequena", float64(49), CompanySizePequena},
		{"range midpoint media", "51-200", CompanySizeMedia},
		{"plus notation grande", "1000+", CompanySizeGrande},
		{"boundary micro exclusive", "9", CompanySizeMicro},
		{"boundary pequena inclusive", "10", CompanySizePequena},
		{"boundary grande inclusive", "250", CompanySizeGrande},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := inferCompanySize(tc.input)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferCompanySize_UnparseableReturnsFalse(t *testing.T) {
	t.Parallel()
	_, ok := inferCompanySize("unknown")
	assert.False(t, ok)

	_, ok = inferCompanySize(nil)
	assert.False(t, ok)
}

func TestInferDigitalMaturity_CountsWhitelist(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name  string
		tech  []any
		want  string
	}{
		{"two modern is alta", []any{"React", "Vercel"}, "Alta"},
		{"one modern is media", []any{"React", "jQuery"}, "Média"},
		{"no modern is baixa", []any{"WordPress", "jQuery", "Bootstrap"}, "Baixa"},
		{"empty is baixa", []any{}, "Baixa"},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := inferDigitalMaturity(tc.tech)
			assert.True(t, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestInferDigitalMaturity_WrongTypeReturnsFalse(t *testing.T) {
	t.Parallel()
	_, ok := inferDigitalMaturity("not a list")
	assert.False(t, ok)
}

func TestApplyGapInference_SkipsMissingFields(t *testing.T) {
	t.Parallel()
	fields := map[string]any{}
	confidence := map[string]float64{}

	ApplyGapInference(fields, confidence)

	assert.NotContains(t, fields, "company_size")
	assert.NotContains(t, fields, "digital_maturity")
}

func TestApplyCNPJPenalty_ValidCNPJUnaffected(t *testing.T) {
	t.Parallel()
	fields := map[string]any{"cnpj": "11.222.333/0001-81"}
	confidence := map[string]float64{"cnpj": 95}

	ApplyCNPJPenalty(fields, confidence)

	assert.Equal(t, float64(95), confidence["cnpj"])
}

func TestApplyCNPJPenalty_InvalidChecksumPenalized(t *testing.T) {
	t.Parallel()
	fields := map[string]any{"cnpj": "11.222.333/0001-99"}
	confidence := map[string]float64{"cnpj": 95}

	ApplyCNPJPenalty(fields, confidence)

	assert.Equal(t, float64(85), confidence["cnpj"])
}

func TestApplyCNPJPenalty_FloorsAtZero(t *testing.T) {
	t.Parallel()
	fields := map[string]any{"cnpj": "00.000.000/0000-00"}
	confidence := map[string]float64{"cnpj": 5}

	ApplyCNPJPenalty(fields, confidence)

	assert.Equal(t, float64(0), confidence["cnpj"])
}

func TestApplyCNPJPenalty_MissingFieldNoop(t *testing.T) {
	t.Parallel()
	fields := map[string]any{}
	confidence := map[string]float64{}

	ApplyCNPJPenalty(fields, confidence)

	assert.Empty(t, confidence)
}
