package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/strategy-pipeline/internal/model"
)

const validCNPJ = "11223333000104"

func TestValidateCNPJ(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		cnpj  string
		valid bool
	}{
		{"valid checksum", validCNPJ, true},
		{"wrong length", "1122333300010", false},
		{"all same digit", "11111111111111", false},
		{"bad first check digit", "11223333000194", false},
		{"bad second check digit", "11223333000103", false},
		{"non-digit characters", "1122333300010a", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.valid, ValidateCNPJ(tt.cnpj))
		})
	}
}

func TestRegistryBRAdapter_MalformedCNPJIsNotFound(t *testing.T) {
	t.Parallel()
	a := NewRegistryBRAdapter("http://unused")

	res, err := a.Fetch(context.Background(), CompanyRef{Domain: "not-a-cnpj"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestRegistryBRAdapter_MapsFields(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/cnpj/"+validCNPJ, r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"nome": "Acme Do Brasil Ltda",
			"fantasia": "Acme Brasil",
			"abertura": "15/03/2010",
			"situacao": "ATIVA",
			"uf": "SP",
			"municipio": "Sao Paulo",
			"cnpj": "` + validCNPJ + `"
		}`))
	}))
	defer server.Close()

	a := NewRegistryBRAdapter(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: validCNPJ})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "receita_ws", res.Source)
	assert.Equal(t, "Acme Do Brasil Ltda", res.Fields["legal_name"])
	assert.Equal(t, "2010", res.Fields["founded_year"])
	assert.Equal(t, "SP", res.Fields["jurisdiction"])
	assert.Equal(t, "ATIVA", res.Fields["registration_status"])
}

func TestRegistryBRAdapter_NotFoundStatus(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	a := NewRegistryBRAdapter(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: validCNPJ})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}

func TestRegistryBRAdapter_APIErrorStatusField(t *testing.T) {
	t.Parallel()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ERROR","message":"CNPJ não encontrado"}`))
	}))
	defer server.Close()

	a := NewRegistryBRAdapter(server.URL)
	res, err := a.Fetch(context.Background(), CompanyRef{Domain: validCNPJ})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, model.ErrorTypeNotFound, res.ErrorType)
}
