package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestColdTier_RoundTripOnlyStaticFields(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewColdTier(NewFilesystemColdStore(dir))
	ctx := context.Background()

	err := c.SetDomain(ctx, "acme.com", map[string]any{
		"legal_name":   "Acme Inc",
		"founded_year": float64(1999),
		"description":  "not static, should be dropped",
	})
	require.NoError(t, err)

	data, ok, err := c.GetDomain(ctx, "acme.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Acme Inc", data["legal_name"])
	assert.NotContains(t, data, "description")
}

func TestColdTier_NoStaticFieldsSkipsWrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewColdTier(NewFilesystemColdStore(dir))
	ctx := context.Background()

	require.NoError(t, c.SetDomain(ctx, "acme.com", map[string]any{"description": "only dynamic data"}))

	_, ok, err := c.GetDomain(ctx, "acme.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestColdTier_MissReturnsFalse(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	c := NewColdTier(NewFilesystemColdStore(dir))

	_, ok, err := c.GetDomain(context.Background(), "unknown.com")
	require.NoError(t, err)
	assert.False(t, ok)
}
