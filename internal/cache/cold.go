package cache

import (
	"context"
	"encoding/json"
)

// staticFields are the only fields the cold tier is allowed to persist —
// data that, once observed, never changes (teacher's
// _extract_static_fields list).
var staticFields = map[string]bool{
	"legal_name":          true,
	"founded_year":        true,
	"company_number":      true,
	"jurisdiction":        true,
	"registration_status": true,
	"opencorporates_url":  true,
}

// isStaticData reports whether data contains at least one static field,
// i.e. whether it's worth persisting to the cold tier at all.
func isStaticData(data map[string]any) bool {
	for k := range data {
		if staticFields[k] {
			return true
		}
	}
	return false
}

// extractStaticFields filters data down to only the cold-cacheable keys.
func extractStaticFields(data map[string]any) map[string]any {
	out := make(map[string]any, len(data))
	for k, v := range data {
		if staticFields[k] {
			out[k] = v
		}
	}
	return out
}

// ColdStore is the object-storage-shaped contract the cold tier persists
// through — one implementation for local/dev (filesystem) and one for
// production (S3-compatible, e.g. Cloudflare R2). Keys are object paths
// ("static/{domain}/company_data.json"); ColdStore does not interpret
// them.
type ColdStore interface {
	GetObject(ctx context.Context, key string) ([]byte, bool, error)
	PutObject(ctx context.Context, key string, body []byte) error
}

// ColdTier wraps a ColdStore with GetDomain/SetDomain accessors for one
// domain's static company data, keyed by a single object key per domain.
// It does not implement Tier.
type ColdTier struct {
	store ColdStore
}

func NewColdTier(s ColdStore) *ColdTier {
	return &ColdTier{store: s}
}

func coldObjectKey(domain string) string {
	return "static/" + domain + "/company_data.json"
}

func (c *ColdTier) GetDomain(ctx context.Context, domain string) (map[string]any, bool, error) {
	raw, ok, err := c.store.GetObject(ctx, coldObjectKey(domain))
	if err != nil || !ok {
		return nil, ok, err
	}
	var data map[string]any
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// SetDomain persists only the static subset of data, and is a no-op if
// data carries no static fields at all.
func (c *ColdTier) SetDomain(ctx context.Context, domain string, data map[string]any) error {
	if !isStaticData(data) {
		return nil
	}
	raw, err := json.Marshal(extractStaticFields(data))
	if err != nil {
		return err
	}
	return c.store.PutObject(ctx, coldObjectKey(domain), raw)
}
