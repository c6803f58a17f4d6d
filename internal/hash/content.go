// Package hash canonicalizes JSON-shaped values and content-hashes them,
// so that cache keys are independent of map key order or incidental
// whitespace in the input.
package hash

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Content returns the hex SHA-256 of v's canonical form. v must be built
// from the JSON-compatible types (map[string]any, []any, string, float64,
// bool, nil) — the same shapes encoding/json produces when unmarshalling
// into `any`.
func Content(v any) (string, error) {
	var b strings.Builder
	if err := canonicalize(&b, v); err != nil {
		return "", eris.Wrap(err, "hash: canonicalize")
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:]), nil
}

// MustContent is Content for call sites that already know v is
// canonicalizable (e.g. a struct round-tripped through encoding/json).
// It returns an empty string on error rather than panicking, matching
// the cache wrapper's "never fail the stage over a cache problem" rule.
func MustContent(v any) string {
	h, err := Content(v)
	if err != nil {
		return ""
	}
	return h
}

func canonicalize(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		b.WriteString(strconv.FormatBool(t))
	case string:
		b.WriteString(strconv.Quote(normalizeString(t)))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(t))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			if err := canonicalize(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := canonicalize(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
	case []string:
		arr := make([]any, len(t))
		for i, s := range t {
			arr[i] = s
		}
		return canonicalize(b, arr)
	default:
		// Structs and other non-JSON-native types are round-tripped
		// through encoding/json so callers can pass stage input structs
		// directly instead of pre-converting them to map[string]any.
		raw, err := json.Marshal(v)
		if err != nil {
			return eris.Errorf("hash: unsupported type %T: %v", v, err)
		}
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return eris.Wrap(err, "hash: round-trip decode")
		}
		return canonicalize(b, decoded)
	}
	return nil
}

// normalizeString collapses runs of whitespace and trims the ends, so
// that cosmetic differences in scraped or user-entered text don't change
// the hash.
func normalizeString(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// Domain normalizes a company domain/URL into the bare hostname used as
// a cache-key component, lowercased with a leading "www." stripped.
func Domain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return d
}

// Key builds the "enrich:{layer}:{domain}:{hash8}" cache key format used
// throughout the multi-tier cache.
func Key(layer int, domain string) string {
	d := Domain(domain)
	sum := sha256.Sum256([]byte(d))
	return fmt.Sprintf("enrich:%d:%s:%s", layer, d, hex.EncodeToString(sum[:])[:8])
}
