package pipeline

import (
	"regexp"
	"strings"
)

const maxSanitizedStringLen = 3000

// promptInjectionMarkers are phrases that, if they appear inside scraped
// or researched text, are stripped before the text reaches an LLM
// prompt — a scraped page's own text should never be able to redirect
// the extraction prompt.
var promptInjectionMarkers = []string{
	"ignore previous instructions",
	"ignore all previous instructions",
	"disregard the above",
	"you are now",
	"system prompt:",
	"new instructions:",
}

var controlCharPattern = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f]`)

// sanitizeString strips control characters and known prompt-injection
// markers from s, then truncates to maxSanitizedStringLen before the
// text reaches a Stage 1 prompt.
func sanitizeString(s string) string {
	s = controlCharPattern.ReplaceAllString(s, "")

	lower := strings.ToLower(s)
	for _, marker := range promptInjectionMarkers {
		for idx := strings.Index(lower, marker); idx != -1; idx = strings.Index(lower, marker) {
			s = s[:idx] + s[idx+len(marker):]
			lower = strings.ToLower(s)
		}
	}

	if len(s) > maxSanitizedStringLen {
		s = truncateRunes(s, maxSanitizedStringLen)
	}
	return s
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// sanitizeAny recursively sanitizes every string value reachable through
// maps and slices of external (adapter/research) data, leaving
// non-string scalars untouched.
func sanitizeAny(v any) any {
	switch vv := v.(type) {
	case string:
		return sanitizeString(vv)
	case map[string]any:
		out := make(map[string]any, len(vv))
		for k, val := range vv {
			out[k] = sanitizeAny(val)
		}
		return out
	case []any:
		out := make([]any, len(vv))
		for i, val := range vv {
			out[i] = sanitizeAny(val)
		}
		return out
	default:
		return v
	}
}
