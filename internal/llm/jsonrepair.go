package llm

import "strings"

// CleanJSONResponse strips markdown code fences and trailing prose from a
// model completion that is expected to be JSON, mirroring
// LLMClient._clean_json_response from the original implementation:
// unwrap a ```json fence (or a bare ``` fence), skip to the first "{" if
// the content doesn't already start with one, then cut at the brace that
// balances the opening one so trailing commentary never reaches the
// parser.
func CleanJSONResponse(content string) string {
	content = strings.TrimSpace(content)

	if idx := strings.Index(content, "```json"); idx != -1 {
		start := idx + len("```json")
		if end := strings.Index(content[start:], "```"); end != -1 {
			content = strings.TrimSpace(content[start : start+end])
		}
	} else if idx := strings.Index(content, "```"); idx != -1 {
		start := idx + len("```")
		if end := strings.Index(content[start:], "```"); end != -1 {
			content = strings.TrimSpace(content[start : start+end])
		}
	}

	if !strings.HasPrefix(content, "{") {
		if idx := strings.Index(content, "{"); idx != -1 {
			content = content[idx:]
		}
	}

	if strings.HasPrefix(content, "{") {
		depth := 0
		for i, ch := range content {
			switch ch {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return content[:i+1]
				}
			}
		}
	}

	return content
}
