package llm

import "strings"

// refusalPatterns are exact substrings of the English and Portuguese
// content-policy refusal phrasing the underlying models emit. Checked
// case-insensitively before JSON validation, since a refusal is prose and
// will never parse as JSON anyway — catching it first gives a clearer
// error than "invalid JSON".
var refusalPatterns = []string{
	"i'm sorry, i can't assist",
	"i cannot assist",
	"i can't help with that",
	"i cannot help with that",
	"desculpe, não posso ajudar",
	"não posso ajudar com isso",
}

// IsRefusal reports whether content matches a known content-policy
// refusal pattern.
func IsRefusal(content string) bool {
	lower := strings.ToLower(content)
	for _, p := range refusalPatterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
