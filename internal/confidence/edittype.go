package confidence

import "github.com/agext/levenshtein"

// EditType buckets a suggested-vs-final-value edit by how much of the
// suggestion the user actually kept:
// similarity = 1 - edit_distance/max_length; >0.9 minor, >0.7 correction,
// >0.4 major, else complete_rewrite.
type EditType string

const (
	EditTypeNone            EditType = "no_change"
	EditTypeMinor           EditType = "minor"
	EditTypeCorrection      EditType = "correction"
	EditTypeMajor           EditType = "major"
	EditTypeCompleteRewrite EditType = "complete_rewrite"
)

const (
	minorSimilarity      = 0.9
	correctionSimilarity = 0.7
	majorSimilarity      = 0.4
)

// Distance returns the Levenshtein edit distance between a suggested
// value and the value the user actually kept.
func Distance(suggested, final string) int {
	return levenshtein.Distance(suggested, final, nil)
}

// Classify buckets an edit distance into an EditType by similarity
// (1 - distance/max(suggestedLen, finalLen)). Equal strings (distance
// zero) are EditTypeNone; any edit against an originally empty
// suggestion is always a complete rewrite.
func Classify(distance, suggestedLen, finalLen int) EditType {
	if distance == 0 {
		return EditTypeNone
	}

	maxLen := suggestedLen
	if finalLen > maxLen {
		maxLen = finalLen
	}
	if maxLen == 0 {
		return EditTypeCompleteRewrite
	}

	similarity := 1 - float64(distance)/float64(maxLen)
	switch {
	case similarity > minorSimilarity:
		return EditTypeMinor
	case similarity > correctionSimilarity:
		return EditTypeCorrection
	case similarity > majorSimilarity:
		return EditTypeMajor
	default:
		return EditTypeCompleteRewrite
	}
}

// IsSignificant reports whether an EditType counts toward the
// significant-edit rate (major rewrites or worse), per the original
// learner's `edit_type IN ('major', 'complete_rewrite')` filter.
func IsSignificant(t EditType) bool {
	return t == EditTypeMajor || t == EditTypeCompleteRewrite
}
