package analyzer

import "strings"

// Normalize fixes currency and whitespace artifacts in a model answer.
// Replacements repeat until stable so the result is idempotent.
func Normalize(raw string) string {
	s := raw
	for strings.Contains(s, "$,") {
		s = strings.ReplaceAll(s, "$,", "$")
	}
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	for strings.Contains(s, " .") {
		s = strings.ReplaceAll(s, " .", ".")
	}
	return s
}
