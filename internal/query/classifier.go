// Package query classifies analyst questions and extracts explicit identifiers from them.
package query

import (
	"regexp"
	"strings"

	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// DefaultComparisonKeywords mark a question that asks for a peer comparison.
var DefaultComparisonKeywords = []string{"peer", "compare"}

// DefaultPredictiveKeywords mark a question about trends or the future.
var DefaultPredictiveKeywords = []string{
	"predict", "projection", "estimate", "forecast", "future",
	"next year", "trend", "expected", "outlook", "potential",
}

// Classifier assigns a QueryClass to a question by keyword containment.
type Classifier struct {
	comparison []string
	predictive []string
}

// NewClassifier creates a Classifier. Empty keyword lists fall back to the defaults.
func NewClassifier(comparison, predictive []string) *Classifier {
	if len(comparison) == 0 {
		comparison = DefaultComparisonKeywords
	}
	if len(predictive) == 0 {
		predictive = DefaultPredictiveKeywords
	}
	return &Classifier{
		comparison: lowerAll(comparison),
		predictive: lowerAll(predictive),
	}
}

// Classify returns comparison, predictive, or plain. Comparison keywords win over predictive ones.
func (c *Classifier) Classify(question string) models.QueryClass {
	q := strings.ToLower(question)
	if containsAny(q, c.comparison) {
		return models.QueryClassComparison
	}
	if containsAny(q, c.predictive) {
		return models.QueryClassPredictive
	}
	return models.QueryClassPlain
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(strings.TrimSpace(s)))
	}
	return out
}

var einRegex = regexp.MustCompile(`(?i)\bein\b[\s:#=-]*([0-9][0-9-]*[0-9]|[0-9])`)

// ExtractEIN finds digits following the word "ein" and returns them without separators.
func ExtractEIN(question string) (string, bool) {
	m := einRegex.FindStringSubmatch(question)
	if len(m) < 2 {
		return "", false
	}
	ein := utils.DigitsOnly(m[1])
	if ein == "" {
		return "", false
	}
	return ein, true
}
