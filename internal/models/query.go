package models

import (
	"fmt"
	"strings"
)

// QueryClass tags a question by the kind of context it needs.
type QueryClass string

const (
	// QueryClassComparison asks how an organization stands against its peers.
	QueryClassComparison QueryClass = "comparison"
	// QueryClassPredictive asks about trends, forecasts, or expectations.
	QueryClassPredictive QueryClass = "predictive"
	// QueryClassPlain is any other question.
	QueryClassPlain QueryClass = "plain"
)

// Turn is one completed question/answer exchange kept in conversation memory.
type Turn struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Question is a user submission to the analyzer.
type Question struct {
	Text string `json:"question"`
}

// Validate ensures the question carries text and enforces a length cap.
func (q *Question) Validate() error {
	if strings.TrimSpace(q.Text) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	if len(q.Text) > 4000 {
		return fmt.Errorf("question too long: %d characters (max 4000)", len(q.Text))
	}
	return nil
}
