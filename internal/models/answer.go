package models

import "time"

// Answer is the result of one analyzer run.
// Failed is set when the completion call failed and Text carries the error message;
// failed answers are shown to the user but never written to conversation memory.
type Answer struct {
	SessionID string     `json:"session_id,omitempty"`
	Question  string     `json:"question"`
	Text      string     `json:"answer"`
	Class     QueryClass `json:"class"`
	Records   int        `json:"records"`
	Failed    bool       `json:"failed,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	QueryTime int64      `json:"query_time_ms"`
}

// Organization is one distinct filer in the dataset.
type Organization struct {
	EIN          string `json:"ein"`
	BusinessName string `json:"business_name"`
}
