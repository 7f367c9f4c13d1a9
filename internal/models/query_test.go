package models

import (
	"strings"
	"testing"
)

func TestQuestion_Validate(t *testing.T) {
	tests := []struct {
		name    string
		q       *Question
		wantErr bool
	}{
		{"empty question", &Question{Text: ""}, true},
		{"whitespace only", &Question{Text: " \t\n"}, true},
		{"valid question", &Question{Text: "What is the revenue trend?"}, false},
		{"too long", &Question{Text: strings.Repeat("x", 4001)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
