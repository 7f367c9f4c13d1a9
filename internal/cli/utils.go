// Package cli provides output helpers for the taxlens command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/prompt"
	"github.com/hyperjump/taxlens/internal/server"
	"github.com/hyperjump/taxlens/internal/session"
)

// OutputFormat selects how results are printed.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json", case-insensitively.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(strings.ToLower(strings.TrimSpace(s))) {
	case "", OutputText:
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	}
	return "", fmt.Errorf("invalid output format %q (use text or json)", s)
}

// WriteAnswer writes an analyzer answer to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, answer)
	}
	fmt.Fprintf(w, "\n[%s] %d records | %dms\n", answer.Class, answer.Records, answer.QueryTime)
	fmt.Fprintln(w, strings.Repeat("─", 57))
	fmt.Fprintf(w, "%s\n\n", answer.Text)
	return nil
}

// WriteHistory writes a transcript, newest first, to w.
func WriteHistory(w io.Writer, history []session.Exchange, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, server.HistoryResponse{History: history})
	}
	if len(history) == 0 {
		fmt.Fprintln(w, "No conversation history.")
		return nil
	}
	for _, ex := range history {
		fmt.Fprintf(w, "%s  Q: %s\n", ex.Timestamp, ex.Question)
		fmt.Fprintf(w, "       A: %s\n\n", TruncateWords(ex.Answer, 40))
	}
	return nil
}

// WriteStatus writes the server status to w.
func WriteStatus(w io.Writer, st *server.StatusResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	if st.Version != "" {
		fmt.Fprintf(w, "Version:        %s\n", st.Version)
	}
	fmt.Fprintf(w, "Sessions:       %d\n", st.Sessions)
	writeOverviewText(w, st.Dataset)
	if st.DataFile != nil {
		fmt.Fprintf(w, "Data file:      %s (%s, modified %s)\n",
			st.DataFile.Path, st.DataFile.Size, humanize.Time(st.DataFile.Modified))
	}
	return nil
}

// WriteOverview writes the dataset summary to w.
func WriteOverview(w io.Writer, ov dataset.Overview, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, ov)
	}
	writeOverviewText(w, ov)
	return nil
}

func writeOverviewText(w io.Writer, ov dataset.Overview) {
	fmt.Fprintf(w, "Records:        %s\n", humanize.Comma(int64(ov.TotalRecords)))
	fmt.Fprintf(w, "Organizations:  %s\n", humanize.Comma(int64(ov.Organizations)))
	if ov.AvgRevenue != nil {
		fmt.Fprintf(w, "Avg revenue:    %s\n", prompt.FormatMoney(*ov.AvgRevenue))
	}
	if ov.PeriodBegin != "" || ov.PeriodEnd != "" {
		fmt.Fprintf(w, "Date range:     %s to %s\n", ov.PeriodBegin, ov.PeriodEnd)
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
