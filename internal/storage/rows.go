package storage

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hyperjump/taxlens/internal/models"
)

var datePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// dateLayouts are the period-date renderings seen in exported filings.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006/01/02",
	"1/2/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
	"1/2/06",
	"1/2/06 15:04",
	"01-02-2006",
	"2-Jan-2006",
	"Jan 2, 2006",
}

// NormalizeColumn lower-cases a header and replaces spaces with underscores.
func NormalizeColumn(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = strings.Join(strings.Fields(n), "_")
	return n
}

// NormalizeColumns applies NormalizeColumn to every header.
func NormalizeColumns(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = NormalizeColumn(n)
	}
	return out
}

// recordFromCells builds a record from one row of raw cell values aligned with columns.
// Supported cell types are the ones database/sql and the file readers produce.
func recordFromCells(columns []string, cells []any) *models.Record {
	r := &models.Record{
		Values: make(map[string]float64),
		Attrs:  make(map[string]string),
	}
	for i, col := range columns {
		if i >= len(cells) {
			break
		}
		setField(r, col, cells[i])
	}
	return r
}

func setField(r *models.Record, col string, cell any) {
	switch col {
	case models.ColumnEIN:
		r.EIN = cellText(cell)
		return
	case models.ColumnBusinessName:
		r.BusinessName = cellText(cell)
		return
	case models.ColumnTaxPeriodBegin:
		r.TaxPeriodBegin = dateText(cell)
		return
	case models.ColumnTaxPeriodEnd:
		r.TaxPeriodEnd = dateText(cell)
		return
	}

	switch v := cell.(type) {
	case nil:
	case int64:
		r.Values[col] = float64(v)
	case int:
		r.Values[col] = float64(v)
	case float64:
		if !math.IsNaN(v) {
			r.Values[col] = v
		}
	case bool:
		r.Attrs[col] = strconv.FormatBool(v)
	case time.Time:
		r.Attrs[col] = v.Format("2006-01-02")
	default:
		s := cellText(v)
		if s == "" {
			return
		}
		if f, ok := parseNumber(s); ok {
			r.Values[col] = f
			return
		}
		r.Attrs[col] = s
	}
}

// cellText renders a cell as trimmed text; null-like markers become "".
func cellText(cell any) string {
	var s string
	switch v := cell.(type) {
	case nil:
		return ""
	case string:
		s = v
	case []byte:
		s = string(v)
	case int64:
		s = strconv.FormatInt(v, 10)
	case int:
		s = strconv.Itoa(v)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		s = strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		s = v.Format("2006-01-02")
	default:
		return ""
	}
	s = strings.TrimSpace(s)
	switch strings.ToLower(s) {
	case "null", "nan", "none", "n/a":
		return ""
	}
	return s
}

// dateText renders a period date as YYYY-MM-DD. Unrecognized text is kept as is.
func dateText(cell any) string {
	s := cellText(cell)
	if s == "" || datePrefix.MatchString(s) {
		if len(s) > 10 {
			return s[:10]
		}
		return s
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	return s
}

// parseNumber accepts plain numbers and currency-formatted ones like "$1,234.50".
func parseNumber(s string) (float64, bool) {
	clean := strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	if clean == "" || clean == "-" {
		return 0, false
	}
	neg := false
	if strings.HasPrefix(clean, "(") && strings.HasSuffix(clean, ")") {
		neg = true
		clean = clean[1 : len(clean)-1]
	}
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// tableFromStrings converts header + string rows (CSV, Excel) into a table.
func tableFromStrings(header []string, rows [][]string) *models.Table {
	columns := NormalizeColumns(header)
	records := make([]*models.Record, 0, len(rows))
	cells := make([]any, len(columns))
	for _, row := range rows {
		if blankRow(row) {
			continue
		}
		for i := range cells {
			if i < len(row) {
				cells[i] = row[i]
			} else {
				cells[i] = nil
			}
		}
		records = append(records, recordFromCells(columns, cells))
	}
	return models.NewTable(columns, records)
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
