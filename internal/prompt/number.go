package prompt

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

// DefaultMonetaryMarkers are field-name fragments that mark a currency value.
var DefaultMonetaryMarkers = []string{"revenue", "expenses", "assets", "liabilities", "compensation"}

// IsMonetary reports whether field holds a currency amount.
func IsMonetary(field string, markers []string) bool {
	f := strings.ToLower(field)
	for _, m := range markers {
		if m != "" && strings.Contains(f, m) {
			return true
		}
	}
	return false
}

// FormatMoney renders v as "$" + thousands grouping + 2 decimals, e.g. $1,234,567.80.
func FormatMoney(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "$" + strconv.FormatFloat(v, 'f', -1, 64)
	}
	fixed := strconv.FormatFloat(math.Abs(v), 'f', 2, 64)
	sign := ""
	if v < 0 && fixed != "0.00" {
		sign = "-"
	}
	intPart, frac, _ := strings.Cut(fixed, ".")
	whole, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return sign + "$" + fixed
	}
	return sign + "$" + humanize.Comma(whole) + "." + frac
}

// FormatNumber renders v with thousands grouping and no forced decimals, e.g. 42 or 1,234.5.
func FormatNumber(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return humanize.Commaf(v)
}

// FormatValue picks the money or plain rendering for field.
func FormatValue(field string, v float64, markers []string) string {
	if IsMonetary(field, markers) {
		return FormatMoney(v)
	}
	return FormatNumber(v)
}

// PercentChange returns the signed percent term, e.g. " (+20.0%)", or "" when prev is zero.
func PercentChange(prev, cur float64) string {
	if prev == 0 || math.IsNaN(prev) || math.IsNaN(cur) {
		return ""
	}
	pct := (cur - prev) / math.Abs(prev) * 100
	return fmt.Sprintf(" (%+.1f%%)", pct)
}
