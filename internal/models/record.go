// Package models defines core data structures for tax records, questions, and answers.
package models

import (
	"sort"
	"strings"
)

// Canonical column names of the tax filing schema.
const (
	ColumnEIN            = "ein"
	ColumnBusinessName   = "business_name"
	ColumnTaxPeriodBegin = "tax_period_begin"
	ColumnTaxPeriodEnd   = "tax_period_end"
	ColumnTotalRevenue   = "total_revenue"
)

// Record is one organization's one-year tax filing.
// Numeric columns live in Values, other non-empty columns in Attrs.
// A null or missing column is absent from both maps.
type Record struct {
	EIN            string             `json:"ein"`
	BusinessName   string             `json:"business_name"`
	TaxPeriodBegin string             `json:"tax_period_begin"`
	TaxPeriodEnd   string             `json:"tax_period_end"`
	Values         map[string]float64 `json:"values,omitempty"`
	Attrs          map[string]string  `json:"attrs,omitempty"`
}

// Value returns the numeric value of column name.
func (r *Record) Value(name string) (float64, bool) {
	v, ok := r.Values[name]
	return v, ok
}

// Text returns the textual value of column name, including the identity columns.
func (r *Record) Text(name string) (string, bool) {
	switch name {
	case ColumnEIN:
		return r.EIN, r.EIN != ""
	case ColumnBusinessName:
		return r.BusinessName, r.BusinessName != ""
	case ColumnTaxPeriodBegin:
		return r.TaxPeriodBegin, r.TaxPeriodBegin != ""
	case ColumnTaxPeriodEnd:
		return r.TaxPeriodEnd, r.TaxPeriodEnd != ""
	}
	v, ok := r.Attrs[name]
	return v, ok && v != ""
}

// Table is an ordered sequence of records sharing one schema.
type Table struct {
	Columns []string  `json:"columns"`
	Records []*Record `json:"records"`
}

// NewTable returns a table with the given columns and records.
func NewTable(columns []string, records []*Record) *Table {
	return &Table{Columns: columns, Records: records}
}

// Len returns the number of records; a nil table has none.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Records)
}

// HasColumn reports whether the source schema carries column name.
func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Subset returns a table with the same columns and the given records.
func (t *Table) Subset(records []*Record) *Table {
	var cols []string
	if t != nil {
		cols = t.Columns
	}
	if records == nil {
		records = []*Record{}
	}
	return &Table{Columns: cols, Records: records}
}

// Filter returns the records for which keep returns true, preserving order.
func (t *Table) Filter(keep func(*Record) bool) *Table {
	out := make([]*Record, 0)
	if t != nil {
		for _, r := range t.Records {
			if keep(r) {
				out = append(out, r)
			}
		}
	}
	return t.Subset(out)
}

// SortedByPeriodEnd returns a copy ordered by tax period end (ascending or descending).
// The sort is stable so records sharing a period keep their source order.
func (t *Table) SortedByPeriodEnd(ascending bool) *Table {
	out := make([]*Record, t.Len())
	if t != nil {
		copy(out, t.Records)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if ascending {
			return out[i].TaxPeriodEnd < out[j].TaxPeriodEnd
		}
		return out[i].TaxPeriodEnd > out[j].TaxPeriodEnd
	})
	return t.Subset(out)
}

// MaxPeriodEnd returns the latest non-empty tax period end.
func (t *Table) MaxPeriodEnd() string {
	var max string
	if t == nil {
		return max
	}
	for _, r := range t.Records {
		if r.TaxPeriodEnd > max {
			max = r.TaxPeriodEnd
		}
	}
	return max
}

// MinPeriodBegin returns the earliest non-empty tax period begin.
func (t *Table) MinPeriodBegin() string {
	var min string
	if t == nil {
		return min
	}
	for _, r := range t.Records {
		if r.TaxPeriodBegin == "" {
			continue
		}
		if min == "" || r.TaxPeriodBegin < min {
			min = r.TaxPeriodBegin
		}
	}
	return min
}

// DistinctBusinessNames counts distinct non-empty business names.
func (t *Table) DistinctBusinessNames() int {
	return t.distinct(func(r *Record) string { return r.BusinessName })
}

// DistinctEINs counts distinct non-empty EINs.
func (t *Table) DistinctEINs() int {
	return t.distinct(func(r *Record) string { return r.EIN })
}

func (t *Table) distinct(key func(*Record) string) int {
	if t == nil {
		return 0
	}
	seen := make(map[string]struct{})
	for _, r := range t.Records {
		if k := strings.TrimSpace(key(r)); k != "" {
			seen[k] = struct{}{}
		}
	}
	return len(seen)
}
