// Package selector narrows the full table to the few records relevant to a question.
package selector

import (
	"context"

	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// Default window sizes.
const (
	DefaultPlainLimit      = 3
	DefaultPredictiveLimit = 5
	DefaultTFIDFResults    = 3
)

// Request is one selection input. Focus is the session's selected EIN, empty when none.
type Request struct {
	Table    *models.Table
	Question string
	Class    models.QueryClass
	Focus    string
}

// Selector picks the records relevant to a question. It never fails; an empty table yields an empty table.
type Selector interface {
	Select(ctx context.Context, req Request) *models.Table
}

// RuleSelector applies the explicit-EIN, recency, and peer-cohort rules.
type RuleSelector struct {
	plainLimit      int
	predictiveLimit int
}

// NewRuleSelector creates a RuleSelector. Non-positive limits use the defaults.
func NewRuleSelector(plainLimit, predictiveLimit int) *RuleSelector {
	if plainLimit <= 0 {
		plainLimit = DefaultPlainLimit
	}
	if predictiveLimit <= 0 {
		predictiveLimit = DefaultPredictiveLimit
	}
	return &RuleSelector{plainLimit: plainLimit, predictiveLimit: predictiveLimit}
}

// Select implements Selector.
func (s *RuleSelector) Select(ctx context.Context, req Request) *models.Table {
	if req.Table.Len() == 0 {
		return req.Table.Subset(nil)
	}

	if ein, ok := query.ExtractEIN(req.Question); ok {
		if rows := ByEIN(req.Table, ein); rows.Len() > 0 {
			return rows.SortedByPeriodEnd(true)
		}
	}

	switch req.Class {
	case models.QueryClassPredictive:
		ordered := s.scope(req).SortedByPeriodEnd(true)
		return tail(ordered, s.predictiveLimit)
	case models.QueryClassComparison:
		latest := req.Table.MaxPeriodEnd()
		return req.Table.Filter(func(r *models.Record) bool {
			return r.TaxPeriodEnd == latest
		})
	default:
		ordered := s.scope(req).SortedByPeriodEnd(false)
		return head(ordered, s.plainLimit)
	}
}

// scope restricts the table to the focus organization when one is selected.
func (s *RuleSelector) scope(req Request) *models.Table {
	if req.Focus == "" {
		return req.Table
	}
	return ByEIN(req.Table, req.Focus)
}

// ByEIN returns the rows whose EIN matches ein after removing separators.
func ByEIN(t *models.Table, ein string) *models.Table {
	want := utils.DigitsOnly(ein)
	if want == "" {
		return t.Filter(func(r *models.Record) bool { return r.EIN == ein })
	}
	return t.Filter(func(r *models.Record) bool {
		return utils.DigitsOnly(r.EIN) == want
	})
}

func head(t *models.Table, n int) *models.Table {
	if t.Len() <= n {
		return t
	}
	return t.Subset(t.Records[:n])
}

func tail(t *models.Table, n int) *models.Table {
	if t.Len() <= n {
		return t
	}
	return t.Subset(t.Records[t.Len()-n:])
}
