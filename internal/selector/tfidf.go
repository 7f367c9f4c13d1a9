package selector

import (
	"context"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/keyword"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// TFIDFSelector ranks rows by TF-IDF similarity to plain questions and defers to a
// RuleSelector for everything else. The index is rebuilt whenever a different table is seen.
type TFIDFSelector struct {
	rules  *RuleSelector
	limit  int
	opts   *keyword.SearchOptions
	logger *zap.Logger

	newIndex func() (keyword.RowIndex, error)

	mu    sync.RWMutex
	table *models.Table
	index keyword.RowIndex
}

func newBleveIndex() (keyword.RowIndex, error) {
	idx, err := keyword.NewBleveIndex()
	if err != nil {
		return nil, err
	}
	return idx, nil
}

// TFIDFOption configures a TFIDFSelector.
type TFIDFOption func(*TFIDFSelector)

// WithLogger sets the logger for index failures.
func WithLogger(logger *zap.Logger) TFIDFOption {
	return func(s *TFIDFSelector) {
		s.logger = logger
	}
}

// WithFuzziness enables fuzzy term matching with the given edit distance.
func WithFuzziness(distance int) TFIDFOption {
	return func(s *TFIDFSelector) {
		if distance > 0 {
			s.opts = &keyword.SearchOptions{FuzzyEnabled: true, Fuzziness: distance}
		}
	}
}

// NewTFIDFSelector creates a TFIDFSelector returning up to limit rows (default 3).
func NewTFIDFSelector(rules *RuleSelector, limit int, opts ...TFIDFOption) *TFIDFSelector {
	if rules == nil {
		rules = NewRuleSelector(0, 0)
	}
	if limit <= 0 {
		limit = DefaultTFIDFResults
	}
	s := &TFIDFSelector{rules: rules, limit: limit, newIndex: newBleveIndex}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// Select implements Selector.
func (s *TFIDFSelector) Select(ctx context.Context, req Request) *models.Table {
	fallback := s.rules.Select(ctx, req)
	if req.Class != models.QueryClassPlain || req.Table.Len() == 0 {
		return fallback
	}
	if ein, ok := query.ExtractEIN(req.Question); ok && ByEIN(req.Table, ein).Len() > 0 {
		return fallback
	}

	ranked, err := s.rank(ctx, req)
	if err != nil {
		s.logger.Warn("TF-IDF ranking failed, using rule selection", zap.Error(err))
		return fallback
	}
	if ranked.Len() == 0 {
		return fallback
	}
	return ranked
}

func (s *TFIDFSelector) rank(ctx context.Context, req Request) (*models.Table, error) {
	idx, err := s.indexFor(ctx, req.Table)
	if err != nil {
		return nil, err
	}

	size := s.limit
	if req.Focus != "" {
		// leave room to drop rows of other organizations
		size = req.Table.Len()
	}
	hits, err := idx.Search(ctx, req.Question, size, s.opts)
	if err != nil {
		return nil, err
	}

	focus := utils.DigitsOnly(req.Focus)
	out := make([]*models.Record, 0, s.limit)
	for _, hit := range hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= req.Table.Len() {
			continue
		}
		r := req.Table.Records[i]
		if req.Focus != "" && utils.DigitsOnly(r.EIN) != focus {
			continue
		}
		out = append(out, r)
		if len(out) == s.limit {
			break
		}
	}
	return req.Table.Subset(out), nil
}

// indexFor returns the index built for t, building it on first use.
func (s *TFIDFSelector) indexFor(ctx context.Context, t *models.Table) (keyword.RowIndex, error) {
	s.mu.RLock()
	if s.table == t && s.index != nil {
		idx := s.index
		s.mu.RUnlock()
		return idx, nil
	}
	s.mu.RUnlock()

	return s.build(ctx, t)
}

// Rebuild replaces the index with one built over t.
func (s *TFIDFSelector) Rebuild(ctx context.Context, t *models.Table) error {
	_, err := s.build(ctx, t)
	return err
}

func (s *TFIDFSelector) build(ctx context.Context, t *models.Table) (keyword.RowIndex, error) {
	idx, err := s.newIndex()
	if err != nil {
		return nil, err
	}
	rows := make([]string, t.Len())
	for i, r := range t.Records {
		rows[i] = RowText(t.Columns, r)
	}
	if err := idx.IndexAll(ctx, rows); err != nil {
		_ = idx.Close()
		return nil, err
	}

	s.mu.Lock()
	old := s.index
	s.index = idx
	s.table = t
	s.mu.Unlock()

	if old != nil {
		_ = old.Close()
	}
	if docs, err := idx.DocCount(); err == nil {
		s.logger.Debug("TF-IDF index rebuilt", zap.Uint64("docs", docs))
	}
	return idx, nil
}

// Close releases the index.
func (s *TFIDFSelector) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return nil
	}
	err := s.index.Close()
	s.index = nil
	s.table = nil
	return err
}

// RowText joins every non-null value of r in column order, separated by spaces.
func RowText(columns []string, r *models.Record) string {
	if len(columns) == 0 {
		columns = []string{
			models.ColumnEIN, models.ColumnBusinessName,
			models.ColumnTaxPeriodBegin, models.ColumnTaxPeriodEnd,
		}
	}
	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		if v, ok := r.Value(c); ok {
			parts = append(parts, strconv.FormatFloat(v, 'f', -1, 64))
			continue
		}
		if v, ok := r.Text(c); ok {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
