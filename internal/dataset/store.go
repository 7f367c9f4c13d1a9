// Package dataset holds the loaded filings table and reloads it from its source.
package dataset

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/metrics"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/storage"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// ReloadHook runs after every successful load with the new table.
type ReloadHook func(ctx context.Context, t *models.Table) error

// Overview is the dashboard summary of the dataset.
type Overview struct {
	TotalRecords  int       `json:"total_records"`
	Organizations int       `json:"organizations"`
	AvgRevenue    *float64  `json:"avg_revenue,omitempty"`
	PeriodBegin   string    `json:"period_begin,omitempty"`
	PeriodEnd     string    `json:"period_end,omitempty"`
	LoadedAt      time.Time `json:"loaded_at"`
}

// Store owns the current table. Readers get an immutable snapshot.
type Store struct {
	source         storage.Source
	skipIncomplete bool
	logger         *zap.Logger

	mu       sync.RWMutex
	table    *models.Table
	loadedAt time.Time
	hooks    []ReloadHook
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithSkipIncompletePeriods drops rows without a tax_period_begin when enabled.
func WithSkipIncompletePeriods(skip bool) Option {
	return func(s *Store) {
		s.skipIncomplete = skip
	}
}

// NewStore creates an empty store backed by source.
func NewStore(source storage.Source, opts ...Option) *Store {
	s := &Store{
		source:         source,
		skipIncomplete: true,
		table:          models.NewTable(nil, nil),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = utils.OrNop(s.logger)
	return s
}

// OnReload registers a hook called after each successful load.
func (s *Store) OnReload(hook ReloadHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// Load reads the source and swaps in the new table. On failure the previous table stays.
func (s *Store) Load(ctx context.Context) error {
	t, err := s.source.Load(ctx)
	if err != nil {
		metrics.DatasetReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to load dataset: %w", err)
	}

	dropped := 0
	if s.skipIncomplete && t.HasColumn(models.ColumnTaxPeriodBegin) {
		before := t.Len()
		t = t.Filter(func(r *models.Record) bool { return r.TaxPeriodBegin != "" })
		dropped = before - t.Len()
	}

	s.mu.Lock()
	s.table = t
	s.loadedAt = time.Now()
	hooks := append([]ReloadHook(nil), s.hooks...)
	s.mu.Unlock()

	metrics.DatasetReloads.WithLabelValues("success").Inc()
	metrics.DatasetRecords.Set(float64(t.Len()))
	s.logger.Info("dataset loaded",
		zap.Int("records", t.Len()),
		zap.Int("dropped_incomplete", dropped),
		zap.Int("organizations", t.DistinctEINs()))

	for _, hook := range hooks {
		if err := hook(ctx, t); err != nil {
			s.logger.Warn("reload hook failed", zap.Error(err))
		}
	}
	return nil
}

// Reload is Load for callers reacting to a source change.
func (s *Store) Reload(ctx context.Context) error {
	return s.Load(ctx)
}

// Table returns the current table.
func (s *Store) Table() *models.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Overview summarizes the current table.
func (s *Store) Overview() Overview {
	s.mu.RLock()
	t, loadedAt := s.table, s.loadedAt
	s.mu.RUnlock()

	ov := Overview{
		TotalRecords:  t.Len(),
		Organizations: t.DistinctEINs(),
		PeriodBegin:   t.MinPeriodBegin(),
		PeriodEnd:     t.MaxPeriodEnd(),
		LoadedAt:      loadedAt,
	}
	var revenues []float64
	for _, r := range t.Records {
		if v, ok := r.Value(models.ColumnTotalRevenue); ok {
			revenues = append(revenues, v)
		}
	}
	if len(revenues) > 0 {
		avg := utils.Mean(revenues)
		ov.AvgRevenue = &avg
	}
	return ov
}

// Preview returns the first n rows in source order, like a table head.
func (s *Store) Preview(n int) *models.Table {
	t := s.Table()
	if n < 0 {
		n = 0
	}
	if n > t.Len() {
		n = t.Len()
	}
	return t.Subset(t.Records[:n])
}

// Organizations lists distinct filers sorted by name, using each EIN's most recent business name.
func (s *Store) Organizations() []models.Organization {
	t := s.Table()
	latest := make(map[string]*models.Record)
	for _, r := range t.Records {
		if r.EIN == "" {
			continue
		}
		if cur, ok := latest[r.EIN]; !ok || r.TaxPeriodEnd > cur.TaxPeriodEnd {
			latest[r.EIN] = r
		}
	}
	out := make([]models.Organization, 0, len(latest))
	for ein, r := range latest {
		out = append(out, models.Organization{EIN: ein, BusinessName: r.BusinessName})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].BusinessName), strings.ToLower(out[j].BusinessName)
		if a != b {
			return a < b
		}
		return out[i].EIN < out[j].EIN
	})
	return out
}

// Organization finds a filer by EIN, ignoring separators.
func (s *Store) Organization(ein string) (models.Organization, bool) {
	want := utils.DigitsOnly(ein)
	for _, org := range s.Organizations() {
		if org.EIN == ein || (want != "" && utils.DigitsOnly(org.EIN) == want) {
			return org, true
		}
	}
	return models.Organization{}, false
}

// Close closes the underlying source.
func (s *Store) Close() error {
	return s.source.Close()
}
