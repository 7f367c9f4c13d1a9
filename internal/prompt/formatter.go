// Package prompt renders selected tax records into the text context sent with a question.
package prompt

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// DefaultSummaryMetrics are the peer statistics computed for comparison questions
// and the metrics tracked in trend sections.
var DefaultSummaryMetrics = []string{
	"total_revenue", "total_expenses", "program_service_expenses",
	"admin_expenses", "fundraising_expenses",
	"total_assets", "total_liabilities", "net_assets",
}

// DefaultRelevantFields are shown for the selected organization.
var DefaultRelevantFields = []string{
	"business_name", "tax_period_end", "total_revenue",
	"total_expenses", "program_service_expenses", "admin_expenses",
	"fundraising_expenses", "total_assets", "total_liabilities",
	"net_assets", "employee_count", "volunteer_count",
}

// DefaultConversationWindow is how many past turns are replayed in the context.
const DefaultConversationWindow = 2

// Options configures a Formatter. Zero values use the defaults above.
type Options struct {
	MonetaryMarkers    []string
	SummaryMetrics     []string
	RelevantFields     []string
	ConversationWindow int
}

// Input is everything the formatter needs for one question.
type Input struct {
	Full     *models.Table
	Selected *models.Table
	Class    models.QueryClass
	Memory   []models.Turn
	Focus    string
}

// Formatter builds the prompt context. It never fails; missing columns are skipped.
type Formatter struct {
	markers  []string
	metrics  []string
	relevant []string
	window   int
}

// NewFormatter creates a Formatter.
func NewFormatter(opts Options) *Formatter {
	f := &Formatter{
		markers:  opts.MonetaryMarkers,
		metrics:  opts.SummaryMetrics,
		relevant: opts.RelevantFields,
		window:   opts.ConversationWindow,
	}
	if len(f.markers) == 0 {
		f.markers = DefaultMonetaryMarkers
	}
	if len(f.metrics) == 0 {
		f.metrics = DefaultSummaryMetrics
	}
	if len(f.relevant) == 0 {
		f.relevant = DefaultRelevantFields
	}
	if f.window <= 0 {
		f.window = DefaultConversationWindow
	}
	return f
}

// Format renders the overview, the class-specific section, the focus section,
// and the conversation recap, in that order.
func (f *Formatter) Format(in Input) string {
	var b strings.Builder
	b.WriteString("Analysis Context:\n\n")
	f.writeOverview(&b, in.Full)

	switch in.Class {
	case models.QueryClassComparison:
		f.writeStatistics(&b, in.Selected)
	case models.QueryClassPredictive:
		f.writeTrend(&b, in.Selected)
	default:
		f.writeRecords(&b, in.Selected)
	}

	if in.Focus != "" {
		f.writeFocus(&b, in.Full, in.Focus)
	}
	f.writeRecap(&b, in.Memory)

	return strings.TrimRight(b.String(), "\n")
}

func (f *Formatter) writeOverview(b *strings.Builder, full *models.Table) {
	b.WriteString("Dataset Overview:\n")
	fmt.Fprintf(b, "Total Organizations: %d\n", full.DistinctBusinessNames())
	fmt.Fprintf(b, "Total Records: %d\n", full.Len())
	begin, end := full.MinPeriodBegin(), full.MaxPeriodEnd()
	if begin != "" || end != "" {
		fmt.Fprintf(b, "Date Range: %s to %s\n", begin, end)
	}
}

func (f *Formatter) writeStatistics(b *strings.Builder, sel *models.Table) {
	if sel.Len() == 0 {
		return
	}
	b.WriteString("\nPeer Statistics (Most Recent Period):\n")
	if end := sel.MaxPeriodEnd(); end != "" {
		fmt.Fprintf(b, "Period End: %s\n", end)
	}
	fmt.Fprintf(b, "Organizations in Cohort: %d\n", sel.Len())

	for _, metric := range f.metrics {
		values := columnValues(sel, metric)
		if len(values) == 0 {
			continue
		}
		fmt.Fprintf(b, "\n%s:\n", metric)
		fmt.Fprintf(b, "- mean: %s\n", f.value(metric, utils.Mean(values)))
		fmt.Fprintf(b, "- median: %s\n", f.value(metric, utils.Median(values)))
		if std := utils.StdDev(values); !math.IsNaN(std) {
			fmt.Fprintf(b, "- std: %s\n", f.value(metric, std))
		}
	}
}

func (f *Formatter) writeTrend(b *strings.Builder, sel *models.Table) {
	if sel.Len() == 0 {
		return
	}
	b.WriteString("\nTrend Analysis:\n")

	ordered := sel.SortedByPeriodEnd(true)
	var orgs []string
	byOrg := make(map[string][]*models.Record)
	for _, r := range ordered.Records {
		key := r.EIN + "\x00" + r.BusinessName
		if _, ok := byOrg[key]; !ok {
			orgs = append(orgs, key)
		}
		byOrg[key] = append(byOrg[key], r)
	}

	for _, key := range orgs {
		rows := byOrg[key]
		b.WriteString("\n")
		b.WriteString(orgHeader(rows[0]))
		b.WriteString(":\n")
		for _, metric := range f.metrics {
			if !anyValue(rows, metric) {
				continue
			}
			fmt.Fprintf(b, "%s:\n", metric)
			var prev float64
			hasPrev := false
			for _, r := range rows {
				v, ok := r.Value(metric)
				if !ok {
					continue
				}
				line := fmt.Sprintf("- %s: %s", r.TaxPeriodEnd, f.value(metric, v))
				if hasPrev {
					line += PercentChange(prev, v)
				}
				b.WriteString(line)
				b.WriteString("\n")
				prev, hasPrev = v, true
			}
		}
	}
}

func (f *Formatter) writeRecords(b *strings.Builder, sel *models.Table) {
	if sel.Len() == 0 {
		return
	}
	b.WriteString("\nRelevant Records:\n")
	for i, r := range sel.Records {
		fmt.Fprintf(b, "\nRecord %d:\n", i+1)
		for _, name := range fieldOrder(sel.Columns, r) {
			if v, ok := f.field(r, name); ok {
				fmt.Fprintf(b, "- %s: %s\n", name, v)
			}
		}
	}
}

func (f *Formatter) writeFocus(b *strings.Builder, full *models.Table, focus string) {
	want := utils.DigitsOnly(focus)
	if want == "" {
		want = focus
	}
	rows := full.Filter(func(r *models.Record) bool {
		return r.EIN == focus || utils.DigitsOnly(r.EIN) == want
	})
	if rows.Len() == 0 {
		return
	}
	latest := rows.SortedByPeriodEnd(false).Records[0]

	fmt.Fprintf(b, "\nSelected Organization: %s\n", orgHeader(latest))
	for _, name := range f.relevant {
		if v, ok := f.field(latest, name); ok {
			fmt.Fprintf(b, "- %s: %s\n", name, v)
		}
	}
}

func (f *Formatter) writeRecap(b *strings.Builder, turns []models.Turn) {
	if len(turns) == 0 {
		return
	}
	if len(turns) > f.window {
		turns = turns[len(turns)-f.window:]
	}
	b.WriteString("\nRecent Conversation Context:\n")
	for _, t := range turns {
		fmt.Fprintf(b, "\nQ: %s\nA: %s\n", t.Question, t.Answer)
	}
}

func (f *Formatter) value(field string, v float64) string {
	return FormatValue(field, v, f.markers)
}

// field renders one column of r, numeric columns first.
func (f *Formatter) field(r *models.Record, name string) (string, bool) {
	if v, ok := r.Value(name); ok {
		return f.value(name, v), true
	}
	return r.Text(name)
}

func orgHeader(r *models.Record) string {
	name := r.BusinessName
	if name == "" {
		name = "Unknown organization"
	}
	if r.EIN == "" {
		return name
	}
	return fmt.Sprintf("%s (EIN %s)", name, r.EIN)
}

func columnValues(t *models.Table, metric string) []float64 {
	var out []float64
	for _, r := range t.Records {
		if v, ok := r.Value(metric); ok && !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

func anyValue(rows []*models.Record, metric string) bool {
	for _, r := range rows {
		if _, ok := r.Value(metric); ok {
			return true
		}
	}
	return false
}

// fieldOrder returns the source column order, or a stable fallback for tables built without one.
func fieldOrder(columns []string, r *models.Record) []string {
	if len(columns) > 0 {
		return columns
	}
	order := []string{
		models.ColumnEIN, models.ColumnBusinessName,
		models.ColumnTaxPeriodBegin, models.ColumnTaxPeriodEnd,
	}
	extra := make([]string, 0, len(r.Values)+len(r.Attrs))
	for k := range r.Values {
		extra = append(extra, k)
	}
	for k := range r.Attrs {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	return append(order, extra...)
}
