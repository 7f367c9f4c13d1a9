package selector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxlens/internal/models"
)

func rec(ein, name, end string, revenue float64) *models.Record {
	return &models.Record{
		EIN: ein, BusinessName: name, TaxPeriodBegin: end[:4] + "-01-01", TaxPeriodEnd: end,
		Values: map[string]float64{"total_revenue": revenue},
	}
}

// fixture in source order (period end descending, as the database query returns it)
func fixture() *models.Table {
	return models.NewTable(
		[]string{"ein", "business_name", "tax_period_begin", "tax_period_end", "total_revenue"},
		[]*models.Record{
			rec("11-1111111", "Acme Community Fund", "2023-12-31", 120000),
			rec("222222222", "Riverside Arts Council", "2023-12-31", 45000),
			rec("333333333", "Harbor Food Bank", "2022-12-31", 900000),
			rec("11-1111111", "Acme Community Fund", "2022-12-31", 100000),
			rec("222222222", "Riverside Arts Council", "2021-12-31", 40000),
			rec("11-1111111", "Acme Community Fund", "2021-12-31", 90000),
			rec("333333333", "Harbor Food Bank", "2020-12-31", 850000),
		},
	)
}

func ends(t *models.Table) []string {
	out := make([]string, 0, t.Len())
	for _, r := range t.Records {
		out = append(out, r.TaxPeriodEnd)
	}
	return out
}

func TestRuleSelector_Plain(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{Table: fixture(), Question: "total revenue?", Class: models.QueryClassPlain})

	require.Equal(t, 3, got.Len())
	assert.Equal(t, []string{"2023-12-31", "2023-12-31", "2022-12-31"}, ends(got))
}

func TestRuleSelector_PlainWithFocus(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{
		Table: fixture(), Question: "total revenue?", Class: models.QueryClassPlain, Focus: "222222222",
	})

	require.Equal(t, 2, got.Len())
	assert.Equal(t, []string{"2023-12-31", "2021-12-31"}, ends(got))
	for _, r := range got.Records {
		assert.Equal(t, "Riverside Arts Council", r.BusinessName)
	}
}

func TestRuleSelector_Predictive(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{Table: fixture(), Question: "trend", Class: models.QueryClassPredictive})

	require.Equal(t, 5, got.Len())
	assert.Equal(t, []string{"2021-12-31", "2022-12-31", "2022-12-31", "2023-12-31", "2023-12-31"}, ends(got))
}

func TestRuleSelector_PredictiveWithFocus(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{
		Table: fixture(), Question: "forecast", Class: models.QueryClassPredictive, Focus: "111111111",
	})

	assert.Equal(t, []string{"2021-12-31", "2022-12-31", "2023-12-31"}, ends(got))
}

func TestRuleSelector_Comparison(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{Table: fixture(), Question: "peers", Class: models.QueryClassComparison, Focus: "333333333"})

	require.Equal(t, 2, got.Len())
	for _, r := range got.Records {
		assert.Equal(t, "2023-12-31", r.TaxPeriodEnd)
	}
}

func TestRuleSelector_ExplicitEIN(t *testing.T) {
	s := NewRuleSelector(0, 0)
	got := s.Select(context.Background(), Request{
		Table: fixture(), Question: "How is EIN 33-3333333 doing compared to peers?", Class: models.QueryClassComparison,
	})

	assert.Equal(t, []string{"2020-12-31", "2022-12-31"}, ends(got))

	// unknown EIN falls through to the class rule
	got = s.Select(context.Background(), Request{Table: fixture(), Question: "ein 999", Class: models.QueryClassPlain})
	assert.Equal(t, 3, got.Len())
}

func TestRuleSelector_EmptyTable(t *testing.T) {
	s := NewRuleSelector(0, 0)
	for _, class := range []models.QueryClass{models.QueryClassPlain, models.QueryClassPredictive, models.QueryClassComparison} {
		got := s.Select(context.Background(), Request{Table: models.NewTable(nil, nil), Question: "ein 1", Class: class})
		require.NotNil(t, got)
		assert.Equal(t, 0, got.Len())
	}
	got := s.Select(context.Background(), Request{Class: models.QueryClassPlain})
	require.NotNil(t, got)
	assert.Equal(t, 0, got.Len())
}

func TestRuleSelector_SmallTable(t *testing.T) {
	s := NewRuleSelector(0, 0)
	tbl := models.NewTable(nil, []*models.Record{rec("1", "A", "2020-12-31", 1), rec("1", "A", "2021-12-31", 2)})

	plain := s.Select(context.Background(), Request{Table: tbl, Class: models.QueryClassPlain})
	assert.Equal(t, []string{"2021-12-31", "2020-12-31"}, ends(plain))

	pred := s.Select(context.Background(), Request{Table: tbl, Class: models.QueryClassPredictive})
	assert.Equal(t, []string{"2020-12-31", "2021-12-31"}, ends(pred))
}
