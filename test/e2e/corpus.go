// Package e2e provides end-to-end tests over a synthetic filings corpus and a stubbed completion API.
package e2e

import (
	"fmt"
	"strings"
)

// Columns is the header row written for every fixture format.
var Columns = []string{
	"EIN", "Business Name", "Tax Period Begin", "Tax Period End",
	"Total Revenue", "Total Expenses", "Program Service Expenses",
	"Admin Expenses", "Fundraising Expenses", "Total Assets",
	"Total Liabilities", "Net Assets", "Employee Count",
}

// Filing is one synthetic Form 990 row.
type Filing struct {
	EIN                 string
	BusinessName        string
	PeriodBegin         string
	PeriodEnd           string
	TotalRevenue        int64
	TotalExpenses       int64
	ProgramExpenses     int64
	AdminExpenses       int64
	FundraisingExpenses int64
	TotalAssets         int64
	TotalLiabilities    int64
	EmployeeCount       int64
}

// Row renders the filing in Columns order. Revenue uses the "$1,234" style seen in exported sheets.
func (f Filing) Row() []string {
	return []string{
		f.EIN, f.BusinessName, f.PeriodBegin, f.PeriodEnd,
		dollars(f.TotalRevenue),
		fmt.Sprint(f.TotalExpenses),
		fmt.Sprint(f.ProgramExpenses),
		fmt.Sprint(f.AdminExpenses),
		fmt.Sprint(f.FundraisingExpenses),
		fmt.Sprint(f.TotalAssets),
		fmt.Sprint(f.TotalLiabilities),
		fmt.Sprint(f.TotalAssets - f.TotalLiabilities),
		fmt.Sprint(f.EmployeeCount),
	}
}

// QuestionCase is a question with the query class it must be routed to and
// strings the context sent to the model must (and must not) contain.
type QuestionCase struct {
	Question    string
	Class       string
	MustContain []string
	MustNotHave []string
	Description string
}

// Corpus holds filings and question cases.
type Corpus struct {
	Filings []Filing
	Cases   []QuestionCase
	// Incomplete is how many filings lack a period begin date and are dropped on load.
	Incomplete int
}

var organizations = []struct {
	ein  string
	name string
	base int64
}{
	{"12-3456789", "Harbor Food Bank", 1_200_000},
	{"98-7654321", "Arts Council of Millbrook", 800_000},
	{"45-1112223", "Riverside Community Clinic", 4_500_000},
	{"33-4445556", "Northside Youth League", 250_000},
	{"27-9990001", "Lakeshore Literacy Project", 610_000},
	{"81-2223334", "Evergreen Land Trust", 2_100_000},
}

// BuildCorpus returns five fiscal years (2019-2023) of filings for each organization,
// plus one draft filing without a begin date.
func BuildCorpus() *Corpus {
	var filings []Filing
	for i, org := range organizations {
		for year := 2019; year <= 2023; year++ {
			growth := int64(100 + (year-2019)*(5+i))
			revenue := org.base * growth / 100
			expenses := revenue * 92 / 100
			filings = append(filings, Filing{
				EIN:                 org.ein,
				BusinessName:        org.name,
				PeriodBegin:         fmt.Sprintf("%d-01-01", year),
				PeriodEnd:           fmt.Sprintf("%d-12-31", year),
				TotalRevenue:        revenue,
				TotalExpenses:       expenses,
				ProgramExpenses:     expenses * 75 / 100,
				AdminExpenses:       expenses * 15 / 100,
				FundraisingExpenses: expenses * 10 / 100,
				TotalAssets:         revenue * 3 / 2,
				TotalLiabilities:    revenue / 4,
				EmployeeCount:       int64(10 + i*3 + (year - 2019)),
			})
		}
	}
	filings = append(filings, Filing{
		EIN:          "66-0000001",
		BusinessName: "Draft Filer",
		PeriodEnd:    "2023-12-31",
		TotalRevenue: 1,
	})
	return &Corpus{Filings: filings, Cases: buildCases(), Incomplete: 1}
}

func buildCases() []QuestionCase {
	return []QuestionCase{
		{
			Question:    "How does EIN 12-3456789 compare to its peers?",
			Class:       "comparison",
			MustContain: []string{"Peer Statistics (Most Recent Period):", "Period End: 2023-12-31"},
			Description: "comparison with an explicit EIN summarizes that organization's filings",
		},
		{
			Question:    "What is the revenue trend for EIN 45-1112223?",
			Class:       "predictive",
			MustContain: []string{"Trend Analysis:", "Riverside Community Clinic (EIN 45-1112223):", "- 2023-12-31:"},
			MustNotHave: []string{"Harbor Food Bank"},
			Description: "predictive with an explicit EIN keeps only that organization's history",
		},
		{
			Question:    "Show the fundraising expenses of EIN 33-4445556",
			Class:       "plain",
			MustContain: []string{"Relevant Records:", "Northside Youth League"},
			MustNotHave: []string{"Evergreen Land Trust"},
			Description: "plain question with an EIN lists that organization's latest filings",
		},
		{
			Question:    "Which organization had the most employees?",
			Class:       "plain",
			MustContain: []string{"Dataset Overview:", "Total Organizations: 6", "Relevant Records:"},
			MustNotHave: []string{"Draft Filer"},
			Description: "plain question without an EIN uses the most recent filings",
		},
	}
}

func dollars(v int64) string {
	s := fmt.Sprint(v)
	var b strings.Builder
	b.WriteString("$")
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}
