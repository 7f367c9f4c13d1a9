package analyzer

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/taxlens/internal/llm"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/prompt"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/internal/selector"
	"github.com/hyperjump/taxlens/internal/session"
)

type staticTable struct{ t *models.Table }

func (s staticTable) Table() *models.Table { return s.t }

type fakeClient struct {
	reply   *llm.Response
	err     error
	block   bool
	lastReq llm.Request
	calls   int
}

func (f *fakeClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	f.calls++
	f.lastReq = req
	if f.block {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %v", llm.ErrTimeout, ctx.Err())
	}
	return f.reply, f.err
}

func textReply(s string) *llm.Response {
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: s}}}
}

func acme() *models.Table {
	return models.NewTable(
		[]string{"ein", "business_name", "tax_period_begin", "tax_period_end", "total_revenue"},
		[]*models.Record{
			{EIN: "111", BusinessName: "Acme", TaxPeriodBegin: "2023-01-01", TaxPeriodEnd: "2023-12-31", Values: map[string]float64{"total_revenue": 120000}},
			{EIN: "111", BusinessName: "Acme", TaxPeriodBegin: "2022-01-01", TaxPeriodEnd: "2022-12-31", Values: map[string]float64{"total_revenue": 100000}},
		},
	)
}

func newAnalyzer(client llm.Client, cfg Config) *Analyzer {
	return New(
		staticTable{acme()},
		query.NewClassifier(nil, nil),
		selector.NewRuleSelector(0, 0),
		prompt.NewFormatter(prompt.Options{}),
		client,
		cfg,
		WithClock(func() time.Time { return time.Date(2024, 5, 1, 14, 30, 0, 0, time.UTC) }),
	)
}

func TestAnalyze_PredictiveTrend(t *testing.T) {
	client := &fakeClient{reply: textReply("Revenue rose  to $,120,000 .")}
	a := newAnalyzer(client, Config{Model: "m"})
	sess := session.New("s", 10)

	ans := a.Analyze(context.Background(), sess, "Show Acme's revenue trend")

	assert.Equal(t, models.QueryClassPredictive, ans.Class)
	assert.Equal(t, 2, ans.Records)
	assert.False(t, ans.Failed)
	assert.Equal(t, "Revenue rose to $120,000.", ans.Text)

	require.Len(t, client.lastReq.Messages, 1)
	msg := client.lastReq.Messages[0].Content
	assert.True(t, strings.HasPrefix(msg, "Based on the following tax records:\n\n"))
	assert.True(t, strings.HasSuffix(msg, "\n\nQuestion: Show Acme's revenue trend"))
	assert.Contains(t, msg, "2022-12-31: $100,000.00")
	assert.Contains(t, msg, "2023-12-31: $120,000.00 (+20.0%)")
	assert.Contains(t, client.lastReq.System, "program efficiency")
	assert.Contains(t, client.lastReq.System, "present trend")
	assert.Equal(t, llm.DefaultMaxTokens, client.lastReq.MaxTokens)
	assert.Equal(t, "m", client.lastReq.Model)

	recent := sess.Memory.Recent(1)
	require.Len(t, recent, 1)
	assert.Equal(t, "Revenue rose to $120,000.", recent[0].Answer)

	tr := sess.Transcript()
	require.Len(t, tr, 1)
	assert.Equal(t, "14:30", tr[0].Timestamp)
}

func TestAnalyze_RemoteFailureNotRemembered(t *testing.T) {
	client := &fakeClient{err: fmt.Errorf("%w: anthropic error (status 401): invalid x-api-key", llm.ErrCompletionFailed)}
	a := newAnalyzer(client, Config{})
	sess := session.New("s", 10)

	ans := a.Analyze(context.Background(), sess, "What is the revenue?")

	assert.True(t, ans.Failed)
	assert.True(t, strings.HasPrefix(ans.Text, "Error analyzing records: "))
	assert.Contains(t, ans.Text, "invalid x-api-key")
	assert.Equal(t, 0, sess.Memory.Len())
	require.Len(t, sess.Transcript(), 1)
	assert.True(t, sess.Transcript()[0].Failed)
}

func TestAnalyze_EmptyCompletion(t *testing.T) {
	client := &fakeClient{reply: &llm.Response{}}
	a := newAnalyzer(client, Config{})
	sess := session.New("s", 10)

	ans := a.Analyze(context.Background(), sess, "What is the revenue?")

	assert.Equal(t, EmptyAnswer, ans.Text)
	assert.False(t, ans.Failed)
	assert.Equal(t, 0, sess.Memory.Len())
}

func TestAnalyze_Timeout(t *testing.T) {
	client := &fakeClient{block: true}
	a := newAnalyzer(client, Config{Timeout: 20 * time.Millisecond})
	sess := session.New("s", 10)

	ans := a.Analyze(context.Background(), sess, "What is the revenue?")

	assert.True(t, ans.Failed)
	assert.Contains(t, ans.Text, ErrorAnswerPrefix)
	assert.Contains(t, ans.Text, "timed out")
	assert.Equal(t, 0, sess.Memory.Len())
}

func TestAnalyze_RecapAndFocus(t *testing.T) {
	client := &fakeClient{reply: textReply("first")}
	a := newAnalyzer(client, Config{Role: RoleReliability})
	sess := session.New("s", 10)
	sess.SetFocus("111", "Acme")

	a.Analyze(context.Background(), sess, "What is the revenue?")
	client.reply = textReply("second")
	a.Analyze(context.Background(), sess, "And expenses?")

	msg := client.lastReq.Messages[0].Content
	assert.Contains(t, msg, "Selected Organization: Acme (EIN 111)")
	assert.Contains(t, msg, "Q: What is the revenue?\nA: first")
	assert.Contains(t, client.lastReq.System, "revenue reliability")
	assert.NotContains(t, client.lastReq.System, "present trend")
	assert.Equal(t, 2, sess.Memory.Len())
	assert.Equal(t, "And expenses?", sess.Transcript()[0].Question)
}

func TestAnalyze_ComparisonBeatsPredictive(t *testing.T) {
	client := &fakeClient{reply: textReply("ok")}
	a := newAnalyzer(client, Config{})

	ans := a.Analyze(context.Background(), session.New("s", 10), "Compare the forecast with peers")
	assert.Equal(t, models.QueryClassComparison, ans.Class)
	assert.Contains(t, client.lastReq.Messages[0].Content, "Peer Statistics")
}
