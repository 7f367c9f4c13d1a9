// Package analyzer runs the question pipeline: classify, select, format, complete, normalize, remember.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/llm"
	"github.com/hyperjump/taxlens/internal/metrics"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/prompt"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/internal/selector"
	"github.com/hyperjump/taxlens/internal/session"
	"github.com/hyperjump/taxlens/pkg/utils"
)

// Fixed answer texts.
const (
	EmptyAnswer       = "Unable to generate analysis"
	ErrorAnswerPrefix = "Error analyzing records: "
)

// DefaultTimeout bounds one completion call, retries included.
const DefaultTimeout = 30 * time.Second

// TableSource supplies the current dataset.
type TableSource interface {
	Table() *models.Table
}

// Config holds the analyzer's completion settings.
type Config struct {
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
	Role        string
}

// Analyzer answers questions within a session.
type Analyzer struct {
	data       TableSource
	classifier *query.Classifier
	selector   selector.Selector
	formatter  *prompt.Formatter
	client     llm.Client
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithClock overrides the transcript clock.
func WithClock(now func() time.Time) Option {
	return func(a *Analyzer) {
		a.now = now
	}
}

// New creates an Analyzer.
func New(data TableSource, classifier *query.Classifier, sel selector.Selector, formatter *prompt.Formatter, client llm.Client, cfg Config, opts ...Option) *Analyzer {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = llm.DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Role == "" {
		cfg.Role = RoleEfficiency
	}
	a := &Analyzer{
		data:       data,
		classifier: classifier,
		selector:   sel,
		formatter:  formatter,
		client:     client,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = utils.OrNop(a.logger)
	return a
}

// Analyze answers question in sess. Remote failures become answer text and are never returned as errors.
// Only successful, non-empty completions are written to the session memory; every exchange goes to the transcript.
func (a *Analyzer) Analyze(ctx context.Context, sess *session.Session, question string) *models.Answer {
	sess.Lock()
	defer sess.Unlock()

	start := a.now()
	focus := sess.Focus()
	table := a.data.Table()

	class := a.classifier.Classify(question)
	metrics.QuestionsTotal.WithLabelValues(string(class)).Inc()

	selected := a.selector.Select(ctx, selector.Request{
		Table:    table,
		Question: question,
		Class:    class,
		Focus:    focus,
	})
	metrics.SelectedRecords.Observe(float64(selected.Len()))

	promptContext := a.formatter.Format(prompt.Input{
		Full:     table,
		Selected: selected,
		Class:    class,
		Memory:   sess.Memory.All(),
		Focus:    focus,
	})

	answer := &models.Answer{
		SessionID: sess.ID,
		Question:  question,
		Class:     class,
		Records:   selected.Len(),
		Timestamp: start,
	}

	text, ok := a.complete(ctx, class, question, promptContext)
	answer.Text = text
	answer.Failed = !ok
	if ok && text != EmptyAnswer {
		sess.Memory.Append(question, text)
	}

	answer.QueryTime = a.now().Sub(start).Milliseconds()
	sess.Record(start, answer)

	a.logger.Info("question analyzed",
		zap.String("session", sess.ID),
		zap.String("question", utils.Truncate(question, 80)),
		zap.String("class", string(class)),
		zap.Int("records", answer.Records),
		zap.Bool("failed", answer.Failed),
		zap.Int64("query_time_ms", answer.QueryTime))
	return answer
}

// complete calls the model and returns the normalized answer; ok is false when the call failed.
func (a *Analyzer) complete(ctx context.Context, class models.QueryClass, question, promptContext string) (string, bool) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Timeout)
	defer cancel()

	started := time.Now()
	resp, err := a.client.Complete(ctx, llm.Request{
		Model:       a.cfg.Model,
		System:      SystemPrompt(a.cfg.Role, class),
		Messages:    llm.UserMessage(UserMessage(promptContext, question)),
		MaxTokens:   a.cfg.MaxTokens,
		Temperature: a.cfg.Temperature,
	})
	elapsed := time.Since(started).Seconds()

	if err != nil {
		outcome := metrics.OutcomeError
		if errors.Is(err, llm.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			outcome = metrics.OutcomeTimeout
		}
		metrics.CompletionsTotal.WithLabelValues(outcome).Inc()
		metrics.CompletionDuration.WithLabelValues(outcome).Observe(elapsed)
		a.logger.Warn("completion failed", zap.Error(err))
		return ErrorAnswerPrefix + err.Error(), false
	}

	if resp.Empty() {
		metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeEmpty).Inc()
		metrics.CompletionDuration.WithLabelValues(metrics.OutcomeEmpty).Observe(elapsed)
		return EmptyAnswer, true
	}

	metrics.CompletionsTotal.WithLabelValues(metrics.OutcomeSuccess).Inc()
	metrics.CompletionDuration.WithLabelValues(metrics.OutcomeSuccess).Observe(elapsed)
	return Normalize(resp.Text()), true
}

// UserMessage wraps the prompt context and the question into the single user message.
func UserMessage(promptContext, question string) string {
	return fmt.Sprintf("Based on the following tax records:\n\n%s\n\nQuestion: %s", promptContext, question)
}
