package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/analyzer"
	"github.com/hyperjump/taxlens/internal/config"
	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/llm"
	"github.com/hyperjump/taxlens/internal/prompt"
	"github.com/hyperjump/taxlens/internal/query"
	"github.com/hyperjump/taxlens/internal/selector"
	"github.com/hyperjump/taxlens/internal/session"
	"github.com/hyperjump/taxlens/internal/storage"
)

// Components is the wired question pipeline.
type Components struct {
	Store    *dataset.Store
	Sessions *session.Manager
	Analyzer *analyzer.Analyzer
	tfidf    *selector.TFIDFSelector
}

// Close releases the data source and the relevance index.
func (c *Components) Close() {
	if c.tfidf != nil {
		_ = c.tfidf.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	return initializeComponentsWithClient(ctx, cfg, logger, nil)
}

// initializeComponentsWithClient wires the pipeline; a nil client is built from cfg.LLM.
func initializeComponentsWithClient(ctx context.Context, cfg *config.Config, logger *zap.Logger, client llm.Client) (*Components, error) {
	src, err := storage.Open(storage.Options{
		Kind:  cfg.Data.Source,
		Path:  cfg.Data.Path,
		DSN:   cfg.Data.DSN,
		Table: cfg.Data.Table,
		Sheet: cfg.Data.Sheet,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open data source: %w", err)
	}
	store := dataset.NewStore(src,
		dataset.WithLogger(logger),
		dataset.WithSkipIncompletePeriods(cfg.Data.SkipIncompleteOrDefault()))
	if err := store.Load(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to load dataset: %w", err)
	}

	c := &Components{Store: store}

	rules := selector.NewRuleSelector(cfg.Analyzer.PlainLimit, cfg.Analyzer.PredictiveLimit)
	var sel selector.Selector = rules
	if strings.EqualFold(cfg.Analyzer.Strategy, config.StrategyTFIDF) {
		tfidf := selector.NewTFIDFSelector(rules, cfg.Analyzer.TFIDFResults,
			selector.WithLogger(logger),
			selector.WithFuzziness(cfg.Analyzer.TFIDFFuzziness))
		if err := tfidf.Rebuild(ctx, store.Table()); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to build relevance index: %w", err)
		}
		store.OnReload(tfidf.Rebuild)
		c.tfidf = tfidf
		sel = tfidf
	}

	if client == nil {
		client, err = llm.New(llm.Options{
			Provider:          cfg.LLM.Provider,
			APIKey:            cfg.LLM.ResolveAPIKey(),
			BaseURL:           cfg.LLM.BaseURL,
			Model:             cfg.LLM.Model,
			MaxRetries:        cfg.LLM.MaxRetries,
			RequestsPerMinute: cfg.LLM.RequestsPerMinute,
			Logger:            logger,
		})
		if err != nil {
			c.Close()
			if errors.Is(err, llm.ErrEmptyAPIKey) {
				return nil, fmt.Errorf("%w: set llm.api_key or the %s environment variable", err, cfg.LLM.APIKeyEnv)
			}
			return nil, fmt.Errorf("failed to initialize llm client: %w", err)
		}
	}

	formatter := prompt.NewFormatter(prompt.Options{
		MonetaryMarkers:    cfg.Analyzer.MonetaryFieldMarkers,
		SummaryMetrics:     cfg.Analyzer.SummaryMetrics,
		RelevantFields:     cfg.Analyzer.RelevantFields,
		ConversationWindow: cfg.Analyzer.ConversationWindow,
	})
	classifier := query.NewClassifier(cfg.Analyzer.ComparisonKeywords, cfg.Analyzer.PredictiveKeywords)

	c.Analyzer = analyzer.New(store, classifier, sel, formatter, client, analyzer.Config{
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		Role:        cfg.Analyzer.Role,
	}, analyzer.WithLogger(logger))
	c.Sessions = session.NewManager(cfg.Analyzer.MemoryCapacity, logger,
		session.WithIdleTimeout(cfg.Server.SessionIdleTimeout),
		session.WithMaxSessions(cfg.Server.MaxSessions))

	kind := cfg.Data.Source
	if kind == "" {
		kind = storage.KindFromPath(cfg.Data.Path)
	}
	logger.Info("pipeline initialized",
		zap.String("source", kind),
		zap.Int("records", store.Table().Len()),
		zap.String("strategy", cfg.Analyzer.Strategy),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("role", cfg.Analyzer.Role))
	return c, nil
}
