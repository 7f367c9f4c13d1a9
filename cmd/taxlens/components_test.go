package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/config"
	"github.com/hyperjump/taxlens/internal/llm"
)

const filingsCSV = `EIN,Business Name,Tax Period Begin,Tax Period End,Total Revenue,Total Expenses
12-3456789,Harbor Food Bank,2021-01-01,2021-12-31,"$1,200,000",900000
12-3456789,Harbor Food Bank,2022-01-01,2022-12-31,"$1,500,000",1100000
98-7654321,Arts Council,2022-01-01,2022-12-31,"$800,000",750000
55-5555555,Draft Filing,,2022-12-31,100,100
`

type cannedClient struct {
	requests []llm.Request
}

func (c *cannedClient) Complete(ctx context.Context, req llm.Request) (*llm.Response, error) {
	c.requests = append(c.requests, req)
	return &llm.Response{Content: []llm.ContentBlock{{Type: "text", Text: "Revenue rose to $,1.5M ."}}}, nil
}

func testConfig(t *testing.T, strategy string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "filings.csv")
	if err := os.WriteFile(path, []byte(filingsCSV), 0600); err != nil {
		t.Fatal(err)
	}
	cfg := &config.Config{
		Data:     config.DataConfig{Path: path},
		LLM:      config.LLMConfig{APIKey: "test-key"},
		Analyzer: config.AnalyzerConfig{Strategy: strategy},
	}
	config.ApplyDefaults(cfg)
	return cfg
}

func TestInitializeComponents_ruleStrategy(t *testing.T) {
	cfg := testConfig(t, config.StrategyRule)
	client := &cannedClient{}
	c, err := initializeComponentsWithClient(context.Background(), cfg, zap.NewNop(), client)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	if got := c.Store.Table().Len(); got != 3 {
		t.Fatalf("records loaded = %d, want 3 (incomplete period dropped)", got)
	}

	sess := c.Sessions.Create()
	answer := c.Analyzer.Analyze(context.Background(), sess, "What is the revenue of EIN 12-3456789?")
	if answer.Failed {
		t.Fatalf("answer failed: %s", answer.Text)
	}
	if answer.Text != "Revenue rose to $1.5M." {
		t.Errorf("normalized answer = %q", answer.Text)
	}
	if len(client.requests) != 1 {
		t.Fatalf("completion calls = %d", len(client.requests))
	}
	msg := client.requests[0].Messages[0].Content
	if !strings.Contains(msg, "Harbor Food Bank") || strings.Contains(msg, "Arts Council") {
		t.Errorf("EIN rule should restrict context to Harbor Food Bank:\n%s", msg)
	}
	if sess.Memory.Len() != 1 {
		t.Errorf("memory length = %d, want 1", sess.Memory.Len())
	}
}

func TestInitializeComponents_tfidfRebuildsOnReload(t *testing.T) {
	cfg := testConfig(t, config.StrategyTFIDF)
	c, err := initializeComponentsWithClient(context.Background(), cfg, zap.NewNop(), &cannedClient{})
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if c.tfidf == nil {
		t.Fatal("tfidf selector should be wired")
	}

	extra := filingsCSV + "77-7777777,Riverside Clinic,2022-01-01,2022-12-31,400000,390000\n"
	if err := os.WriteFile(cfg.Data.Path, []byte(extra), 0600); err != nil {
		t.Fatal(err)
	}
	if err := c.Store.Reload(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := c.Store.Table().Len(); got != 4 {
		t.Errorf("records after reload = %d, want 4", got)
	}
}

func TestInitializeComponents_missingAPIKey(t *testing.T) {
	cfg := testConfig(t, config.StrategyRule)
	cfg.LLM.APIKey = ""
	cfg.LLM.APIKeyEnv = "TAXLENS_TEST_UNSET_KEY"
	_, err := initializeComponents(context.Background(), cfg, zap.NewNop())
	if err == nil || !strings.Contains(err.Error(), "TAXLENS_TEST_UNSET_KEY") {
		t.Errorf("expected api key error naming the env var, got %v", err)
	}
}
