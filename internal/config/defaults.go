package config

import (
	"time"

	"github.com/hyperjump/taxlens/internal/analyzer"
)

// Selection strategies.
const (
	StrategyRule  = "rule"
	StrategyTFIDF = "tfidf"
)

// ApplyDefaults sets default values for any zero values in cfg.
// Keyword and field lists left empty fall back to the analyzer's built-in lists.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.SessionIdleTimeout == 0 {
		cfg.Server.SessionIdleTimeout = 2 * time.Hour
	}
	if cfg.Server.MaxSessions == 0 {
		cfg.Server.MaxSessions = 1000
	}
	if cfg.Data.Path == "" && cfg.Data.DSN == "" {
		cfg.Data.Path = "./tax_data.db"
	}
	if cfg.Data.Table == "" {
		cfg.Data.Table = "tax_form_basic_data"
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "anthropic"
	}
	if cfg.LLM.APIKeyEnv == "" {
		if cfg.LLM.Provider == "openai" {
			cfg.LLM.APIKeyEnv = "OPENAI_API_KEY"
		} else {
			cfg.LLM.APIKeyEnv = "ANTHROPIC_API_KEY"
		}
	}
	if cfg.LLM.Model == "" && cfg.LLM.Provider == "anthropic" {
		cfg.LLM.Model = "claude-3-sonnet-20240229"
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 1500
	}
	if cfg.LLM.Timeout == 0 {
		cfg.LLM.Timeout = 30 * time.Second
	}
	if cfg.LLM.MaxRetries == 0 {
		cfg.LLM.MaxRetries = 2
	}
	if cfg.Analyzer.ConversationWindow == 0 {
		cfg.Analyzer.ConversationWindow = 2
	}
	if cfg.Analyzer.MemoryCapacity == 0 {
		cfg.Analyzer.MemoryCapacity = 10
	}
	if cfg.Analyzer.PlainLimit == 0 {
		cfg.Analyzer.PlainLimit = 3
	}
	if cfg.Analyzer.PredictiveLimit == 0 {
		cfg.Analyzer.PredictiveLimit = 5
	}
	if cfg.Analyzer.Strategy == "" {
		cfg.Analyzer.Strategy = StrategyRule
	}
	if cfg.Analyzer.TFIDFResults == 0 {
		cfg.Analyzer.TFIDFResults = 3
	}
	if cfg.Analyzer.Role == "" {
		cfg.Analyzer.Role = analyzer.RoleEfficiency
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 2 * time.Second
	}
}
