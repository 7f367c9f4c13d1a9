// Package config provides configuration loading and structs for the taxlens server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hyperjump/taxlens/internal/analyzer"
)

// Config holds all configuration for the application.
type Config struct {
	Debug    bool           `yaml:"debug"`
	Server   ServerConfig   `yaml:"server"`
	Data     DataConfig     `yaml:"data"`
	LLM      LLMConfig      `yaml:"llm"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Watch    WatchConfig    `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
	// SessionIdleTimeout expires sessions that received no request for this long.
	SessionIdleTimeout time.Duration `yaml:"session_idle_timeout"`
	MaxSessions        int           `yaml:"max_sessions"`
}

// DataConfig describes the filings source.
type DataConfig struct {
	// Source is sqlite, postgres, csv, or xlsx; empty infers it from Path.
	Source string `yaml:"source"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
	Table  string `yaml:"table"`
	Sheet  string `yaml:"sheet"`
	// SkipIncompletePeriods drops rows without a tax_period_begin; defaults to true when unset.
	SkipIncompletePeriods *bool `yaml:"skip_incomplete_periods"`
}

// SkipIncompleteOrDefault returns whether to drop incomplete rows; defaults to true when unset.
func (d *DataConfig) SkipIncompleteOrDefault() bool {
	if d.SkipIncompletePeriods != nil {
		return *d.SkipIncompletePeriods
	}
	return true
}

// LLMConfig holds completion provider settings.
type LLMConfig struct {
	Provider string `yaml:"provider"`
	APIKey   string `yaml:"api_key"`
	// APIKeyEnv names the environment variable read when APIKey is empty.
	APIKeyEnv         string        `yaml:"api_key_env"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
}

// ResolveAPIKey returns the configured key or the value of the APIKeyEnv variable.
func (l *LLMConfig) ResolveAPIKey() string {
	if l.APIKey != "" {
		return l.APIKey
	}
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// AnalyzerConfig tunes the question pipeline.
type AnalyzerConfig struct {
	ComparisonKeywords   []string `yaml:"comparison_keywords"`
	PredictiveKeywords   []string `yaml:"predictive_keywords"`
	MonetaryFieldMarkers []string `yaml:"monetary_field_markers"`
	RelevantFields       []string `yaml:"relevant_fields"`
	SummaryMetrics       []string `yaml:"summary_metrics"`
	ConversationWindow   int      `yaml:"conversation_window"`
	MemoryCapacity       int      `yaml:"memory_capacity"`
	PlainLimit           int      `yaml:"plain_limit"`
	PredictiveLimit      int      `yaml:"predictive_limit"`
	// Strategy is "rule" or "tfidf".
	Strategy       string `yaml:"strategy"`
	TFIDFResults   int    `yaml:"tfidf_results"`
	TFIDFFuzziness int    `yaml:"tfidf_fuzziness"`
	// Role is "efficiency", "reliability", or "general".
	Role string `yaml:"role"`
}

// WatchConfig controls reloading the data file when it changes.
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

// Load reads a .env file if present, then parses the config file at path, expands paths,
// and applies defaults. Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	configDir := filepath.Dir(path)
	LoadEnv(configDir)

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	if cfg.Data.Path != "" {
		cfg.Data.Path = expandPath(cfg.Data.Path, configDir)
	}

	return &cfg, nil
}

// LoadEnv loads .env from dir and the working directory. Existing variables are not overridden.
// A missing file is not an error.
func LoadEnv(dir string) []string {
	var loaded []string
	seen := make(map[string]bool)
	for _, p := range []string{filepath.Join(dir, ".env"), ".env"} {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true
		if _, err := os.Stat(abs); err != nil {
			continue
		}
		if err := godotenv.Load(abs); err == nil {
			loaded = append(loaded, abs)
		}
	}
	return loaded
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Analyzer.Strategy) {
	case StrategyRule, StrategyTFIDF:
	default:
		return fmt.Errorf("analyzer.strategy must be %q or %q, got %q", StrategyRule, StrategyTFIDF, c.Analyzer.Strategy)
	}
	if !analyzer.ValidRole(c.Analyzer.Role) {
		return fmt.Errorf("analyzer.role must be %s, %s or %s, got %q",
			analyzer.RoleEfficiency, analyzer.RoleReliability, analyzer.RoleGeneral, c.Analyzer.Role)
	}
	switch strings.ToLower(c.LLM.Provider) {
	case "anthropic", "openai":
	default:
		return fmt.Errorf("llm.provider must be anthropic or openai, got %q", c.LLM.Provider)
	}
	switch strings.ToLower(c.Data.Source) {
	case "postgres":
		if c.Data.DSN == "" {
			return fmt.Errorf("data.dsn is required for a postgres source")
		}
	case "", "sqlite", "csv", "xlsx":
		if c.Data.Path == "" {
			return fmt.Errorf("data.path is required")
		}
	default:
		return fmt.Errorf("unsupported data.source %q", c.Data.Source)
	}
	if c.Server.MaxSessions < 0 {
		return fmt.Errorf("server.max_sessions must not be negative: %d", c.Server.MaxSessions)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
