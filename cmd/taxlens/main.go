// Package main is the taxlens CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/hyperjump/taxlens/internal/cli"
	"github.com/hyperjump/taxlens/internal/config"
	"github.com/hyperjump/taxlens/internal/dataset"
	"github.com/hyperjump/taxlens/internal/models"
	"github.com/hyperjump/taxlens/internal/server"
	"github.com/hyperjump/taxlens/internal/storage"
	"github.com/hyperjump/taxlens/internal/watcher"
	"github.com/hyperjump/taxlens/pkg/utils"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/taxlens/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads and validates config from path. When path is the default, config.yaml in the
// current directory wins if it exists. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				path = fallback
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "history":
		runHistory()
	case "status":
		runStatus()
	case "init":
		runInit()
	case "version", "--version", "-v":
		fmt.Printf("taxlens version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	if cfg.Watch.Enabled && watchable(cfg) {
		store := components.Store
		watchOpts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Watch.Debounce)}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		watchSvc := watcher.NewWatcher([]string{cfg.Data.Path}, func(path string) {
			reloadCtx, reloadCancel := context.WithTimeout(ctx, time.Minute)
			defer reloadCancel()
			if err := store.Reload(reloadCtx); err != nil {
				logger.Warn("dataset reload failed", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(ctx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(
		components.Analyzer,
		components.Sessions,
		components.Store,
		&cfg.Server,
		logger,
		server.WithDataPath(cfg.Data.Path),
		server.WithVersion(version),
	)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
}

// watchable reports whether the configured source is a local file.
func watchable(cfg *config.Config) bool {
	if cfg.Data.Path == "" {
		return false
	}
	return !strings.EqualFold(cfg.Data.Source, storage.KindPostgres)
}

// buildQuestion joins all positional args with spaces so questions work with or without shell quoting.
func buildQuestion(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// argsReorder moves any flags (and their values) that appear after the question
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func argsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = answer directly without a server)")
	sessionID := fs.String("session", "", "existing session ID to continue (server mode)")
	ein := fs.String("ein", "", "focus the question on one organization's EIN")
	outputFormat := fs.String("output", "text", "output format: text or json")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: taxlens ask [flags] <question>\n\n")
		fs.PrintDefaults()
	}
	_ = fs.Parse(argsReorder(os.Args[2:]))

	question := buildQuestion(fs.Args())
	q := models.Question{Text: question}
	if err := q.Validate(); err != nil {
		fs.Usage()
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var answer *models.Answer
	if *serverURL != "" {
		answer, err = askViaHTTP(newAPIClient(*serverURL), *sessionID, *ein, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
		if *sessionID == "" && format == cli.OutputText {
			fmt.Fprintf(os.Stderr, "session: %s\n", answer.SessionID)
		}
	} else {
		answer, err = askDirect(*configPath, *ein, question)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Ask failed: %v\n", err)
			os.Exit(1)
		}
	}
	if err := cli.WriteAnswer(os.Stdout, answer, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func askViaHTTP(c *apiClient, sessionID, ein, question string) (*models.Answer, error) {
	if sessionID == "" {
		info, err := c.createSession()
		if err != nil {
			return nil, err
		}
		sessionID = info.ID
	}
	if ein != "" {
		if _, err := c.setFocus(sessionID, ein); err != nil {
			return nil, err
		}
	}
	answer, err := c.ask(sessionID, question)
	if err != nil {
		return nil, err
	}
	answer.SessionID = sessionID
	return answer, nil
}

func askDirect(configPath, ein, question string) (*models.Answer, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	ctx := context.Background()
	components, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	sess := components.Sessions.Create()
	if ein != "" {
		org, ok := components.Store.Organization(ein)
		if !ok {
			return nil, fmt.Errorf("organization with EIN %s not found", ein)
		}
		sess.SetFocus(org.EIN, org.BusinessName)
	}
	return components.Analyzer.Analyze(ctx, sess, question), nil
}

func runHistory() {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	sessionID := fs.String("session", "", "session ID (required)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	if *sessionID == "" {
		fmt.Fprintln(os.Stderr, "Usage: taxlens history --session <id>")
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	hist, err := newAPIClient(*serverURL).history(*sessionID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "History failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteHistory(os.Stdout, hist.History, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path (direct mode)")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the data source directly)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	var st *server.StatusResponse
	if *serverURL != "" {
		st, err = newAPIClient(*serverURL).status()
	} else {
		st, err = statusDirect(*configPath)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusDirect(configPath string) (*server.StatusResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	src, err := storage.Open(storage.Options{
		Kind:  cfg.Data.Source,
		Path:  cfg.Data.Path,
		DSN:   cfg.Data.DSN,
		Table: cfg.Data.Table,
		Sheet: cfg.Data.Sheet,
	})
	if err != nil {
		return nil, err
	}
	store := dataset.NewStore(src, dataset.WithSkipIncompletePeriods(cfg.Data.SkipIncompleteOrDefault()))
	defer store.Close()
	if err := store.Load(context.Background()); err != nil {
		return nil, err
	}
	st := &server.StatusResponse{Version: version, Dataset: store.Overview()}
	if fst, err := storage.StatFile(cfg.Data.Path); err == nil && fst != nil {
		st.DataFile = &server.DataFileInfo{
			Path:      fst.Path,
			SizeBytes: fst.Size,
			Size:      humanize.Bytes(uint64(fst.Size)),
			Modified:  fst.Modified,
		}
	}
	return st, nil
}

func runInit() {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "config file to write")
	dataPath := fs.String("data", "", "filings source path (default: ./tax_data.db)")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(os.Args[2:])

	if err := writeStarterConfig(*configPath, *dataPath, *force); err != nil {
		fmt.Printf("Failed to write config: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeStarterConfig saves a config with every default filled in.
func writeStarterConfig(path, dataPath string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &config.Config{}
	cfg.Data.Path = dataPath
	config.ApplyDefaults(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return config.Save(path, cfg)
}

func printUsage() {
	fmt.Println(`taxlens - Conversational analysis of Form 990 filings

Usage:
  taxlens server [flags]             Start the HTTP server
  taxlens ask [flags] <question>     Ask a question about the filings
  taxlens history --session <id>     Show a session's conversation, newest first
  taxlens status [flags]             Show dataset and server status
  taxlens init [flags]               Write a starter config file
  taxlens version                    Show version
  taxlens help                       Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/taxlens/config.yaml)
  --debug            Enable debug logging

Ask Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to answer without a server.
  --session string   Continue an existing session (server mode)
  --ein string       Focus on one organization by EIN
  --output string    Output format: text or json (default: text)

History Flags:
  --server string    Server URL (default: http://localhost:8080)
  --session string   Session ID
  --output string    Output format: text or json (default: text)

Status Flags:
  --config string    Config file path (direct mode)
  --server string    Server URL (default: http://localhost:8080). Use --server "" to read the data source directly.
  --output string    Output format: text or json (default: text)

Init Flags:
  --config string    Config file to write (default: config.yaml)
  --data string      Filings source path (default: ./tax_data.db)
  --force            Overwrite an existing config file

Examples:
  taxlens init --data ./filings.xlsx
  taxlens server
  taxlens ask "How does Harbor Food Bank compare to its peers?"
  taxlens ask --ein 12-3456789 "What will revenue look like next year?"
  taxlens ask --session 6f1c... "And the year before?"
  taxlens ask --output json "Which organizations spend most on fundraising?"
  taxlens history --session 6f1c...
  taxlens status --output json`)
}
