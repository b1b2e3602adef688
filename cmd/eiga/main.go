// Package main is the Eiga CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/eiga/internal/cli"
	"github.com/hyperjump/eiga/internal/config"
	"github.com/hyperjump/eiga/internal/models"
	"github.com/hyperjump/eiga/internal/server"
	"github.com/hyperjump/eiga/internal/watcher"
	"github.com/hyperjump/eiga/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const (
	defaultConfigPath = "/usr/local/etc/eiga/config.yaml"
	defaultServerURL  = "http://localhost:8080"
)

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
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
	case "serve", "server":
		runServe()
	case "build":
		runBuild()
	case "recommend":
		runRecommend()
	case "titles":
		runTitles()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("eiga version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// setup loads config and creates the logger shared by build and serve.
func setup(configPath string, debugFlag bool) (*config.Config, *zap.Logger, bool) {
	cfg, resolvedConfigPath, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || debugFlag
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)
	return cfg, logger, debugMode
}

// feedPathFor returns the --feed override when set, else the configured catalog path.
func feedPathFor(flagValue string, cfg *config.Config) string {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue
	}
	return cfg.Catalog.Path
}

func runServe() {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	feed := fs.String("feed", "", "catalog feed (.xlsx or .csv); overrides catalog.path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	feedPath := feedPathFor(*feed, cfg)
	if err := components.loadIndex(context.Background(), feedPath, logger); err != nil {
		logger.Fatal("Failed to load index", zap.Error(err))
	}

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	var watchSvc *watcher.Watcher
	if feedPath != "" && cfg.Watch.EnabledOrDefault() {
		watchOpts := []watcher.WatcherOption{watcher.WithDebounce(cfg.Watch.Debounce())}
		if debugMode {
			watchOpts = append(watchOpts, watcher.WithLogger(logger))
		}
		idx := components.Indexer
		watchSvc = watcher.NewWatcher(feedPath, func(path string) {
			if _, err := idx.Rebuild(watchCtx, path, false); err != nil {
				logger.Warn("feed rebuild failed, keeping current index", zap.String("path", path), zap.Error(err))
			}
		}, watchOpts...)
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
	}

	srv := server.NewServer(components.Engine, components.Indexer, feedPath, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	if watchSvc != nil {
		watchSvc.Stop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runBuild() {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	feed := fs.String("feed", "", "catalog feed (.xlsx or .csv); overrides catalog.path")
	force := fs.Bool("force", false, "rebuild even when the feed is unchanged")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, logger, debugMode := setup(*configPath, *debug)
	defer logger.Sync()

	feedPath := feedPathFor(*feed, cfg)
	if feedPath == "" {
		fmt.Fprintln(os.Stderr, "No catalog feed: pass --feed or set catalog.path in the config")
		os.Exit(1)
	}

	components, err := initializeComponents(cfg, logger, debugMode)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	ctx := context.Background()
	// Restoring first lets an unchanged feed skip the rebuild.
	if _, err := components.Indexer.Restore(ctx); err != nil {
		logger.Debug("no usable stored index", zap.Error(err))
	}
	res, err := components.Indexer.Rebuild(ctx, feedPath, *force)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Build failed: %v\n", err)
		os.Exit(1)
	}
	if res.Skipped {
		fmt.Printf("Feed unchanged, index %s is current (%d movies)\n", res.BuildID, res.Movies)
		return
	}
	fmt.Printf("Built index %s: %d movies, %d terms in %s\n",
		res.BuildID, res.Movies, res.VocabularySize, res.Duration.Round(time.Millisecond))
}

// printRecommendUsage prints recommend subcommand usage.
func printRecommendUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: eiga recommend [flags] <title>\n\n")
	fmt.Fprintf(fs.Output(), "Title is all remaining arguments joined by spaces and must match a catalog title exactly.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
Examples:
  eiga recommend The Dark Knight
  eiga recommend "The Dark Knight" --k 10
  eiga recommend --server "" --output json Inception   # read the stored index directly
`)
}

// buildTitle joins all positional args with spaces so multi-word titles
// work the same with or without shell quoting.
func buildTitle(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// configPathFromArgs returns the value of -config/--config from args if present, else defaultPath.
func configPathFromArgs(args []string, defaultPath string) string {
	for i, a := range args {
		if (a == "-config" || a == "--config") && i+1 < len(args) {
			return args[i+1]
		}
		if v, ok := strings.CutPrefix(a, "--config="); ok {
			return v
		}
		if v, ok := strings.CutPrefix(a, "-config="); ok {
			return v
		}
	}
	return defaultPath
}

// defaultKFromConfig loads config at path and returns recommend.default_k,
// or models.DefaultK when the config cannot be loaded.
func defaultKFromConfig(path string) int {
	cfg, _, err := loadConfig(path)
	if err != nil || cfg == nil || cfg.Recommend.DefaultK <= 0 {
		return models.DefaultK
	}
	return cfg.Recommend.DefaultK
}

// argsReorder moves any flags (and their values) that appear after the title
// to the front of the slice so that flag.Parse() sees them. The flag package
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

func runRecommend() {
	args := argsReorder(os.Args[2:])
	configPath := configPathFromArgs(args, defaultConfigPath)

	fs := flag.NewFlagSet("recommend", flag.ExitOnError)
	configPathFlag := fs.String("config", defaultConfigPath, "config file path")
	serverURL := fs.String("server", defaultServerURL, "server URL (empty = read the stored index directly)")
	k := fs.Int("k", defaultKFromConfig(configPath), "number of recommendations")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printRecommendUsage(fs) }
	_ = fs.Parse(args)

	title := buildTitle(fs.Args())
	if title == "" {
		printRecommendUsage(fs)
		os.Exit(1)
	}
	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	req := &models.RecommendRequest{Title: title, K: *k}
	var resp *models.RecommendResponse
	if *serverURL != "" {
		resp, err = recommendViaHTTP(*serverURL, req)
	} else {
		resp, err = recommendDirect(*configPathFlag, req)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Recommend failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRecommendations(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// recommendDirect answers from the newest stored artifact without a running server.
func recommendDirect(configPath string, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer logger.Sync()

	components, err := initializeComponents(cfg, logger, cfg.Debug)
	if err != nil {
		return nil, err
	}
	defer components.Close()

	ctx := context.Background()
	if _, err := components.Indexer.Restore(ctx); err != nil {
		return nil, fmt.Errorf("load index (run eiga build first): %w", err)
	}
	resp, err := components.Engine.Recommend(ctx, req)
	if err != nil {
		var unknown *models.UnknownTitleError
		if errors.As(err, &unknown) && len(unknown.Suggestions) > 0 {
			return nil, fmt.Errorf("%w (did you mean: %s?)", err, strings.Join(unknown.Suggestions, ", "))
		}
		return nil, err
	}
	return resp, nil
}

// apiError decodes the server's error body, falling back to the raw text.
func apiError(resp *http.Response) error {
	b, _ := io.ReadAll(resp.Body)
	var body struct {
		Error       string   `json:"error"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal(b, &body); err != nil || body.Error == "" {
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if len(body.Suggestions) > 0 {
		return fmt.Errorf("server returned %d: %s (did you mean: %s?)",
			resp.StatusCode, body.Error, strings.Join(body.Suggestions, ", "))
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, body.Error)
}

func recommendViaHTTP(serverURL string, req *models.RecommendRequest) (*models.RecommendResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(strings.TrimRight(serverURL, "/")+"/api/v1/recommend", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out models.RecommendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runTitles() {
	fs := flag.NewFlagSet("titles", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	query := fs.String("query", "", "case-insensitive substring to filter titles")
	limit := fs.Int("limit", 20, "maximum number of titles (0 = all)")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	_ = fs.Parse(argsReorder(os.Args[2:]))

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	q := *query
	if q == "" {
		q = buildTitle(fs.Args())
	}
	resp, err := titlesViaHTTP(*serverURL, q, *limit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Titles failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteTitles(os.Stdout, resp, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func titlesViaHTTP(serverURL, query string, limit int) (*models.TitlesResponse, error) {
	params := url.Values{}
	if query != "" {
		params.Set("q", query)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	u := strings.TrimRight(serverURL, "/") + "/api/v1/titles"
	if enc := params.Encode(); enc != "" {
		u += "?" + enc
	}
	resp, err := http.Get(u)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var out models.TitlesResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", defaultServerURL, "server URL")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(os.Args[2:])

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	st, err := statusViaHTTP(*serverURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func statusViaHTTP(serverURL string) (*models.IndexStatus, error) {
	resp, err := http.Get(strings.TrimRight(serverURL, "/") + "/api/v1/status")
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, apiError(resp)
	}
	var st models.IndexStatus
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &st, nil
}

func printUsage() {
	fmt.Println(`Eiga - content-based movie recommendations

Usage:
  eiga <command> [flags]

Commands:
  serve       Start the HTTP server (restores or builds the index, watches the feed)
  build       Build the index from the catalog feed and store it
  recommend   Recommend movies similar to a title
  titles      List catalog titles
  status      Show index status
  version     Show version
  help        Show this help

Examples:
  eiga build --feed movies.xlsx
  eiga serve
  eiga recommend The Dark Knight --k 10
  eiga titles --query knight
  eiga status`)
}
