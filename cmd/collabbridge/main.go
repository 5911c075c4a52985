// Package main is the entry point for the collabbridge daemon.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/dshills/collabbridge/internal/ai"
	"github.com/dshills/collabbridge/internal/bridge"
	"github.com/dshills/collabbridge/internal/collab"
	"github.com/dshills/collabbridge/internal/config"
	"github.com/dshills/collabbridge/internal/lsp"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := config.Default()
	if err := cfg.ApplyEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	parseFlags(&cfg)

	log, err := buildLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	bridge.SetLogger(log.Named("bridge"))

	service := collab.NewMemoryService()
	router := lsp.NewLogRouter(log.Named("lsp"))

	var opts []bridge.Option
	if cfg.Conflict.EnableAIResolution {
		if cfg.AI.APIKey == "" {
			fmt.Fprintln(os.Stderr, "Error: AI resolution enabled but COLLABBRIDGE_OPENAI_KEY is not set")
			return 1
		}
		resolver, err := ai.NewOpenAIResolver(cfg.AI.APIKey,
			ai.WithModel(cfg.AI.Model),
			ai.WithMaxTokens(cfg.AI.MaxTokens),
			ai.WithTemperature(cfg.AI.Temperature),
			ai.WithRequestsPerMinute(cfg.AI.RequestsPerMinute),
			ai.WithLogger(log.Named("ai")))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to create resolver: %v\n", err)
			return 1
		}
		opts = append(opts, bridge.WithResolver(resolver))
	}

	b, err := bridge.New(cfg, service, router, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}
	defer b.Close()

	srv := &http.Server{
		Addr:              cfg.Metrics.Addr,
		Handler:           newHandler(b),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	log.Info("collabbridge started",
		zap.String("addr", cfg.Metrics.Addr),
		zap.String("version", version),
		zap.Int("max_concurrent_syncs", cfg.Sync.MaxConcurrentSyncs),
		zap.Bool("ai_resolution", cfg.Conflict.EnableAIResolution))

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-signals:
		log.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			return 1
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Warn("http shutdown incomplete", zap.Error(err))
	}
	return 0
}

// newHandler serves the metrics and health endpoints.
func newHandler(b *bridge.Bridge) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(b.MetricsRegistry().Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		h := b.Health()
		status := http.StatusOK
		if h.Overall == bridge.StatusDegraded {
			status = http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(struct {
			Status            string    `json:"status"`
			DocumentsSynced   uint64    `json:"documentsSynced"`
			ConflictsResolved uint64    `json:"conflictsResolved"`
			SyncFailures      uint64    `json:"syncFailures"`
			AverageSyncMillis float64   `json:"averageSyncMillis"`
			LastCheck         time.Time `json:"lastCheck"`
		}{
			Status:            h.Overall.String(),
			DocumentsSynced:   h.DocumentsSynced,
			ConflictsResolved: h.ConflictsResolved,
			SyncFailures:      h.SyncFailures,
			AverageSyncMillis: h.AverageSyncMillis,
			LastCheck:         h.LastCheck,
		})
	})
	return mux
}

// buildLogger constructs the zap logger from the logging config.
func buildLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q", cfg.Level)
	}

	var zc zap.Config
	if cfg.Format == "json" {
		zc = zap.NewProductionConfig()
	} else {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	return zc.Build()
}

func parseFlags(cfg *config.Config) {
	var showVersion bool
	var showHelp bool

	flag.StringVar(&cfg.Metrics.Addr, "addr", cfg.Metrics.Addr, "Listen address for /metrics and /healthz")
	flag.StringVar(&cfg.Metrics.Addr, "a", cfg.Metrics.Addr, "Listen address (shorthand)")
	flag.StringVar(&cfg.Sync.WorkspaceRoot, "workspace", cfg.Sync.WorkspaceRoot, "Workspace root document URIs must resolve under")
	flag.StringVar(&cfg.Sync.WorkspaceRoot, "w", cfg.Sync.WorkspaceRoot, "Workspace root (shorthand)")
	flag.IntVar(&cfg.Sync.MaxConcurrentSyncs, "max-syncs", cfg.Sync.MaxConcurrentSyncs, "Maximum concurrent sync operations")
	flag.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	flag.StringVar(&cfg.Logging.Format, "log-format", cfg.Logging.Format, "Log format (json, console)")
	flag.BoolVar(&cfg.Conflict.EnableAIResolution, "ai", cfg.Conflict.EnableAIResolution, "Enable AI-assisted conflict resolution")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Collabbridge - collaborative editing to LSP synchronization bridge\n\n")
		fmt.Fprintf(os.Stderr, "Usage: collabbridge [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  Every option can be set via COLLABBRIDGE_* variables;\n")
		fmt.Fprintf(os.Stderr, "  the OpenAI key is read only from COLLABBRIDGE_OPENAI_KEY.\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("collabbridge %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}
}
