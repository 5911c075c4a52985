// Package config defines the typed configuration for the bridge. Each
// functional area has its own section struct with documented fields and
// defaults; values can be overridden from the environment via ApplyEnv.
package config

import (
	"fmt"
	"time"
)

// Config is the full bridge configuration.
type Config struct {
	Sync     SyncConfig
	Conflict ConflictConfig
	AI       AIConfig
	Cache    CacheConfig
	Logging  LoggingConfig
	Metrics  MetricsConfig
}

// SyncConfig controls the synchronization orchestrator.
type SyncConfig struct {
	// MaxConcurrentSyncs bounds concurrent sync operations across all
	// documents.
	MaxConcurrentSyncs int

	// OperationTimeout is the deadline applied to a sync call when the
	// caller's context carries none.
	OperationTimeout time.Duration

	// WorkspaceRoot is the directory document URIs must resolve under.
	// Empty disables the containment check (URIs must still be file
	// scheme without traversal segments).
	WorkspaceRoot string
}

// ConflictConfig controls conflict detection and resolution.
type ConflictConfig struct {
	// EnableAIResolution turns on the AI-assisted resolution path when a
	// resolver is configured.
	EnableAIResolution bool

	// MaxResolutionAttempts is the number of automatic resolution
	// attempts before a document requires manual ForceSync.
	MaxResolutionAttempts int

	// BackoffBase is the delay before the second automatic attempt;
	// later attempts double it.
	BackoffBase time.Duration

	// BackoffCap bounds the exponential backoff delay.
	BackoffCap time.Duration
}

// AIConfig configures the AI conflict resolver.
type AIConfig struct {
	// Provider selects the resolver implementation ("openai").
	Provider string

	// Model is the model identifier passed to the provider.
	Model string

	// MaxTokens bounds the completion size.
	MaxTokens int

	// Temperature controls sampling randomness.
	Temperature float32

	// APIKey authenticates with the provider. Set it from the
	// environment; it is never written to config files.
	APIKey string

	// RequestsPerMinute rate-limits resolver calls.
	RequestsPerMinute int
}

// CacheConfig sets cache lifetimes.
type CacheConfig struct {
	// TranslationTTL bounds how long CRDT-to-LSP translation results are
	// reused.
	TranslationTTL time.Duration

	// CompletionTTL bounds completion cache entries.
	CompletionTTL time.Duration

	// HoverTTL bounds hover cache entries.
	HoverTTL time.Duration
}

// LoggingConfig controls the zap logger built by the daemon.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string

	// Format is "json" or "console".
	Format string
}

// MetricsConfig controls the metrics/health HTTP listener.
type MetricsConfig struct {
	// Addr is the listen address for /metrics and /healthz.
	Addr string
}

// Default returns the configuration defaults.
func Default() Config {
	return Config{
		Sync: SyncConfig{
			MaxConcurrentSyncs: 10,
			OperationTimeout:   10 * time.Second,
		},
		Conflict: ConflictConfig{
			EnableAIResolution:    false,
			MaxResolutionAttempts: 5,
			BackoffBase:           500 * time.Millisecond,
			BackoffCap:            30 * time.Second,
		},
		AI: AIConfig{
			Provider:          "openai",
			Model:             "gpt-4o-mini",
			MaxTokens:         4096,
			Temperature:       0.2,
			RequestsPerMinute: 30,
		},
		Cache: CacheConfig{
			TranslationTTL: 30 * time.Second,
			CompletionTTL:  5 * time.Second,
			HoverTTL:       10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Metrics: MetricsConfig{
			Addr: ":9090",
		},
	}
}

// Validate checks the configuration for values the bridge cannot run with.
func (c Config) Validate() error {
	if c.Sync.MaxConcurrentSyncs < 1 {
		return fmt.Errorf("sync.maxConcurrentSyncs must be >= 1, got %d", c.Sync.MaxConcurrentSyncs)
	}
	if c.Sync.OperationTimeout <= 0 {
		return fmt.Errorf("sync.operationTimeout must be positive, got %s", c.Sync.OperationTimeout)
	}
	if c.Conflict.MaxResolutionAttempts < 1 {
		return fmt.Errorf("conflict.maxResolutionAttempts must be >= 1, got %d", c.Conflict.MaxResolutionAttempts)
	}
	if c.Conflict.BackoffBase <= 0 || c.Conflict.BackoffCap < c.Conflict.BackoffBase {
		return fmt.Errorf("conflict backoff misconfigured: base %s cap %s", c.Conflict.BackoffBase, c.Conflict.BackoffCap)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
