package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix for all bridge environment variables.
const EnvPrefix = "COLLABBRIDGE_"

// envSetter applies one environment value to the config.
type envSetter func(c *Config, value string) error

// envMapping maps environment variable names to setters. Sensitive values
// (API keys) are environment-only on purpose.
var envMapping = map[string]envSetter{
	EnvPrefix + "MAX_CONCURRENT_SYNCS": func(c *Config, v string) error {
		return setInt(&c.Sync.MaxConcurrentSyncs, v)
	},
	EnvPrefix + "OPERATION_TIMEOUT": func(c *Config, v string) error {
		return setDuration(&c.Sync.OperationTimeout, v)
	},
	EnvPrefix + "WORKSPACE_ROOT": func(c *Config, v string) error {
		c.Sync.WorkspaceRoot = v
		return nil
	},
	EnvPrefix + "ENABLE_AI_RESOLUTION": func(c *Config, v string) error {
		return setBool(&c.Conflict.EnableAIResolution, v)
	},
	EnvPrefix + "MAX_RESOLUTION_ATTEMPTS": func(c *Config, v string) error {
		return setInt(&c.Conflict.MaxResolutionAttempts, v)
	},
	EnvPrefix + "BACKOFF_BASE": func(c *Config, v string) error {
		return setDuration(&c.Conflict.BackoffBase, v)
	},
	EnvPrefix + "BACKOFF_CAP": func(c *Config, v string) error {
		return setDuration(&c.Conflict.BackoffCap, v)
	},
	EnvPrefix + "AI_PROVIDER": func(c *Config, v string) error {
		c.AI.Provider = v
		return nil
	},
	EnvPrefix + "AI_MODEL": func(c *Config, v string) error {
		c.AI.Model = v
		return nil
	},
	EnvPrefix + "AI_MAX_TOKENS": func(c *Config, v string) error {
		return setInt(&c.AI.MaxTokens, v)
	},
	EnvPrefix + "AI_REQUESTS_PER_MINUTE": func(c *Config, v string) error {
		return setInt(&c.AI.RequestsPerMinute, v)
	},
	EnvPrefix + "OPENAI_KEY": func(c *Config, v string) error {
		c.AI.APIKey = v
		return nil
	},
	EnvPrefix + "TRANSLATION_TTL": func(c *Config, v string) error {
		return setDuration(&c.Cache.TranslationTTL, v)
	},
	EnvPrefix + "COMPLETION_TTL": func(c *Config, v string) error {
		return setDuration(&c.Cache.CompletionTTL, v)
	},
	EnvPrefix + "HOVER_TTL": func(c *Config, v string) error {
		return setDuration(&c.Cache.HoverTTL, v)
	},
	EnvPrefix + "LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = v
		return nil
	},
	EnvPrefix + "LOG_FORMAT": func(c *Config, v string) error {
		c.Logging.Format = v
		return nil
	},
	EnvPrefix + "METRICS_ADDR": func(c *Config, v string) error {
		c.Metrics.Addr = v
		return nil
	},
}

// ApplyEnv overrides config values from the environment. Empty string
// values are treated as set.
func (c *Config) ApplyEnv() error {
	return c.applyEnv(os.LookupEnv)
}

// applyEnv is the testable core of ApplyEnv.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	for name, set := range envMapping {
		val, ok := lookup(name)
		if !ok {
			continue
		}
		if err := set(c, val); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func setInt(dst *int, v string) error {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("expected integer, got %q", v)
	}
	*dst = n
	return nil
}

func setBool(dst *bool, v string) error {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("expected boolean, got %q", v)
	}
	*dst = b
	return nil
}

func setDuration(dst *time.Duration, v string) error {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("expected duration, got %q", v)
	}
	*dst = d
	return nil
}
