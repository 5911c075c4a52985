package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	c := Default()
	if c.Sync.MaxConcurrentSyncs != 10 {
		t.Errorf("Expected 10 concurrent syncs, got %d", c.Sync.MaxConcurrentSyncs)
	}
	if c.Conflict.MaxResolutionAttempts != 5 {
		t.Errorf("Expected 5 resolution attempts, got %d", c.Conflict.MaxResolutionAttempts)
	}
	if c.Cache.TranslationTTL != 30*time.Second {
		t.Errorf("Expected 30s translation TTL, got %s", c.Cache.TranslationTTL)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("Default config must validate, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errSub string
	}{
		{"zero syncs", func(c *Config) { c.Sync.MaxConcurrentSyncs = 0 }, "maxConcurrentSyncs"},
		{"zero timeout", func(c *Config) { c.Sync.OperationTimeout = 0 }, "operationTimeout"},
		{"zero attempts", func(c *Config) { c.Conflict.MaxResolutionAttempts = 0 }, "maxResolutionAttempts"},
		{"cap below base", func(c *Config) { c.Conflict.BackoffCap = time.Millisecond }, "backoff"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"bad format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil {
				t.Fatal("Expected validation error")
			}
			if !strings.Contains(err.Error(), tt.errSub) {
				t.Errorf("Expected error mentioning %q, got %v", tt.errSub, err)
			}
		})
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"COLLABBRIDGE_MAX_CONCURRENT_SYNCS": "4",
		"COLLABBRIDGE_OPERATION_TIMEOUT":    "5s",
		"COLLABBRIDGE_ENABLE_AI_RESOLUTION": "true",
		"COLLABBRIDGE_OPENAI_KEY":           "sk-test",
		"COLLABBRIDGE_LOG_LEVEL":            "debug",
	}

	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if c.Sync.MaxConcurrentSyncs != 4 {
		t.Errorf("Expected 4, got %d", c.Sync.MaxConcurrentSyncs)
	}
	if c.Sync.OperationTimeout != 5*time.Second {
		t.Errorf("Expected 5s, got %s", c.Sync.OperationTimeout)
	}
	if !c.Conflict.EnableAIResolution {
		t.Error("Expected AI resolution enabled")
	}
	if c.AI.APIKey != "sk-test" {
		t.Errorf("Expected API key override, got %q", c.AI.APIKey)
	}
	if c.Logging.Level != "debug" {
		t.Errorf("Expected debug, got %q", c.Logging.Level)
	}
	// Untouched values keep their defaults.
	if c.Metrics.Addr != ":9090" {
		t.Errorf("Expected default metrics addr, got %q", c.Metrics.Addr)
	}
}

func TestApplyEnvInvalidValue(t *testing.T) {
	c := Default()
	err := c.applyEnv(func(k string) (string, bool) {
		if k == "COLLABBRIDGE_MAX_CONCURRENT_SYNCS" {
			return "many", true
		}
		return "", false
	})
	if err == nil {
		t.Fatal("Expected error for non-integer value")
	}
	if !strings.Contains(err.Error(), "COLLABBRIDGE_MAX_CONCURRENT_SYNCS") {
		t.Errorf("Expected error naming the variable, got %v", err)
	}
}
