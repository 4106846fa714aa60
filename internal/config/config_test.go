package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Dispatch.WorkerPoolSize != 8 {
		t.Fatalf("expected default worker pool size 8, got %d", cfg.Dispatch.WorkerPoolSize)
	}
	if cfg.Chain.ImmutableWindow != 43200 {
		t.Fatalf("expected default immutable window 43200, got %d", cfg.Chain.ImmutableWindow)
	}
}

func TestLoadLogLevelFromEnv(t *testing.T) {
	t.Setenv("HERMES_LOG_LEVEL", "trace")
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Logging.Level != "trace" {
		t.Fatalf("expected log level trace from env, got %q", cfg.Logging.Level)
	}
}

func TestEnvOrDefault(t *testing.T) {
	os.Unsetenv("HERMES_TEST_KEY")
	if got := envOrDefault("HERMES_TEST_KEY", "fallback"); got != "fallback" {
		t.Fatalf("expected fallback, got %q", got)
	}
	t.Setenv("HERMES_TEST_KEY", "set")
	if got := envOrDefault("HERMES_TEST_KEY", "fallback"); got != "set" {
		t.Fatalf("expected set, got %q", got)
	}
}
