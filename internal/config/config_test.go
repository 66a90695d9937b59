package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `uptrace-dsn="https://token@api.uptrace.dev?grpc=4317"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected UptraceDSN: %q", cfg.UptraceDSN)
	}
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ViewerTimezone != "Local" {
		t.Fatalf("unexpected ViewerTimezone: %q", cfg.ViewerTimezone)
	}
	if cfg.LivePollInterval != 15*time.Second || cfg.LiveMinPollGap != 5*time.Second {
		t.Fatalf("unexpected poll cadence: interval=%s gap=%s", cfg.LivePollInterval, cfg.LiveMinPollGap)
	}
	if cfg.LivePollTimeout != 10*time.Second || cfg.LiveProbeTimeout != 5*time.Second {
		t.Fatalf("unexpected live timeouts: poll=%s probe=%s", cfg.LivePollTimeout, cfg.LiveProbeTimeout)
	}
	if cfg.LiveMaxRetries != 3 {
		t.Fatalf("unexpected LiveMaxRetries: got=%d want=3", cfg.LiveMaxRetries)
	}
	if cfg.CacheMemoryBudgetBytes != 50<<20 {
		t.Fatalf("unexpected CacheMemoryBudgetBytes: %d", cfg.CacheMemoryBudgetBytes)
	}
	if !cfg.DocsEnabled {
		t.Fatalf("expected docs enabled outside prod")
	}
}

func TestLoad_DefaultsByEnv(t *testing.T) {
	t.Run("prod disables docs by default", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProd)
		t.Setenv("UPTRACE_ENABLED", "false")
		t.Setenv("DOCS_ENABLED", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.DocsEnabled {
			t.Fatalf("expected DocsEnabled=false in prod by default")
		}
	})

	t.Run("explicit override wins", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProd)
		t.Setenv("UPTRACE_ENABLED", "false")
		t.Setenv("DOCS_ENABLED", "true")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.DocsEnabled {
			t.Fatalf("expected DocsEnabled=true")
		}
	})
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "negative duration", key: "LIVE_POLL_INTERVAL", value: "-1s"},
		{name: "garbage duration", key: "CACHE_SWEEP_INTERVAL", value: "soon"},
		{name: "gap above interval", key: "LIVE_MIN_POLL_GAP", value: "1m"},
		{name: "zero workers", key: "LIVE_DELIVERY_WORKERS", value: "0"},
		{name: "negative retries", key: "FOOTBALL_API_MAX_RETRIES", value: "-2"},
		{name: "zero memory budget", key: "CACHE_MEMORY_BUDGET_BYTES", value: "0"},
		{name: "bad bool", key: "CACHE_PERSISTENT_ENABLED", value: "maybe"},
		{name: "unknown log format", key: "APP_LOG_FORMAT", value: "xml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("APP_ENV", EnvDev)
			t.Setenv("UPTRACE_ENABLED", "false")
			t.Setenv(tt.key, tt.value)

			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_ReadsDotEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scoreboard.env")
	if err := os.WriteFile(path, []byte("VIEWER_TIMEZONE=Asia/Jakarta\nLIVE_POLL_INTERVAL=30s\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("APP_ENV_FILE", path)
	t.Cleanup(func() {
		_ = os.Unsetenv("VIEWER_TIMEZONE")
		_ = os.Unsetenv("LIVE_POLL_INTERVAL")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.ViewerTimezone != "Asia/Jakarta" {
		t.Fatalf("unexpected ViewerTimezone: %q", cfg.ViewerTimezone)
	}
	if cfg.LivePollInterval != 30*time.Second {
		t.Fatalf("unexpected LivePollInterval: %s", cfg.LivePollInterval)
	}
}

func TestParseLogLevel(t *testing.T) {
	if got := parseLogLevel("WARNING").String(); got != "warn" {
		t.Fatalf("unexpected level: %s", got)
	}
	if got := parseLogLevel("nonsense").String(); got != "info" {
		t.Fatalf("unexpected fallback level: %s", got)
	}
}
