package config

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "batch" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "trace" }, "unknown log_level"},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "port must be 1-65535"},
		{"empty redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"pool bounds", func(c *Config) { c.Postgres.PoolMinConns = 20 }, "pool_min_conns"},
		{"archive without s3", func(c *Config) { c.Archive.Enabled = true }, "s3 must be enabled"},
		{"zero sweep interval", func(c *Config) { c.Sweeper.Interval = duration{} }, "sweeper: interval"},
		{"negative rate limit", func(c *Config) { c.Server.RateLimit = -1 }, "rate_limit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Defaults()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TOKENMARKET_POSTGRES_PASSWORD", "hunter2")
	t.Setenv("TOKENMARKET_SERVER_PORT", "9100")
	t.Setenv("TOKENMARKET_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("TOKENMARKET_SWEEPER_INTERVAL", "30s")
	t.Setenv("TOKENMARKET_S3_ENABLED", "true")
	t.Setenv("TOKENMARKET_MODE", "sweeper")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Postgres.Password != "hunter2" {
		t.Errorf("postgres password = %q", cfg.Postgres.Password)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("server port = %d", cfg.Server.Port)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Sweeper.Interval.Duration != 30*time.Second {
		t.Errorf("sweep interval = %v", cfg.Sweeper.Interval.Duration)
	}
	if !cfg.S3.Enabled {
		t.Error("s3 enabled override not applied")
	}
	if cfg.Mode != "sweeper" {
		t.Errorf("mode = %q", cfg.Mode)
	}
}

func TestEnvOverrideIgnoresMalformedValues(t *testing.T) {
	t.Setenv("TOKENMARKET_SERVER_PORT", "not-a-number")
	t.Setenv("TOKENMARKET_REDIS_TLS_ENABLED", "maybe")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	if cfg.Server.Port != 8000 {
		t.Errorf("malformed port should keep default, got %d", cfg.Server.Port)
	}
	if cfg.Redis.TLSEnabled {
		t.Error("malformed bool should keep default")
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Postgres.Password = "secret"
	cfg.Postgres.DSN = "postgres://u:p@h/db"
	cfg.Redis.Password = "secret"
	cfg.S3.AccessKey = "AKIA123"
	cfg.S3.SecretKey = "shhh"
	cfg.Server.APIKey = "key"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	red := RedactedConfig(&cfg)

	for name, got := range map[string]string{
		"postgres password": red.Postgres.Password,
		"postgres dsn":      red.Postgres.DSN,
		"redis password":    red.Redis.Password,
		"s3 access key":     red.S3.AccessKey,
		"s3 secret key":     red.S3.SecretKey,
		"server api key":    red.Server.APIKey,
		"discord webhook":   red.Notify.DiscordWebhookURL,
	} {
		if got != "***" {
			t.Errorf("%s not redacted: %q", name, got)
		}
	}

	// The original must be untouched.
	if cfg.Postgres.Password != "secret" {
		t.Error("redaction mutated the original config")
	}

	// Empty fields stay empty rather than gaining a placeholder.
	if red.Notify.WebhookURL != "" {
		t.Errorf("empty webhook url became %q", red.Notify.WebhookURL)
	}
}
