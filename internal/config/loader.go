package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TOKENMARKET_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TOKENMARKET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TOKENMARKET_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "TOKENMARKET_DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "TOKENMARKET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TOKENMARKET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TOKENMARKET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TOKENMARKET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TOKENMARKET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TOKENMARKET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TOKENMARKET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TOKENMARKET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TOKENMARKET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TOKENMARKET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TOKENMARKET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TOKENMARKET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TOKENMARKET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TOKENMARKET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TOKENMARKET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TOKENMARKET_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TOKENMARKET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TOKENMARKET_S3_REGION")
	setStr(&cfg.S3.Bucket, "TOKENMARKET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TOKENMARKET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TOKENMARKET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TOKENMARKET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TOKENMARKET_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setInt(&cfg.Server.Port, "TOKENMARKET_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TOKENMARKET_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TOKENMARKET_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TOKENMARKET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TOKENMARKET_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.DiscordWebhookURL, "TOKENMARKET_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.WebhookURL, "TOKENMARKET_NOTIFY_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TOKENMARKET_NOTIFY_EVENTS")

	// ── Sweeper ──
	setDuration(&cfg.Sweeper.Interval, "TOKENMARKET_SWEEPER_INTERVAL")
	setInt(&cfg.Sweeper.BatchSize, "TOKENMARKET_SWEEPER_BATCH_SIZE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TOKENMARKET_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "TOKENMARKET_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "TOKENMARKET_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TOKENMARKET_MODE")
	setStr(&cfg.LogLevel, "TOKENMARKET_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
