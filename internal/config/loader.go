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
// built-in defaults, applies RISKWATCH_* environment variable overrides, and
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

// applyEnvOverrides reads well-known RISKWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Upstream ──
	setStr(&cfg.Upstream.SnapshotURL, "RISKWATCH_UPSTREAM_SNAPSHOT_URL")
	setStr(&cfg.Upstream.WsURL, "RISKWATCH_UPSTREAM_WS_URL")
	setStr(&cfg.Upstream.ApiKey, "RISKWATCH_UPSTREAM_API_KEY")
	setStringSlice(&cfg.Upstream.Channels, "RISKWATCH_UPSTREAM_CHANNELS")

	// ── Engine ──
	setDuration(&cfg.Engine.PollInterval, "RISKWATCH_ENGINE_POLL_INTERVAL")
	setInt(&cfg.Engine.StaleThreshold, "RISKWATCH_ENGINE_STALE_THRESHOLD")
	setInt(&cfg.Engine.AlertCapacity, "RISKWATCH_ENGINE_ALERT_CAPACITY")
	setDuration(&cfg.Engine.AlertCooldown, "RISKWATCH_ENGINE_ALERT_COOLDOWN")

	// ── Limits ──
	setFloat64(&cfg.Limits.MaxPositionRiskPct, "RISKWATCH_LIMITS_MAX_POSITION_RISK_PCT")
	setFloat64(&cfg.Limits.MaxPortfolioRiskPct, "RISKWATCH_LIMITS_MAX_PORTFOLIO_RISK_PCT")
	setFloat64(&cfg.Limits.MaxDailyLossPct, "RISKWATCH_LIMITS_MAX_DAILY_LOSS_PCT")
	setFloat64(&cfg.Limits.MaxDrawdownPct, "RISKWATCH_LIMITS_MAX_DRAWDOWN_PCT")
	setFloat64(&cfg.Limits.VarConfidencePct, "RISKWATCH_LIMITS_VAR_CONFIDENCE_PCT")

	// ── Policy ──
	setFloat64(&cfg.Policy.LeverageWeight, "RISKWATCH_POLICY_LEVERAGE_WEIGHT")
	setFloat64(&cfg.Policy.ProximityWeight, "RISKWATCH_POLICY_PROXIMITY_WEIGHT")
	setFloat64(&cfg.Policy.DurationWeight, "RISKWATCH_POLICY_DURATION_WEIGHT")
	setFloat64(&cfg.Policy.MaxLeverage, "RISKWATCH_POLICY_MAX_LEVERAGE")
	setDuration(&cfg.Policy.MaxDuration, "RISKWATCH_POLICY_MAX_DURATION")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "RISKWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "RISKWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RISKWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RISKWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RISKWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RISKWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RISKWATCH_REDIS_TLS_ENABLED")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "RISKWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "RISKWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RISKWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RISKWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RISKWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RISKWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RISKWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RISKWATCH_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RISKWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RISKWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RISKWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "RISKWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "RISKWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RISKWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "RISKWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RISKWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RISKWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RISKWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RISKWATCH_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.ArchiveInterval, "RISKWATCH_S3_ARCHIVE_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "RISKWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "RISKWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "RISKWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.ApiKey, "RISKWATCH_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RISKWATCH_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RISKWATCH_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RISKWATCH_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "RISKWATCH_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "RISKWATCH_LOG_LEVEL")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
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
