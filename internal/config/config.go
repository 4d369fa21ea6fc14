// Package config defines the top-level configuration for the riskwatch
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by RISKWATCH_* environment
// variables.
type Config struct {
	Upstream UpstreamConfig `toml:"upstream"`
	Engine   EngineConfig   `toml:"engine"`
	Limits   LimitsConfig   `toml:"limits"`
	Policy   PolicyConfig   `toml:"policy"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	LogLevel string         `toml:"log_level"`
}

// UpstreamConfig holds the endpoints of the position service feeding the
// engine.
type UpstreamConfig struct {
	SnapshotURL string   `toml:"snapshot_url"`
	WsURL       string   `toml:"ws_url"`
	ApiKey      string   `toml:"api_key"`
	Channels    []string `toml:"channels"`
}

// EngineConfig holds the reconciliation engine tunables.
type EngineConfig struct {
	PollInterval   duration `toml:"poll_interval"`
	StaleThreshold int      `toml:"stale_threshold"`
	AlertCapacity  int      `toml:"alert_capacity"`
	AlertCooldown  duration `toml:"alert_cooldown"`
}

// LimitsConfig holds the active risk limit thresholds.
type LimitsConfig struct {
	MaxPositionRiskPct  float64 `toml:"max_position_risk_pct"`
	MaxPortfolioRiskPct float64 `toml:"max_portfolio_risk_pct"`
	MaxDailyLossPct     float64 `toml:"max_daily_loss_pct"`
	MaxDrawdownPct      float64 `toml:"max_drawdown_pct"`
	VarConfidencePct    float64 `toml:"var_confidence_pct"`
}

// PolicyConfig holds the risk-score weighting policy.
type PolicyConfig struct {
	LeverageWeight  float64  `toml:"leverage_weight"`
	ProximityWeight float64  `toml:"proximity_weight"`
	DurationWeight  float64  `toml:"duration_weight"`
	MaxLeverage     float64  `toml:"max_leverage"`
	MaxDuration     duration `toml:"max_duration"`
}

// RedisConfig holds Redis connection parameters for the signal bus.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// PostgresConfig holds PostgreSQL connection parameters for the history
// stores.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// S3Config holds S3-compatible object storage parameters for history
// archival.
type S3Config struct {
	Enabled         bool     `toml:"enabled"`
	Endpoint        string   `toml:"endpoint"`
	Region          string   `toml:"region"`
	Bucket          string   `toml:"bucket"`
	AccessKey       string   `toml:"access_key"`
	SecretKey       string   `toml:"secret_key"`
	UseSSL          bool     `toml:"use_ssl"`
	ForcePathStyle  bool     `toml:"force_path_style"`
	ArchiveInterval duration `toml:"archive_interval"`
}

// ServerConfig holds the HTTP/WebSocket API parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	ApiKey      string   `toml:"api_key"`
}

// NotifyConfig holds operator notification channels.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding such as "5s" or "1m".
type duration struct {
	time.Duration
}

// UnmarshalText lets the TOML decoder parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = parsed
	return nil
}

// MarshalText renders the duration back to its string form.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns the built-in configuration baseline.
func Defaults() Config {
	return Config{
		Upstream: UpstreamConfig{
			Channels: []string{"positions", "risk"},
		},
		Engine: EngineConfig{
			PollInterval:   duration{5 * time.Second},
			StaleThreshold: 3,
			AlertCapacity:  12,
			AlertCooldown:  duration{time.Minute},
		},
		Limits: LimitsConfig{
			MaxPositionRiskPct:  75,
			MaxPortfolioRiskPct: 60,
			MaxDailyLossPct:     5,
			MaxDrawdownPct:      10,
			VarConfidencePct:    95,
		},
		Policy: PolicyConfig{
			LeverageWeight:  0.5,
			ProximityWeight: 0.35,
			DurationWeight:  0.15,
			MaxLeverage:     20,
			MaxDuration:     duration{30 * 24 * time.Hour},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "riskwatch",
			User:          "riskwatch",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		S3: S3Config{
			Endpoint:        "http://localhost:9000",
			Region:          "us-east-1",
			Bucket:          "riskwatch-history",
			ForcePathStyle:  true,
			ArchiveInterval: duration{time.Hour},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8085,
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for internal consistency. It collects
// every problem rather than stopping at the first.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Upstream
	if c.Upstream.SnapshotURL == "" {
		errs = append(errs, "upstream: snapshot_url must not be empty")
	}
	if c.Upstream.WsURL != "" && len(c.Upstream.Channels) == 0 {
		errs = append(errs, "upstream: channels must not be empty when ws_url is set")
	}

	// Engine
	if c.Engine.PollInterval.Duration < time.Second {
		errs = append(errs, fmt.Sprintf("engine: poll_interval %s is below the 1s minimum", c.Engine.PollInterval.Duration))
	}
	if c.Engine.StaleThreshold <= 0 {
		errs = append(errs, "engine: stale_threshold must be positive")
	}
	if c.Engine.AlertCapacity <= 0 {
		errs = append(errs, "engine: alert_capacity must be positive")
	}
	if c.Engine.AlertCooldown.Duration <= 0 {
		errs = append(errs, "engine: alert_cooldown must be positive")
	}

	// Limits
	for name, v := range map[string]float64{
		"max_position_risk_pct":  c.Limits.MaxPositionRiskPct,
		"max_portfolio_risk_pct": c.Limits.MaxPortfolioRiskPct,
		"max_daily_loss_pct":     c.Limits.MaxDailyLossPct,
		"max_drawdown_pct":       c.Limits.MaxDrawdownPct,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Sprintf("limits: %s must be positive", name))
		}
	}
	if c.Limits.VarConfidencePct < 50 || c.Limits.VarConfidencePct > 99.9 {
		errs = append(errs, fmt.Sprintf("limits: var_confidence_pct %.1f must be within [50, 99.9]", c.Limits.VarConfidencePct))
	}

	// Policy
	if c.Policy.LeverageWeight < 0 || c.Policy.ProximityWeight < 0 || c.Policy.DurationWeight < 0 {
		errs = append(errs, "policy: weights must not be negative")
	}
	if c.Policy.LeverageWeight+c.Policy.ProximityWeight+c.Policy.DurationWeight <= 0 {
		errs = append(errs, "policy: at least one weight must be positive")
	}
	if c.Policy.MaxLeverage <= 1 {
		errs = append(errs, "policy: max_leverage must be greater than 1")
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty when enabled")
	}

	// Postgres
	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port %d out of range", c.Postgres.Port))
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.ArchiveInterval.Duration < time.Minute {
			errs = append(errs, "s3: archive_interval must be at least 1m")
		}
	}

	// Server
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
	}

	// Notify: Telegram needs both token and chat id.
	tt := c.Notify.TelegramToken != ""
	tc := c.Notify.TelegramChatID != ""
	if tt != tc {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
