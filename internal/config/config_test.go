package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a Defaults-based config that passes Validate.
func validConfig() Config {
	cfg := Defaults()
	cfg.Upstream.SnapshotURL = "http://localhost:9100/api/positions/snapshot"
	return cfg
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 3, cfg.Engine.StaleThreshold)
	assert.Equal(t, 12, cfg.Engine.AlertCapacity)
	assert.Equal(t, time.Minute, cfg.Engine.AlertCooldown.Duration)

	assert.InDelta(t, 75, cfg.Limits.MaxPositionRiskPct, 1e-9)
	assert.InDelta(t, 60, cfg.Limits.MaxPortfolioRiskPct, 1e-9)
	assert.InDelta(t, 5, cfg.Limits.MaxDailyLossPct, 1e-9)
	assert.InDelta(t, 10, cfg.Limits.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 95, cfg.Limits.VarConfidencePct, 1e-9)

	assert.InDelta(t, 0.5, cfg.Policy.LeverageWeight, 1e-9)
	assert.InDelta(t, 0.35, cfg.Policy.ProximityWeight, 1e-9)
	assert.InDelta(t, 0.15, cfg.Policy.DurationWeight, 1e-9)
	assert.InDelta(t, 20, cfg.Policy.MaxLeverage, 1e-9)
	assert.Equal(t, 30*24*time.Hour, cfg.Policy.MaxDuration.Duration)

	assert.True(t, cfg.Server.Enabled)
	assert.Equal(t, 8085, cfg.Server.Port)
	assert.Equal(t, "info", cfg.LogLevel)

	assert.False(t, cfg.Redis.Enabled)
	assert.False(t, cfg.Postgres.Enabled)
	assert.True(t, cfg.Postgres.RunMigrations)
	assert.False(t, cfg.S3.Enabled)
}

func TestValidateAcceptsDefaultsWithSnapshotURL(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := validConfig()
	cfg.Upstream.SnapshotURL = ""
	cfg.Engine.PollInterval.Duration = 100 * time.Millisecond
	cfg.Policy.MaxLeverage = 1

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "snapshot_url")
	assert.Contains(t, err.Error(), "poll_interval")
	assert.Contains(t, err.Error(), "max_leverage")
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown log level", func(c *Config) { c.LogLevel = "verbose" }, "log_level"},
		{"ws without channels", func(c *Config) {
			c.Upstream.WsURL = "ws://localhost:9100/ws"
			c.Upstream.Channels = nil
		}, "channels"},
		{"zero stale threshold", func(c *Config) { c.Engine.StaleThreshold = 0 }, "stale_threshold"},
		{"zero alert capacity", func(c *Config) { c.Engine.AlertCapacity = 0 }, "alert_capacity"},
		{"negative daily loss limit", func(c *Config) { c.Limits.MaxDailyLossPct = -1 }, "max_daily_loss_pct"},
		{"var confidence too low", func(c *Config) { c.Limits.VarConfidencePct = 40 }, "var_confidence_pct"},
		{"negative weight", func(c *Config) { c.Policy.ProximityWeight = -0.1 }, "weights"},
		{"all weights zero", func(c *Config) {
			c.Policy.LeverageWeight = 0
			c.Policy.ProximityWeight = 0
			c.Policy.DurationWeight = 0
		}, "at least one weight"},
		{"redis enabled without addr", func(c *Config) {
			c.Redis.Enabled = true
			c.Redis.Addr = ""
		}, "redis: addr"},
		{"postgres enabled without host or dsn", func(c *Config) {
			c.Postgres.Enabled = true
			c.Postgres.Host = ""
		}, "postgres: host"},
		{"s3 enabled without bucket", func(c *Config) {
			c.S3.Enabled = true
			c.S3.Bucket = ""
		}, "s3: bucket"},
		{"server port out of range", func(c *Config) { c.Server.Port = 70000 }, "port"},
		{"telegram token without chat id", func(c *Config) { c.Notify.TelegramToken = "tok" }, "telegram"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateAllowsExplicitDSN(t *testing.T) {
	cfg := validConfig()
	cfg.Postgres.Enabled = true
	cfg.Postgres.Host = ""
	cfg.Postgres.Port = 0
	cfg.Postgres.DSN = "postgres://rw:secret@db:5432/riskwatch"

	require.NoError(t, cfg.Validate())
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RISKWATCH_UPSTREAM_SNAPSHOT_URL", "http://upstream:9100/snapshot")
	t.Setenv("RISKWATCH_ENGINE_POLL_INTERVAL", "10s")
	t.Setenv("RISKWATCH_ENGINE_STALE_THRESHOLD", "5")
	t.Setenv("RISKWATCH_LIMITS_MAX_DRAWDOWN_PCT", "15.5")
	t.Setenv("RISKWATCH_REDIS_ENABLED", "true")
	t.Setenv("RISKWATCH_SERVER_CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("RISKWATCH_POSTGRES_RUN_MIGRATIONS", "false")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "http://upstream:9100/snapshot", cfg.Upstream.SnapshotURL)
	assert.Equal(t, 10*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 5, cfg.Engine.StaleThreshold)
	assert.InDelta(t, 15.5, cfg.Limits.MaxDrawdownPct, 1e-9)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Postgres.RunMigrations)
}

func TestEnvOverridesIgnoreUnparseableValues(t *testing.T) {
	t.Setenv("RISKWATCH_ENGINE_POLL_INTERVAL", "soon")
	t.Setenv("RISKWATCH_ENGINE_STALE_THRESHOLD", "many")
	t.Setenv("RISKWATCH_REDIS_ENABLED", "maybe")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, 5*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 3, cfg.Engine.StaleThreshold)
	assert.False(t, cfg.Redis.Enabled)
}
