package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefaultsValidateForServeMode(t *testing.T) {
	cfg := Defaults()
	// Serve mode needs no broker credentials.
	cfg.Mode = "serve"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRequiresCredentialsForTicking(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "daemon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username and password")

	cfg.IOL.Username = "user"
	cfg.IOL.Password = "pass"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "unknown_mode",
			mutate: func(c *Config) { c.Mode = "turbo" },
			want:   "unknown mode",
		},
		{
			name:   "bad_session_window",
			mutate: func(c *Config) { c.Session.Windows = []string{"25:00-26:00"} },
			want:   "bad window",
		},
		{
			name:   "zero_target_notional",
			mutate: func(c *Config) { c.Engine.TargetNotional = 0 },
			want:   "target_notional",
		},
		{
			name:   "archive_without_bucket",
			mutate: func(c *Config) { c.Mode = "archive"; c.S3.Bucket = "" },
			want:   "bucket",
		},
		{
			name:   "pool_bounds_inverted",
			mutate: func(c *Config) { c.Postgres.PoolMinConns = 20 },
			want:   "pool_min_conns",
		},
		{
			name:   "serve_with_server_disabled",
			mutate: func(c *Config) { c.Mode = "serve"; c.Server.Enabled = false },
			want:   "enabled must be true for mode serve",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.Mode = "serve"
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeConfig(t, `
mode = "serve"

[engine]
min_deviation_pct = 1.1
cooldown = "45m"

[session]
windows = ["10:00-17:00"]
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, 1.1, cfg.Engine.MinDeviationPct)
	assert.Equal(t, 45*time.Minute, cfg.Engine.Cooldown.Duration)
	assert.Equal(t, []string{"10:00-17:00"}, cfg.Session.Windows)
	// Untouched sections keep their defaults.
	assert.Equal(t, "https://query1.finance.yahoo.com", cfg.Yahoo.BaseURL)
	assert.Equal(t, 90*time.Second, cfg.Redis.QuoteTTL.Duration)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `mode = "serve"`)

	t.Setenv("CEDEARMON_IOL_USERNAME", "envuser")
	t.Setenv("CEDEARMON_ENGINE_POLL_INTERVAL", "90s")
	t.Setenv("CEDEARMON_SERVER_PORT", "9000")
	t.Setenv("CEDEARMON_SESSION_WINDOWS", "09:00-12:00,13:00-17:00")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envuser", cfg.IOL.Username)
	assert.Equal(t, 90*time.Second, cfg.Engine.PollInterval.Duration)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, []string{"09:00-12:00", "13:00-17:00"}, cfg.Session.Windows)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestRedactedConfigHidesSecrets(t *testing.T) {
	cfg := Defaults()
	cfg.IOL.Password = "hunter2"
	cfg.Postgres.Password = "pgpass"
	cfg.S3.SecretKey = "s3secret"
	cfg.Notify.TelegramToken = "tok"
	cfg.Server.APIKey = "apikey"

	red := RedactedConfig(&cfg)

	assert.NotEqual(t, "hunter2", red.IOL.Password)
	assert.NotEqual(t, "pgpass", red.Postgres.Password)
	assert.NotEqual(t, "s3secret", red.S3.SecretKey)
	assert.NotEqual(t, "tok", red.Notify.TelegramToken)
	assert.NotEqual(t, "apikey", red.Server.APIKey)

	// Redaction must not mutate the original.
	assert.Equal(t, "hunter2", cfg.IOL.Password)
}
