// Package config defines the top-level configuration for the monitor and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/arbdesk/cedearmon/internal/engine"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by CEDEARMON_* environment
// variables.
type Config struct {
	IOL       IOLConfig       `toml:"iol"`
	Yahoo     YahooConfig     `toml:"yahoo"`
	Reference ReferenceConfig `toml:"reference"`
	Engine    EngineConfig    `toml:"engine"`
	Stability StabilityConfig `toml:"stability"`
	Session   SessionConfig   `toml:"session"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Notify    NotifyConfig    `toml:"notify"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// IOLConfig holds the local broker API credentials and endpoints.
type IOLConfig struct {
	BaseURL         string `toml:"base_url"`
	FallbackBaseURL string `toml:"fallback_base_url"`
	Username        string `toml:"username"`
	Password        string `toml:"password"`
	Market          string `toml:"market"`
}

// YahooConfig holds the foreign chart API parameters.
type YahooConfig struct {
	BaseURL  string `toml:"base_url"`
	Interval string `toml:"interval"`
}

// ReferenceConfig names the bond pair that defines the FX reference rate.
type ReferenceConfig struct {
	LocalLeg       string `toml:"local_leg"`
	DollarLeg      string `toml:"dollar_leg"`
	SettlementTerm string `toml:"settlement_term"`
}

// EngineConfig holds the signal thresholds and tick parameters.
type EngineConfig struct {
	MinDeviationPct         float64  `toml:"min_deviation_pct"`
	MinNetEdge              float64  `toml:"min_net_edge"`
	FeePctPerLeg            float64  `toml:"fee_pct_per_leg"`
	TargetNotional          float64  `toml:"target_notional"`
	DepthMultiplier         float64  `toml:"depth_multiplier"`
	DepthFloor              int64    `toml:"depth_floor"`
	ClassifierDepthMultiple float64  `toml:"classifier_depth_multiplier"`
	ElevatedEdge            float64  `toml:"elevated_edge"`
	ElevatedDeviationPct    float64  `toml:"elevated_deviation_pct"`
	CriticalEdge            float64  `toml:"critical_edge"`
	CriticalDeviationPct    float64  `toml:"critical_deviation_pct"`
	Cooldown                duration `toml:"cooldown"`
	ImprovementMargin       float64  `toml:"improvement_margin"`
	PollInterval            duration `toml:"poll_interval"`
	FetchTimeout            duration `toml:"fetch_timeout"`
	MaxConcurrency          int      `toml:"max_concurrency"`
	MinTradedNotional       float64  `toml:"min_traded_notional"`
}

// StabilityConfig holds the fast-market filter parameters.
type StabilityConfig struct {
	MaxChangePct float64 `toml:"max_change_pct"`
	ExcludeAudit bool    `toml:"exclude_audit"`
}

// SessionConfig holds the trading session gate parameters.
type SessionConfig struct {
	Timezone string   `toml:"timezone"`
	Windows  []string `toml:"windows"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	QuoteTTL   duration `toml:"quote_ttl"`
}

// S3Config holds S3-compatible object storage parameters for the archive.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	RetentionDays  int    `toml:"retention_days"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration is a time.Duration wrapper that decodes TOML strings like "5m".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values. These
// match config.example.toml.
func Defaults() Config {
	return Config{
		IOL: IOLConfig{
			BaseURL: "https://api.invertironline.com",
			Market:  "bcba",
		},
		Yahoo: YahooConfig{
			BaseURL:  "https://query1.finance.yahoo.com",
			Interval: "5m",
		},
		Reference: ReferenceConfig{
			LocalLeg:       "AL30",
			DollarLeg:      "AL30D",
			SettlementTerm: "T1",
		},
		Engine: EngineConfig{
			MinDeviationPct:         0.6,
			MinNetEdge:              0.05,
			FeePctPerLeg:            0.5,
			TargetNotional:          10_000,
			DepthMultiplier:         2,
			DepthFloor:              1,
			ClassifierDepthMultiple: 4,
			ElevatedEdge:            0.5,
			ElevatedDeviationPct:    1.2,
			CriticalEdge:            1.0,
			CriticalDeviationPct:    2.0,
			Cooldown:                duration{30 * time.Minute},
			ImprovementMargin:       0.05,
			PollInterval:            duration{5 * time.Minute},
			FetchTimeout:            duration{20 * time.Second},
			MaxConcurrency:          4,
			MinTradedNotional:       1_000_000,
		},
		Stability: StabilityConfig{
			MaxChangePct: 0.25,
			ExcludeAudit: false,
		},
		Session: SessionConfig{
			Timezone: "America/Argentina/Buenos_Aires",
			Windows:  []string{"11:15-12:00", "14:00-16:45"},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "cedearmon",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			QuoteTTL:   duration{90 * time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "cedearmon-archive",
			UseSSL:         false,
			ForcePathStyle: true,
			RetentionDays:  90,
		},
		Notify: NotifyConfig{
			Events: []string{"alert", "error"},
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"tick":    true,
	"daemon":  true,
	"serve":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: tick, daemon, serve, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	mode := strings.ToLower(c.Mode)
	needsQuotes := mode == "tick" || mode == "daemon" || mode == "full"

	if needsQuotes {
		if c.IOL.BaseURL == "" {
			errs = append(errs, "iol: base_url must not be empty")
		}
		if c.IOL.Username == "" || c.IOL.Password == "" {
			errs = append(errs, "iol: username and password are required for mode "+c.Mode)
		}
		if c.IOL.Market == "" {
			errs = append(errs, "iol: market must not be empty")
		}
		if c.Yahoo.BaseURL == "" {
			errs = append(errs, "yahoo: base_url must not be empty")
		}
	}

	if c.Reference.LocalLeg == "" || c.Reference.DollarLeg == "" {
		errs = append(errs, "reference: local_leg and dollar_leg must both be set")
	}
	if c.Reference.SettlementTerm == "" {
		errs = append(errs, "reference: settlement_term must not be empty")
	}

	if c.Engine.MinDeviationPct < 0 {
		errs = append(errs, "engine: min_deviation_pct must be >= 0")
	}
	if c.Engine.FeePctPerLeg < 0 {
		errs = append(errs, "engine: fee_pct_per_leg must be >= 0")
	}
	if c.Engine.TargetNotional <= 0 {
		errs = append(errs, "engine: target_notional must be > 0")
	}
	if c.Engine.DepthMultiplier < 1 {
		errs = append(errs, "engine: depth_multiplier must be >= 1")
	}
	if c.Engine.Cooldown.Duration < 0 {
		errs = append(errs, "engine: cooldown must not be negative")
	}
	if c.Engine.PollInterval.Duration <= 0 && (mode == "daemon" || mode == "full") {
		errs = append(errs, "engine: poll_interval must be > 0 for mode "+c.Mode)
	}
	if c.Engine.MaxConcurrency < 1 {
		errs = append(errs, "engine: max_concurrency must be >= 1")
	}

	if c.Stability.MaxChangePct < 0 {
		errs = append(errs, "stability: max_change_pct must be >= 0")
	}

	if c.Session.Timezone == "" {
		errs = append(errs, "session: timezone must not be empty")
	}
	for _, w := range c.Session.Windows {
		if _, err := engine.ParseWindow(w); err != nil {
			errs = append(errs, fmt.Sprintf("session: bad window %q: %v", w, err))
		}
	}

	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if mode == "archive" {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty for mode archive")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty for mode archive")
		}
		if c.S3.RetentionDays < 1 {
			errs = append(errs, "s3: retention_days must be >= 1 for mode archive")
		}
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	} else if mode == "serve" {
		errs = append(errs, "server: enabled must be true for mode serve")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
