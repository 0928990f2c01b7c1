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
// built-in defaults, applies CEDEARMON_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env if present; a missing file is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CEDEARMON_* environment variables and
// overwrites the corresponding Config fields when set. This lets operators
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── IOL ──
	setStr(&cfg.IOL.BaseURL, "CEDEARMON_IOL_BASE_URL")
	setStr(&cfg.IOL.FallbackBaseURL, "CEDEARMON_IOL_FALLBACK_BASE_URL")
	setStr(&cfg.IOL.Username, "CEDEARMON_IOL_USERNAME")
	setStr(&cfg.IOL.Password, "CEDEARMON_IOL_PASSWORD")
	setStr(&cfg.IOL.Market, "CEDEARMON_IOL_MARKET")

	// ── Yahoo ──
	setStr(&cfg.Yahoo.BaseURL, "CEDEARMON_YAHOO_BASE_URL")
	setStr(&cfg.Yahoo.Interval, "CEDEARMON_YAHOO_INTERVAL")

	// ── Reference ──
	setStr(&cfg.Reference.LocalLeg, "CEDEARMON_REFERENCE_LOCAL_LEG")
	setStr(&cfg.Reference.DollarLeg, "CEDEARMON_REFERENCE_DOLLAR_LEG")
	setStr(&cfg.Reference.SettlementTerm, "CEDEARMON_REFERENCE_SETTLEMENT_TERM")

	// ── Engine ──
	setFloat64(&cfg.Engine.MinDeviationPct, "CEDEARMON_ENGINE_MIN_DEVIATION_PCT")
	setFloat64(&cfg.Engine.MinNetEdge, "CEDEARMON_ENGINE_MIN_NET_EDGE")
	setFloat64(&cfg.Engine.FeePctPerLeg, "CEDEARMON_ENGINE_FEE_PCT_PER_LEG")
	setFloat64(&cfg.Engine.TargetNotional, "CEDEARMON_ENGINE_TARGET_NOTIONAL")
	setFloat64(&cfg.Engine.DepthMultiplier, "CEDEARMON_ENGINE_DEPTH_MULTIPLIER")
	setInt64(&cfg.Engine.DepthFloor, "CEDEARMON_ENGINE_DEPTH_FLOOR")
	setFloat64(&cfg.Engine.ClassifierDepthMultiple, "CEDEARMON_ENGINE_CLASSIFIER_DEPTH_MULTIPLIER")
	setFloat64(&cfg.Engine.ElevatedEdge, "CEDEARMON_ENGINE_ELEVATED_EDGE")
	setFloat64(&cfg.Engine.ElevatedDeviationPct, "CEDEARMON_ENGINE_ELEVATED_DEVIATION_PCT")
	setFloat64(&cfg.Engine.CriticalEdge, "CEDEARMON_ENGINE_CRITICAL_EDGE")
	setFloat64(&cfg.Engine.CriticalDeviationPct, "CEDEARMON_ENGINE_CRITICAL_DEVIATION_PCT")
	setDuration(&cfg.Engine.Cooldown, "CEDEARMON_ENGINE_COOLDOWN")
	setFloat64(&cfg.Engine.ImprovementMargin, "CEDEARMON_ENGINE_IMPROVEMENT_MARGIN")
	setDuration(&cfg.Engine.PollInterval, "CEDEARMON_ENGINE_POLL_INTERVAL")
	setDuration(&cfg.Engine.FetchTimeout, "CEDEARMON_ENGINE_FETCH_TIMEOUT")
	setInt(&cfg.Engine.MaxConcurrency, "CEDEARMON_ENGINE_MAX_CONCURRENCY")
	setFloat64(&cfg.Engine.MinTradedNotional, "CEDEARMON_ENGINE_MIN_TRADED_NOTIONAL")

	// ── Stability ──
	setFloat64(&cfg.Stability.MaxChangePct, "CEDEARMON_STABILITY_MAX_CHANGE_PCT")
	setBool(&cfg.Stability.ExcludeAudit, "CEDEARMON_STABILITY_EXCLUDE_AUDIT")

	// ── Session ──
	setStr(&cfg.Session.Timezone, "CEDEARMON_SESSION_TIMEZONE")
	setStringSlice(&cfg.Session.Windows, "CEDEARMON_SESSION_WINDOWS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CEDEARMON_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "CEDEARMON_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CEDEARMON_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CEDEARMON_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CEDEARMON_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CEDEARMON_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CEDEARMON_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CEDEARMON_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CEDEARMON_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CEDEARMON_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CEDEARMON_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CEDEARMON_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CEDEARMON_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CEDEARMON_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CEDEARMON_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CEDEARMON_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.QuoteTTL, "CEDEARMON_REDIS_QUOTE_TTL")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CEDEARMON_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CEDEARMON_S3_REGION")
	setStr(&cfg.S3.Bucket, "CEDEARMON_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CEDEARMON_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CEDEARMON_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CEDEARMON_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CEDEARMON_S3_FORCE_PATH_STYLE")
	setInt(&cfg.S3.RetentionDays, "CEDEARMON_S3_RETENTION_DAYS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CEDEARMON_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CEDEARMON_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CEDEARMON_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CEDEARMON_NOTIFY_EVENTS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "CEDEARMON_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "CEDEARMON_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CEDEARMON_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CEDEARMON_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "CEDEARMON_MODE")
	setStr(&cfg.LogLevel, "CEDEARMON_LOG_LEVEL")
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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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
