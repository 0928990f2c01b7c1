package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/arbdesk/cedearmon/internal/blob/s3"
	cacheredis "github.com/arbdesk/cedearmon/internal/cache/redis"
	"github.com/arbdesk/cedearmon/internal/config"
	"github.com/arbdesk/cedearmon/internal/domain"
	"github.com/arbdesk/cedearmon/internal/engine"
	"github.com/arbdesk/cedearmon/internal/feed"
	"github.com/arbdesk/cedearmon/internal/notify"
	"github.com/arbdesk/cedearmon/internal/platform/iol"
	"github.com/arbdesk/cedearmon/internal/platform/yahoo"
	"github.com/arbdesk/cedearmon/internal/store/postgres"
)

// Dependencies holds every constructed collaborator, grouped roughly by
// layer. Not every mode uses every field; Wire builds only what the
// configured mode needs.
type Dependencies struct {
	// Stores.
	Watchlist   domain.WatchlistStore
	Audit       domain.AuditStore
	AlertStates domain.AlertStateStore

	// Cache and coordination.
	ForeignCache domain.ForeignCache
	Locks        domain.LockManager
	Bus          domain.AlertBus

	// Quote sources.
	LocalQuotes domain.QuoteSource
	Foreign     domain.ForeignSource

	// Outbound.
	Notifier *notify.Notifier
	Archiver *s3blob.Archiver

	// Core.
	Gate   *engine.Gate
	Engine *engine.Engine

	logger *slog.Logger
}

// Wire constructs the dependency graph for the given configuration. The
// returned cleanup function closes every resource that was opened, in
// reverse order, and is safe to call even when Wire returns an error
// midway (the error path runs it before returning).
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	deps := &Dependencies{logger: logger}

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	mode := strings.ToLower(cfg.Mode)

	// Postgres backs every mode: the watch-list and audit trail in tick
	// and serve modes, the drain source in archive mode.
	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: connect postgres: %w", err)
	}
	closers = append(closers, pg.Close)
	logger.Info("connected to postgres", slog.String("database", cfg.Postgres.Database))

	if cfg.Postgres.RunMigrations {
		if err := pg.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: run migrations: %w", err)
		}
	}

	deps.Watchlist = postgres.NewWatchlistStore(pg.Pool())
	deps.Audit = postgres.NewAuditStore(pg.Pool())
	deps.AlertStates = postgres.NewAlertStateStore(pg.Pool())

	// Redis is optional: when it is unreachable the engine runs without
	// the shared lock, the alert bus, and the foreign-quote cache.
	rc, err := cacheredis.New(ctx, cacheredis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		logger.Warn("redis unavailable, running without cache, lock, and bus", slog.Any("error", err))
	} else {
		closers = append(closers, func() { _ = rc.Close() })
		deps.ForeignCache = cacheredis.NewForeignCache(rc)
		deps.Locks = cacheredis.NewLockManager(rc)
		deps.Bus = cacheredis.NewAlertBus(rc)
		logger.Info("connected to redis", slog.String("addr", cfg.Redis.Addr))
	}

	if mode == "archive" {
		blob, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: connect object storage: %w", err)
		}
		if err := blob.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("app: object storage health: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(blob), deps.Audit, logger)
		logger.Info("connected to object storage", slog.String("bucket", cfg.S3.Bucket))
	}

	deps.Notifier = buildNotifier(cfg, logger)

	gate, err := engine.NewGate(cfg.Session.Timezone, cfg.Session.Windows)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("app: session gate: %w", err)
	}
	deps.Gate = gate

	needsQuotes := mode == "tick" || mode == "daemon" || mode == "full"
	if needsQuotes {
		deps.LocalQuotes = buildLocalQuotes(cfg, logger)
		deps.Foreign = feed.NewCachedForeignSource(
			yahoo.NewClient(cfg.Yahoo.BaseURL, cfg.Yahoo.Interval),
			deps.ForeignCache,
			cfg.Redis.QuoteTTL.Duration,
			logger,
		)
		deps.Engine = engine.New(
			engineConfig(cfg),
			gate,
			deps.Watchlist,
			deps.LocalQuotes,
			deps.Foreign,
			deps.Audit,
			deps.AlertStates,
			deps.Locks,
			deps.Bus,
			deps.Notifier,
			logger,
		)
	}

	return deps, cleanup, nil
}

// buildLocalQuotes creates the broker quote source, chaining a fallback
// endpoint behind the primary when one is configured.
func buildLocalQuotes(cfg *config.Config, logger *slog.Logger) domain.QuoteSource {
	primary := iol.NewClient(cfg.IOL.BaseURL, cfg.IOL.Username, cfg.IOL.Password, cfg.IOL.Market)
	if cfg.IOL.FallbackBaseURL == "" {
		return primary
	}
	fallback := iol.NewClient(cfg.IOL.FallbackBaseURL, cfg.IOL.Username, cfg.IOL.Password, cfg.IOL.Market)
	return feed.NewFallbackSource(primary, fallback, logger)
}

// buildNotifier assembles the configured notification senders. With no
// channels configured it returns a notifier with zero senders, which
// drops every event.
func buildNotifier(cfg *config.Config, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender("", cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	return notify.NewNotifier(senders, cfg.Notify.Events, logger)
}

// engineConfig maps the flat file configuration onto the engine's nested
// config structs.
func engineConfig(cfg *config.Config) engine.Config {
	return engine.Config{
		MinDeviationPct:   cfg.Engine.MinDeviationPct,
		MinNetEdge:        cfg.Engine.MinNetEdge,
		FeePctPerLeg:      cfg.Engine.FeePctPerLeg,
		SettlementTerm:    cfg.Reference.SettlementTerm,
		MinTradedNotional: cfg.Engine.MinTradedNotional,
		MaxConcurrency:    cfg.Engine.MaxConcurrency,
		FetchTimeout:      cfg.Engine.FetchTimeout.Duration,
		Reference: engine.ReferenceConfig{
			LocalLeg:  cfg.Reference.LocalLeg,
			DollarLeg: cfg.Reference.DollarLeg,
		},
		Sizing: engine.SizingConfig{
			TargetNotional:  cfg.Engine.TargetNotional,
			DepthMultiplier: cfg.Engine.DepthMultiplier,
			DepthFloor:      cfg.Engine.DepthFloor,
		},
		Classifier: engine.ClassifierConfig{
			ElevatedEdge:         cfg.Engine.ElevatedEdge,
			ElevatedDeviationPct: cfg.Engine.ElevatedDeviationPct,
			CriticalEdge:         cfg.Engine.CriticalEdge,
			CriticalDeviationPct: cfg.Engine.CriticalDeviationPct,
			DepthMultiple:        cfg.Engine.ClassifierDepthMultiple,
		},
		Dedup: engine.DedupConfig{
			Cooldown:          cfg.Engine.Cooldown.Duration,
			ImprovementMargin: cfg.Engine.ImprovementMargin,
		},
		Stability: engine.StabilityConfig{
			MaxChangePct: cfg.Stability.MaxChangePct,
			ExcludeAudit: cfg.Stability.ExcludeAudit,
		},
	}
}
