package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/breakpt/riftbet/internal/blob/s3"
	"github.com/breakpt/riftbet/internal/cache/redis"
	"github.com/breakpt/riftbet/internal/config"
	"github.com/breakpt/riftbet/internal/domain"
	"github.com/breakpt/riftbet/internal/notify"
	"github.com/breakpt/riftbet/internal/platform/riot"
	"github.com/breakpt/riftbet/internal/store/postgres"
)

// Dependencies bundles every infrastructure-level dependency the application
// modes need. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Postgres
	Postgres *postgres.Client
	Users    domain.UserStore
	Matches  domain.MatchStore
	Markets  domain.MarketStore
	Wagers   domain.WagerStore
	Ledger   domain.Ledger

	// Redis
	Redis       *redis.Client
	QuoteCache  domain.QuoteCache
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Contest data provider
	Riot *riot.Client

	// Blob cold storage; nil when no bucket is configured.
	Archiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Postgres = pgClient
	deps.Users = postgres.NewUserStore(pool)
	deps.Matches = postgres.NewMatchStore(pool)
	deps.Markets = postgres.NewMarketStore(pool)
	deps.Wagers = postgres.NewWagerStore(pool)
	deps.Ledger = postgres.NewLedger(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.Redis = redisClient
	deps.QuoteCache = redis.NewQuoteCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Riot client ---
	deps.Riot = riot.NewClient(
		cfg.Riot.PlatformHost,
		cfg.Riot.RegionalHost,
		cfg.Riot.ApiKey,
		cfg.Riot.Timeout.Duration,
		deps.RateLimiter,
	)

	// --- S3 cold storage (optional) ---
	if cfg.S3.Bucket != "" {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
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
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		writer := s3blob.NewWriter(s3Client)
		deps.Archiver = s3blob.NewArchiver(writer, deps.Matches, deps.Wagers)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
