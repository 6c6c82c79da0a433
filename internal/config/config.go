// Package config defines the top-level configuration for the riftbet backend
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by RIFTBET_* environment variables.
type Config struct {
	Riot     RiotConfig     `toml:"riot"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Book     BookConfig     `toml:"book"`
	Poller   PollerConfig   `toml:"poller"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// RiotConfig holds Riot API endpoints and credentials.
type RiotConfig struct {
	ApiKey string `toml:"api_key"`
	// PlatformHost serves platform-routed endpoints (spectator), e.g.
	// "https://euw1.api.riotgames.com".
	PlatformHost string `toml:"platform_host"`
	// RegionalHost serves regionally-routed endpoints (account, match), e.g.
	// "https://europe.api.riotgames.com".
	RegionalHost string   `toml:"regional_host"`
	Timeout      duration `toml:"timeout"`
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
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the cold-storage
// archiver. Leave the bucket empty to disable archival.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// BookConfig holds wagering-book parameters.
type BookConfig struct {
	// StartingBalance is credited to every new account.
	StartingBalance float64 `toml:"starting_balance"`
	// MaxStake caps a single wager; zero means uncapped.
	MaxStake float64 `toml:"max_stake"`
	// DailyReward is the amount granted by the daily claim.
	DailyReward float64 `toml:"daily_reward"`
	// LeaderboardMinWagers is the minimum wager count for a leaderboard row.
	LeaderboardMinWagers int `toml:"leaderboard_min_wagers"`
}

// PollerConfig holds match-discovery and settlement parameters.
type PollerConfig struct {
	// Interval between discovery cycles.
	Interval duration `toml:"interval"`
	// GracePeriod a match must stay absent from the provider before a
	// settlement attempt is made.
	GracePeriod duration `toml:"grace_period"`
	// Concurrency bounds parallel provider lookups within one cycle.
	Concurrency int `toml:"concurrency"`
	// SettleLockTTL is the distributed-lock TTL held during one settlement
	// attempt.
	SettleLockTTL duration `toml:"settle_lock_ttl"`
	// ArchiveRetentionDays is how long settled history stays in the primary
	// store before the archiver exports it.
	ArchiveRetentionDays int `toml:"archive_retention_days"`
	// ArchiveInterval is the period between archive sweeps.
	ArchiveInterval duration `toml:"archive_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// AdminKey guards privileged endpoints (market close). Empty disables
	// them.
	AdminKey string `toml:"admin_key"`
	// RateLimit caps API requests per client IP per RateWindow. Zero
	// disables rate limiting.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Riot: RiotConfig{
			PlatformHost: "https://euw1.api.riotgames.com",
			RegionalHost: "https://europe.api.riotgames.com",
			Timeout:      duration{10 * time.Second},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "riftbet",
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
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Book: BookConfig{
			StartingBalance:      100,
			MaxStake:             0,
			DailyReward:          10,
			LeaderboardMinWagers: 5,
		},
		Poller: PollerConfig{
			Interval:             duration{30 * time.Second},
			GracePeriod:          duration{2 * time.Minute},
			Concurrency:          8,
			SettleLockTTL:        duration{time.Minute},
			ArchiveRetentionDays: 30,
			ArchiveInterval:      duration{24 * time.Hour},
		},
		Server: ServerConfig{
			Port:       8080,
			RateLimit:  120,
			RateWindow: duration{time.Minute},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

var validModes = map[string]bool{
	"serve": true,
	"poll":  true,
	"full":  true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks the configuration for consistency and returns an error
// listing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, poll, full)", c.Mode))
	}

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Riot — required whenever the poller runs.
	if c.Mode == "poll" || c.Mode == "full" {
		if c.Riot.ApiKey == "" {
			errs = append(errs, "riot: api_key is required for mode "+c.Mode)
		}
		if c.Riot.PlatformHost == "" {
			errs = append(errs, "riot: platform_host must not be empty")
		}
		if c.Riot.RegionalHost == "" {
			errs = append(errs, "riot: regional_host must not be empty")
		}
	}
	if c.Riot.Timeout.Duration <= 0 {
		errs = append(errs, "riot: timeout must be positive")
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port %d out of range", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// Book
	if c.Book.StartingBalance < 0 {
		errs = append(errs, "book: starting_balance must not be negative")
	}
	if c.Book.MaxStake < 0 {
		errs = append(errs, "book: max_stake must not be negative")
	}
	if c.Book.DailyReward < 0 {
		errs = append(errs, "book: daily_reward must not be negative")
	}

	// Poller
	if c.Poller.Interval.Duration <= 0 {
		errs = append(errs, "poller: interval must be positive")
	}
	if c.Poller.GracePeriod.Duration <= 0 {
		errs = append(errs, "poller: grace_period must be positive")
	}
	if c.Poller.Concurrency <= 0 {
		errs = append(errs, "poller: concurrency must be positive")
	}

	// Server
	if c.Mode == "serve" || c.Mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port %d out of range", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
