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
// built-in defaults, applies RIFTBET_* environment variable overrides, and
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

// applyEnvOverrides reads well-known RIFTBET_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Riot ──
	setStr(&cfg.Riot.ApiKey, "RIFTBET_RIOT_API_KEY")
	setStr(&cfg.Riot.PlatformHost, "RIFTBET_RIOT_PLATFORM_HOST")
	setStr(&cfg.Riot.RegionalHost, "RIFTBET_RIOT_REGIONAL_HOST")
	setDuration(&cfg.Riot.Timeout, "RIFTBET_RIOT_TIMEOUT")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "RIFTBET_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "RIFTBET_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "RIFTBET_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "RIFTBET_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "RIFTBET_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "RIFTBET_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "RIFTBET_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "RIFTBET_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "RIFTBET_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "RIFTBET_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "RIFTBET_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "RIFTBET_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "RIFTBET_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "RIFTBET_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "RIFTBET_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "RIFTBET_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "RIFTBET_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "RIFTBET_S3_REGION")
	setStr(&cfg.S3.Bucket, "RIFTBET_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "RIFTBET_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "RIFTBET_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "RIFTBET_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "RIFTBET_S3_FORCE_PATH_STYLE")

	// ── Book ──
	setFloat64(&cfg.Book.StartingBalance, "RIFTBET_BOOK_STARTING_BALANCE")
	setFloat64(&cfg.Book.MaxStake, "RIFTBET_BOOK_MAX_STAKE")
	setFloat64(&cfg.Book.DailyReward, "RIFTBET_BOOK_DAILY_REWARD")
	setInt(&cfg.Book.LeaderboardMinWagers, "RIFTBET_BOOK_LEADERBOARD_MIN_WAGERS")

	// ── Poller ──
	setDuration(&cfg.Poller.Interval, "RIFTBET_POLLER_INTERVAL")
	setDuration(&cfg.Poller.GracePeriod, "RIFTBET_POLLER_GRACE_PERIOD")
	setInt(&cfg.Poller.Concurrency, "RIFTBET_POLLER_CONCURRENCY")
	setDuration(&cfg.Poller.SettleLockTTL, "RIFTBET_POLLER_SETTLE_LOCK_TTL")
	setInt(&cfg.Poller.ArchiveRetentionDays, "RIFTBET_POLLER_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Poller.ArchiveInterval, "RIFTBET_POLLER_ARCHIVE_INTERVAL")

	// ── Server ──
	setInt(&cfg.Server.Port, "RIFTBET_SERVER_PORT")
	setStr(&cfg.Server.AdminKey, "RIFTBET_SERVER_ADMIN_KEY")
	setInt(&cfg.Server.RateLimit, "RIFTBET_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "RIFTBET_SERVER_RATE_WINDOW")
	if v := os.Getenv("RIFTBET_SERVER_CORS_ORIGINS"); v != "" {
		cfg.Server.CORSOrigins = splitAndTrim(v)
	}

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "RIFTBET_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "RIFTBET_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "RIFTBET_NOTIFY_DISCORD_WEBHOOK_URL")
	if v := os.Getenv("RIFTBET_NOTIFY_EVENTS"); v != "" {
		cfg.Notify.Events = splitAndTrim(v)
	}

	// ── Top level ──
	setStr(&cfg.Mode, "RIFTBET_MODE")
	setStr(&cfg.LogLevel, "RIFTBET_LOG_LEVEL")
}

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

func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
