package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies BOOKENGINE_* environment variable overrides, and
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

// applyEnvOverrides reads well-known BOOKENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Redis ──
	setStr(&cfg.Redis.Addr, "BOOKENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "BOOKENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "BOOKENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "BOOKENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "BOOKENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "BOOKENGINE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "BOOKENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "BOOKENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "BOOKENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "BOOKENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "BOOKENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "BOOKENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "BOOKENGINE_S3_FORCE_PATH_STYLE")

	// ── Book ──
	setInt(&cfg.Book.SnapshotDepth, "BOOKENGINE_BOOK_SNAPSHOT_DEPTH")

	// ── Feed ──
	setStr(&cfg.Feed.RecordsChannel, "BOOKENGINE_FEED_RECORDS_CHANNEL")
	setStr(&cfg.Feed.TopChannel, "BOOKENGINE_FEED_TOP_CHANNEL")
	setStr(&cfg.Feed.TradeStream, "BOOKENGINE_FEED_TRADE_STREAM")

	// ── Recorder ──
	setBool(&cfg.Recorder.Enabled, "BOOKENGINE_RECORDER_ENABLED")
	setStr(&cfg.Recorder.PathPrefix, "BOOKENGINE_RECORDER_PATH_PREFIX")
	setInt(&cfg.Recorder.SegmentRecords, "BOOKENGINE_RECORDER_SEGMENT_RECORDS")

	// ── Replay ──
	setStr(&cfg.Replay.ArchivePath, "BOOKENGINE_REPLAY_ARCHIVE_PATH")
	setStr(&cfg.Replay.Venue, "BOOKENGINE_REPLAY_VENUE")
	setStr(&cfg.Replay.TradingPair, "BOOKENGINE_REPLAY_TRADING_PAIR")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "BOOKENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "BOOKENGINE_SERVER_PORT")

	// ── Top-level ──
	setStr(&cfg.Mode, "BOOKENGINE_MODE")
	setStr(&cfg.LogLevel, "BOOKENGINE_LOG_LEVEL")
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

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
