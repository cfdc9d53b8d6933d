// Package config defines the top-level configuration for the book engine and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by BOOKENGINE_* environment variables.
type Config struct {
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Book     BookConfig     `toml:"book"`
	Feed     FeedConfig     `toml:"feed"`
	Recorder RecorderConfig `toml:"recorder"`
	Replay   ReplayConfig   `toml:"replay"`
	Server   ServerConfig   `toml:"server"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
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

// S3Config holds S3-compatible object storage parameters for book archives.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// VenueConfig declares one tracked venue and its overlap policy.
type VenueConfig struct {
	Name string `toml:"name"`

	// Decentralized switches the venue's books to DEX overlap handling:
	// crossing tolerated on diffs, truncated on snapshots.
	Decentralized bool `toml:"decentralized"`

	// TruncatePolicy selects the snapshot-time truncation winner for
	// decentralized venues: "keep_bids" or "newer_wins".
	TruncatePolicy string `toml:"truncate_policy"`
}

// BookConfig holds book engine parameters.
type BookConfig struct {
	// SnapshotDepth caps the levels per side mirrored into the cache.
	SnapshotDepth int `toml:"snapshot_depth"`

	Venues []VenueConfig `toml:"venues"`
}

// FeedConfig holds the signal-bus channels the feeder consumes and produces.
type FeedConfig struct {
	// RecordsChannel carries parsed snapshot/diff/trade records from the
	// exchange adapters.
	RecordsChannel string `toml:"records_channel"`

	// TopChannel receives best bid/ask updates after every apply.
	TopChannel string `toml:"top_channel"`

	// TradeStream is the capped stream the trade tape is appended to.
	TradeStream string `toml:"trade_stream"`
}

// RecorderConfig holds archive-recording parameters.
type RecorderConfig struct {
	Enabled bool `toml:"enabled"`

	// PathPrefix is the object-storage key prefix for archive segments.
	PathPrefix string `toml:"path_prefix"`

	// SegmentRecords is the number of records per flushed archive segment.
	SegmentRecords int `toml:"segment_records"`
}

// ReplayConfig holds parameters for replay mode.
type ReplayConfig struct {
	// ArchivePath is the object-storage key of the archive segment to replay.
	ArchivePath string `toml:"archive_path"`
	Venue       string `toml:"venue"`
	TradingPair string `toml:"trading_pair"`
}

// ServerConfig holds HTTP/WebSocket server parameters.
type ServerConfig struct {
	Enabled bool `toml:"enabled"`
	Port    int  `toml:"port"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "bookengine-archives",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Book: BookConfig{
			SnapshotDepth: 50,
		},
		Feed: FeedConfig{
			RecordsChannel: "books",
			TopChannel:     "book_tops",
			TradeStream:    "trade_tape",
		},
		Recorder: RecorderConfig{
			Enabled:        false,
			PathPrefix:     "archives",
			SegmentRecords: 5000,
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Mode:     "live",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"live":   true,
	"replay": true,
	"serve":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validTruncatePolicies enumerates the accepted VenueConfig.TruncatePolicy values.
var validTruncatePolicies = map[string]bool{
	"":           true, // default, keep_bids
	"keep_bids":  true,
	"newer_wins": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: live, replay, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3 — only required when the archive layer is in play.
	needsS3 := c.Mode == "replay" || c.Recorder.Enabled
	if needsS3 {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Book
	if c.Book.SnapshotDepth < 1 {
		errs = append(errs, "book: snapshot_depth must be >= 1")
	}
	seen := map[string]bool{}
	for _, v := range c.Book.Venues {
		if v.Name == "" {
			errs = append(errs, "book: venue name must not be empty")
			continue
		}
		if seen[v.Name] {
			errs = append(errs, fmt.Sprintf("book: duplicate venue %q", v.Name))
		}
		seen[v.Name] = true
		if !validTruncatePolicies[v.TruncatePolicy] {
			errs = append(errs, fmt.Sprintf("book: venue %q: unknown truncate_policy %q (valid: keep_bids, newer_wins)", v.Name, v.TruncatePolicy))
		}
	}

	// Feed
	if c.Feed.RecordsChannel == "" {
		errs = append(errs, "feed: records_channel must not be empty")
	}

	// Recorder
	if c.Recorder.Enabled {
		if c.Recorder.PathPrefix == "" {
			errs = append(errs, "recorder: path_prefix must not be empty when enabled")
		}
		if c.Recorder.SegmentRecords < 1 {
			errs = append(errs, "recorder: segment_records must be >= 1")
		}
	}

	// Replay
	if c.Mode == "replay" {
		if c.Replay.ArchivePath == "" {
			errs = append(errs, "replay: archive_path is required for replay mode")
		}
		if c.Replay.Venue == "" || c.Replay.TradingPair == "" {
			errs = append(errs, "replay: venue and trading_pair are required for replay mode")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
