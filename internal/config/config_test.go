package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "batch"
	cfg.LogLevel = "verbose"
	cfg.Redis.Addr = ""
	cfg.Book.SnapshotDepth = 0
	cfg.Server.Port = 70000

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown mode "batch"`)
	assert.Contains(t, err.Error(), `unknown log_level "verbose"`)
	assert.Contains(t, err.Error(), "redis: addr must not be empty")
	assert.Contains(t, err.Error(), "book: snapshot_depth must be >= 1")
	assert.Contains(t, err.Error(), "server: port must be 1-65535")
}

func TestValidateVenuePolicies(t *testing.T) {
	cfg := Defaults()
	cfg.Book.Venues = []VenueConfig{
		{Name: "binance"},
		{Name: "binance"},
		{Name: "uniswap", Decentralized: true, TruncatePolicy: "oldest_wins"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate venue "binance"`)
	assert.Contains(t, err.Error(), `unknown truncate_policy "oldest_wins"`)
}

func TestValidateReplayMode(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "replay"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "replay: archive_path is required")

	cfg.Replay = ReplayConfig{
		ArchivePath: "archives/2026-01-01/1.jsonl",
		Venue:       "binance",
		TradingPair: "BTC-USDT",
	}
	require.NoError(t, cfg.Validate())
}

func TestValidateRecorderRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Recorder.Enabled = true
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3: bucket must not be empty")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "serve"
log_level = "debug"

[redis]
addr = "redis.internal:6380"

[book]
snapshot_depth = 25

[[book.venues]]
name = "uniswap"
decentralized = true
truncate_policy = "newer_wins"
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "redis.internal:6380", cfg.Redis.Addr)
	assert.Equal(t, 25, cfg.Book.SnapshotDepth)
	require.Len(t, cfg.Book.Venues, 1)
	assert.True(t, cfg.Book.Venues[0].Decentralized)
	assert.Equal(t, "newer_wins", cfg.Book.Venues[0].TruncatePolicy)

	// Untouched sections keep their defaults.
	assert.Equal(t, "books", cfg.Feed.RecordsChannel)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = \"live\"\n"), 0o644))

	t.Setenv("BOOKENGINE_REDIS_ADDR", "override:6379")
	t.Setenv("BOOKENGINE_SERVER_PORT", "9100")
	t.Setenv("BOOKENGINE_RECORDER_ENABLED", "true")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "override:6379", cfg.Redis.Addr)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.True(t, cfg.Recorder.Enabled)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
