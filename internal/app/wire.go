package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/bookengine/internal/blob/s3"
	"github.com/alanyoungcy/bookengine/internal/book"
	"github.com/alanyoungcy/bookengine/internal/cache/redis"
	"github.com/alanyoungcy/bookengine/internal/config"
	"github.com/alanyoungcy/bookengine/internal/domain"
	"github.com/alanyoungcy/bookengine/internal/events"
	"github.com/alanyoungcy/bookengine/internal/replay"
)

// Dependencies bundles everything the application modes need to operate. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Registry  *book.Registry
	Publisher *events.Publisher

	BookCache domain.BookCache
	SignalBus domain.SignalBus

	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Recorder   *replay.Recorder
}

// needsRedis returns true for modes that consume or serve live feeds.
func needsRedis(mode string) bool {
	switch mode {
	case "live", "serve":
		return true
	default:
		return false
	}
}

// needsS3 reports whether the archive layer is in play.
func needsS3(cfg *config.Config) bool {
	return cfg.Mode == "replay" || cfg.Recorder.Enabled
}

// venueOptions maps the configured venue list to book policies.
func venueOptions(venues []config.VenueConfig) map[string]book.VenueOptions {
	opts := make(map[string]book.VenueOptions, len(venues))
	for _, v := range venues {
		truncate := book.KeepBids
		if v.TruncatePolicy == "newer_wins" {
			truncate = book.NewerWins
		}
		opts[v.Name] = book.VenueOptions{
			Decentralized: v.Decentralized,
			Truncate:      truncate,
		}
	}
	return opts
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	deps.Publisher = events.NewPublisher(logger)
	deps.Registry = book.NewRegistry(venueOptions(cfg.Book.Venues), deps.Publisher)

	// --- Redis (live and serve modes) ---
	if needsRedis(cfg.Mode) {
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

		deps.BookCache = redis.NewBookCache(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 blob storage (replay mode and archive recording) ---
	if needsS3(cfg) {
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
	}

	if cfg.Recorder.Enabled && deps.BlobWriter != nil {
		deps.Recorder = replay.NewRecorder(deps.BlobWriter, replay.RecorderConfig{
			PathPrefix:     cfg.Recorder.PathPrefix,
			SegmentRecords: cfg.Recorder.SegmentRecords,
		}, logger)
	}

	return deps, cleanup, nil
}
