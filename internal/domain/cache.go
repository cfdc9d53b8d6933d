package domain

import (
	"context"
	"io"
	"time"
)

// DepthSnapshot is a point-in-time copy of a book's levels, best-first,
// as mirrored to the cache layer for external consumers.
type DepthSnapshot struct {
	Venue       string
	TradingPair string
	Bids        []LevelRow
	Asks        []LevelRow
	BestBid     float64
	BestAsk     float64
	UpdateID    int64
	Timestamp   time.Time
}

// BookCache mirrors live book state for out-of-process consumers.
type BookCache interface {
	SetSnapshot(ctx context.Context, venue, pair string, snap DepthSnapshot) error
	GetSnapshot(ctx context.Context, venue, pair string) (DepthSnapshot, error)
	UpdateLevel(ctx context.Context, venue, pair string, side Side, price, amount float64) error
	GetBBO(ctx context.Context, venue, pair string) (bestBid, bestAsk float64, err error)
}

// StreamMessage represents a single entry from a durable stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub delivery of parsed feed records plus a capped
// durable stream used for the trade tape.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

// BlobInfo describes a stored archive object.
type BlobInfo struct {
	Path         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// BlobWriter uploads archive segments to object storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader retrieves archive segments from object storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]BlobInfo, error)
	Exists(ctx context.Context, path string) (bool, error)
}
