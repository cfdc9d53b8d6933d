// Package replay records live book feeds into archive segments and rebuilds
// books from them for backtesting.
package replay

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/bookengine/internal/domain"
)

const archiveContentType = "application/x-ndjson"

// RecorderConfig controls segment sizing and placement.
type RecorderConfig struct {
	// PathPrefix is the object-storage key prefix for archive segments.
	PathPrefix string

	// SegmentRecords is the number of records buffered before a segment is
	// flushed to blob storage.
	SegmentRecords int
}

// Recorder buffers live feed records into an in-memory JSON-lines segment and
// flushes full segments to object storage. Records are written in arrival
// order, so a segment is a snapshot followed by the diffs and trades that
// came after it, ready for Replayer.
type Recorder struct {
	writer domain.BlobWriter
	cfg    RecorderConfig
	logger *slog.Logger

	mu    sync.Mutex
	buf   bytes.Buffer
	count int
}

// NewRecorder creates a Recorder flushing segments through the given writer.
func NewRecorder(writer domain.BlobWriter, cfg RecorderConfig, logger *slog.Logger) *Recorder {
	if cfg.SegmentRecords <= 0 {
		cfg.SegmentRecords = 5000
	}
	if cfg.PathPrefix == "" {
		cfg.PathPrefix = "archives"
	}
	return &Recorder{
		writer: writer,
		cfg:    cfg,
		logger: logger.With(slog.String("component", "recorder")),
	}
}

// Record appends one snapshot, diff, or trade record to the current segment,
// flushing it when full.
func (r *Recorder) Record(ctx context.Context, rec any) error {
	line, err := domain.WrapRecord(rec)
	if err != nil {
		return fmt.Errorf("replay: record: %w", err)
	}

	r.mu.Lock()
	r.buf.Write(line)
	r.buf.WriteByte('\n')
	r.count++
	full := r.count >= r.cfg.SegmentRecords
	var segment []byte
	var n int
	if full {
		segment, n = r.takeSegmentLocked()
	}
	r.mu.Unlock()

	if full {
		return r.flush(ctx, segment, n)
	}
	return nil
}

// Flush uploads any buffered records as a (possibly short) segment. Called on
// shutdown so a partial segment is not lost.
func (r *Recorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	segment, n := r.takeSegmentLocked()
	r.mu.Unlock()

	if n == 0 {
		return nil
	}
	return r.flush(ctx, segment, n)
}

// takeSegmentLocked detaches the current buffer contents and resets the
// segment state. Caller must hold r.mu.
func (r *Recorder) takeSegmentLocked() ([]byte, int) {
	if r.count == 0 {
		return nil, 0
	}
	segment := make([]byte, r.buf.Len())
	copy(segment, r.buf.Bytes())
	n := r.count
	r.buf.Reset()
	r.count = 0
	return segment, n
}

func (r *Recorder) flush(ctx context.Context, segment []byte, records int) error {
	path := r.segmentPath(time.Now().UTC())
	if err := r.writer.Put(ctx, path, bytes.NewReader(segment), archiveContentType); err != nil {
		return fmt.Errorf("replay: flush segment %s: %w", path, err)
	}

	r.logger.Info("archive segment flushed",
		slog.String("path", path),
		slog.Int("records", records),
		slog.Int("bytes", len(segment)),
	)
	return nil
}

func (r *Recorder) segmentPath(now time.Time) string {
	return fmt.Sprintf("%s/%s/%d.jsonl", r.cfg.PathPrefix, now.Format("2006-01-02"), now.UnixNano())
}
