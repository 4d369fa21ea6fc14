package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/meridianhq/riskwatch/internal/domain"
)

// archiveBatchLimit caps the number of history rows pulled per archive run.
const archiveBatchLimit = 10000

// BlobWriter is the upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver periodically snapshots the history tables to JSONL files in
// object storage. The primary store keeps the authoritative copy; archives
// exist for offline analysis and retention beyond the database.
type Archiver struct {
	writer  BlobWriter
	history domain.HistoryStore
	logger  *slog.Logger
	now     func() time.Time
}

// NewArchiver creates a new Archiver reading from history and writing
// through writer.
func NewArchiver(writer BlobWriter, history domain.HistoryStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:  writer,
		history: history,
		logger:  logger.With(slog.String("component", "archiver")),
		now:     time.Now,
	}
}

// Run performs one archive pass over both history tables. Failures on one
// table do not block the other.
func (a *Archiver) Run(ctx context.Context) {
	if n, err := a.archiveClosedPositions(ctx); err != nil {
		a.logger.Error("closed position archive failed", slog.String("error", err.Error()))
	} else if n > 0 {
		a.logger.Info("closed positions archived", slog.Int("count", n))
	}

	if n, err := a.archiveAlerts(ctx); err != nil {
		a.logger.Error("alert archive failed", slog.String("error", err.Error()))
	} else if n > 0 {
		a.logger.Info("alerts archived", slog.Int("count", n))
	}
}

func (a *Archiver) archiveClosedPositions(ctx context.Context) (int, error) {
	positions, err := a.history.ListClosedPositions(ctx, archiveBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive closed positions query: %w", err)
	}
	if len(positions) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(positions)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive closed positions marshal: %w", err)
	}

	path := archivePath("closed_positions", a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive closed positions upload: %w", err)
	}
	return len(positions), nil
}

func (a *Archiver) archiveAlerts(ctx context.Context) (int, error) {
	alerts, err := a.history.ListAlerts(ctx, archiveBatchLimit)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts query: %w", err)
	}
	if len(alerts) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(alerts)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts marshal: %w", err)
	}

	path := archivePath("alerts", a.now())
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive alerts upload: %w", err)
	}
	return len(alerts), nil
}

// archivePath builds the object key for an archive file, partitioned by day:
//
//	archive/closed_positions/2026-08-29.jsonl
//	archive/alerts/2026-08-29.jsonl
func archivePath(kind string, at time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, at.UTC().Format("2006-01-02"))
}

// marshalJSONL serializes a slice of records as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
