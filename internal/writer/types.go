package writer

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is the subset of *pgxpool.Pool the writer needs.
type DB interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// WriterConfig holds configuration for the archive writer.
type WriterConfig struct {
	BatchSize     int           // Rows per insert batch
	FlushInterval time.Duration // Max time a row waits before flushing
	FlushTimeout  time.Duration // Deadline for the final flush on Stop
}

// DefaultWriterConfig returns default configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		BatchSize:     100,
		FlushInterval: 5 * time.Second,
		FlushTimeout:  10 * time.Second,
	}
}

// WriterMetrics tracks writer statistics.
type WriterMetrics struct {
	Inserts   int64 // Rows written
	Conflicts int64 // Rows skipped as duplicates
	Errors    int64 // Failed batches
	Flushes   int64 // Successful batches
}

// archiveRow is one relay_messages row.
type archiveRow struct {
	MessageID  [16]byte
	Channel    string
	Text       string
	Date       string
	Sender     any // JSON text or nil
	Source     string
	HandleID   string
	ReceivedAt time.Time
}
