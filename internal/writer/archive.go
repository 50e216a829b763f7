package writer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/seedlabs/relay-listener/internal/metrics"
	"github.com/seedlabs/relay-listener/internal/model"
	"github.com/seedlabs/relay-listener/internal/router"
)

// ArchiveWriter consumes RelayMessages from the router buffer and writes
// them to the relay_messages table.
type ArchiveWriter struct {
	cfg     WriterConfig
	logger  *slog.Logger
	metrics *metrics.Metrics

	// Input from Message Router
	input *router.GrowableBuffer[model.RelayMessage]

	// Database
	db DB

	// Batching (consume loop only, until Stop)
	batch []archiveRow

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	statsMu sync.Mutex
	stats   WriterMetrics
}

// NewArchiveWriter creates a new ArchiveWriter.
func NewArchiveWriter(
	cfg WriterConfig,
	input *router.GrowableBuffer[model.RelayMessage],
	db DB,
	logger *slog.Logger,
	m *metrics.Metrics,
) *ArchiveWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Discard()
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	return &ArchiveWriter{
		cfg:     cfg,
		input:   input,
		db:      db,
		logger:  logger,
		metrics: m,
		batch:   make([]archiveRow, 0, cfg.BatchSize),
	}
}

// Start begins consuming messages and writing to the database.
func (w *ArchiveWriter) Start(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go w.consumeLoop()

	w.logger.Info("archive writer started",
		"batch_size", w.cfg.BatchSize,
		"flush_interval", w.cfg.FlushInterval,
	)
	return nil
}

// Stop shuts the writer down and flushes whatever is still buffered.
func (w *ArchiveWriter) Stop(ctx context.Context) error {
	w.logger.Info("stopping archive writer")

	if w.cancel != nil {
		w.cancel()
	}

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warn("archive writer stop timed out")
		return ctx.Err()
	}

	// Final flush on a fresh deadline; the run context is already cancelled.
	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.FlushTimeout)
	defer cancel()

	for _, msg := range w.input.DrainTo(0) {
		w.batch = append(w.batch, w.transform(msg))
	}
	for len(w.batch) > 0 {
		n := min(len(w.batch), w.cfg.BatchSize)
		rows := w.batch[:n]
		w.batch = w.batch[n:]
		w.flushRows(flushCtx, rows)
	}

	w.logger.Info("archive writer stopped")
	return nil
}

// Stats returns current metrics.
func (w *ArchiveWriter) Stats() WriterMetrics {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}

// consumeLoop drains the input buffer, flushing on size and on interval.
func (w *ArchiveWriter) consumeLoop() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			return
		case <-ticker.C:
			w.flush(w.ctx)
		case <-w.input.Ready():
			for {
				msgs := w.input.DrainTo(w.cfg.BatchSize - len(w.batch))
				if len(msgs) == 0 {
					break
				}
				for _, msg := range msgs {
					w.batch = append(w.batch, w.transform(msg))
				}
				if len(w.batch) >= w.cfg.BatchSize {
					w.flush(w.ctx)
				}
			}
		}
	}
}

// transform converts a RelayMessage to an archiveRow.
func (w *ArchiveWriter) transform(msg model.RelayMessage) archiveRow {
	var sender any
	if len(msg.From) > 0 {
		sender = string(msg.From)
	}
	return archiveRow{
		MessageID:  msg.ID,
		Channel:    msg.Channel,
		Text:       msg.Text,
		Date:       msg.Date,
		Sender:     sender,
		Source:     string(msg.Source),
		HandleID:   msg.HandleID,
		ReceivedAt: msg.ReceivedAt,
	}
}

// flush writes the pending batch.
func (w *ArchiveWriter) flush(ctx context.Context) {
	if len(w.batch) == 0 {
		return
	}
	rows := w.batch
	w.batch = make([]archiveRow, 0, w.cfg.BatchSize)
	w.flushRows(ctx, rows)
}

func (w *ArchiveWriter) flushRows(ctx context.Context, rows []archiveRow) {
	start := time.Now()

	conflicts, err := w.batchInsert(ctx, rows)
	if err != nil {
		w.logger.Error("batch insert failed", "error", err, "count", len(rows))
		w.statsMu.Lock()
		w.stats.Errors++
		w.statsMu.Unlock()
		w.metrics.ArchiveErrors.Inc()
		return
	}

	inserted := len(rows) - conflicts

	w.statsMu.Lock()
	w.stats.Inserts += int64(inserted)
	w.stats.Conflicts += int64(conflicts)
	w.stats.Flushes++
	w.statsMu.Unlock()

	w.metrics.ArchiveInserts.Add(float64(inserted))
	w.metrics.ArchiveConflicts.Add(float64(conflicts))

	w.logger.Debug("flushed relay messages",
		"count", len(rows),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (w *ArchiveWriter) batchInsert(ctx context.Context, rows []archiveRow) (conflicts int, err error) {
	batch := &pgx.Batch{}
	for _, r := range rows {
		batch.Queue(insertSQL,
			r.MessageID, r.Channel, r.Text, r.Date, r.Sender, r.Source, r.HandleID, r.ReceivedAt,
		)
	}

	results := w.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
