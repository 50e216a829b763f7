package router

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/seedlabs/relay-listener/internal/connection"
	"github.com/seedlabs/relay-listener/internal/metrics"
	"github.com/seedlabs/relay-listener/internal/model"
)

// Router logs inbound payloads by kind and feeds the archive buffer.
// It implements connection.MessageHandler.
type Router struct {
	cfg     Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	archive *GrowableBuffer[model.RelayMessage]

	mu    sync.RWMutex
	stats Stats
}

// Option configures a Router.
type Option func(*Router)

// WithArchive forwards archivable messages into buf.
func WithArchive(buf *GrowableBuffer[model.RelayMessage]) Option {
	return func(r *Router) {
		r.archive = buf
	}
}

// WithMetrics records message counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Router) {
		if m != nil {
			r.metrics = m
		}
	}
}

// New creates a Message Router.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	r := &Router{
		cfg:     cfg,
		logger:  logger,
		metrics: metrics.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var _ connection.MessageHandler = (*Router)(nil)

// HandleMessage classifies and logs one payload. It never fails; parse
// errors are logged and counted.
func (r *Router) HandleMessage(_ context.Context, in connection.Inbound) {
	r.mu.Lock()
	r.stats.MessagesReceived++
	r.mu.Unlock()

	msg, err := Classify(in)
	if err != nil {
		r.mu.Lock()
		r.stats.ParseErrors++
		r.mu.Unlock()
		r.metrics.ParseErrors.Inc()

		r.logger.Error("failed to parse message",
			"error", err,
			"handle_id", in.HandleID,
			"payload", string(in.Data),
		)
		return
	}

	r.metrics.MessagesReceived.WithLabelValues(string(msg.Kind)).Inc()

	switch msg.Kind {
	case KindHistory:
		r.mu.Lock()
		r.stats.HistoryBatches++
		r.mu.Unlock()

		r.logger.Info("old messages", "messages", msg.History)
		r.archiveHistory(in, msg)

	case KindNew:
		r.mu.Lock()
		r.stats.NewMessages++
		r.mu.Unlock()

		if msg.Text == "" && len(msg.Date) == 0 {
			// socket.io newMessage with a payload of another shape
			r.logger.Info("new message", "payload", msg.Payload)
			return
		}
		r.logger.Info("new message", "text", msg.Text, "date", msg.Date)

		rm := model.NewRelayMessage(r.cfg.Channel, msg.Text, msg.Date, model.SourceLive)
		rm.From = msg.From
		r.forward(in, rm)

	default:
		r.mu.Lock()
		r.stats.UnknownMessages++
		r.mu.Unlock()

		if msg.Event != "" {
			r.logger.Info("unknown message format", "event", msg.Event, "payload", msg.Payload)
			return
		}
		r.logger.Info("unknown message format", "payload", msg.Payload)
	}
}

// Stats returns current statistics.
func (r *Router) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

// archiveHistory forwards every history item that carries text.
func (r *Router) archiveHistory(in connection.Inbound, msg Message) {
	if r.archive == nil {
		return
	}

	var items []json.RawMessage
	if err := json.Unmarshal(msg.History, &items); err != nil {
		r.logger.Debug("history is not a list, not archived", "error", err)
		return
	}

	decoded := make([]model.HistoryItem, 0, len(items))
	for _, raw := range items {
		env, err := decodeEnvelope(raw)
		if err != nil {
			continue
		}
		decoded = append(decoded, model.HistoryItem{
			Text: model.DateString(env.Text),
			Date: env.Date,
			From: env.From,
		})
	}
	r.archiveItems(in, decoded)
}

// ArchiveHistory forwards history fetched outside the live connection,
// such as a REST backfill, and returns how many items were queued.
func (r *Router) ArchiveHistory(source string, items []model.HistoryItem) int {
	return r.archiveItems(connection.Inbound{HandleID: source, ReceivedAt: time.Now()}, items)
}

func (r *Router) archiveItems(in connection.Inbound, items []model.HistoryItem) int {
	if r.archive == nil {
		return 0
	}

	queued := 0
	for _, item := range items {
		if item.Text == "" {
			continue
		}
		rm := model.NewRelayMessage(r.cfg.Channel, item.Text, item.Date, model.SourceHistory)
		rm.From = item.From
		if r.forward(in, rm) {
			queued++
		}
	}
	return queued
}

func (r *Router) forward(in connection.Inbound, rm model.RelayMessage) bool {
	if r.archive == nil {
		return false
	}

	rm.HandleID = in.HandleID
	rm.ReceivedAt = in.ReceivedAt

	err := r.archive.Send(rm)
	switch {
	case err == nil:
		r.mu.Lock()
		r.stats.Archived++
		r.mu.Unlock()
		return true
	case errors.Is(err, ErrBufferFull):
		r.mu.Lock()
		r.stats.ArchiveDropped++
		r.mu.Unlock()
		r.metrics.ArchiveDropped.Inc()
		r.logger.Warn("archive buffer full, dropping message", "message_id", rm.ID)
	default:
		r.logger.Debug("archive closed, message not archived", "message_id", rm.ID)
	}
	return false
}
