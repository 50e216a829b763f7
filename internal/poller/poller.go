package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/seedlabs/relay-listener/internal/model"
)

// Source is the handle ID recorded on backfilled messages.
const Source = "rest"

// HistorySource fetches a channel's recent messages. *api.Client satisfies it.
type HistorySource interface {
	GetMessages(ctx context.Context, channel string, minutes int) ([]model.HistoryItem, error)
}

// HistoryHandler receives fetched items and reports how many it queued.
type HistoryHandler interface {
	ArchiveHistory(source string, items []model.HistoryItem) int
}

// HistoryHandlerFunc is a function adapter for HistoryHandler.
type HistoryHandlerFunc func(source string, items []model.HistoryItem) int

func (f HistoryHandlerFunc) ArchiveHistory(source string, items []model.HistoryItem) int {
	return f(source, items)
}

// Config holds poller configuration.
type Config struct {
	Channel  string        // Channel to backfill
	Interval time.Duration // Poll interval
	Minutes  int           // Look-back window per poll
	Timeout  time.Duration // Per-request timeout (default: 10s)
}

// Stats counts poll outcomes.
type Stats struct {
	Polls   int64
	Fetched int64 // Items returned by the relay
	Queued  int64 // Items handed to the archive
	Errors  int64

	LastPollAt time.Time
	LastError  string // Empty after a successful poll
}

// Poller periodically backfills channel history via the REST API.
type Poller struct {
	cfg     Config
	source  HistorySource
	handler HistoryHandler
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	stats Stats
}

// New creates a new Poller.
func New(cfg Config, source HistorySource, handler HistoryHandler, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Poller{
		cfg:     cfg,
		source:  source,
		handler: handler,
		logger:  logger,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("backfill poller started",
		"channel", p.cfg.Channel,
		"interval", p.cfg.Interval,
		"minutes", p.cfg.Minutes,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("backfill poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns current statistics.
func (p *Poller) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll fetches one window of history and hands it to the archive.
func (p *Poller) poll() {
	start := time.Now()

	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Timeout)
	defer cancel()

	items, err := p.source.GetMessages(ctx, p.cfg.Channel, p.cfg.Minutes)
	if err != nil {
		p.mu.Lock()
		p.stats.Polls++
		p.stats.Errors++
		p.stats.LastPollAt = start
		p.stats.LastError = err.Error()
		p.mu.Unlock()

		if p.ctx.Err() == nil {
			p.logger.Warn("failed to backfill history",
				"channel", p.cfg.Channel,
				"err", err,
			)
		}
		return
	}

	queued := 0
	if p.handler != nil {
		queued = p.handler.ArchiveHistory(Source, items)
	}

	p.mu.Lock()
	p.stats.Polls++
	p.stats.Fetched += int64(len(items))
	p.stats.Queued += int64(queued)
	p.stats.LastPollAt = start
	p.stats.LastError = ""
	p.mu.Unlock()

	p.logger.Debug("backfill cycle complete",
		"channel", p.cfg.Channel,
		"fetched", len(items),
		"queued", queued,
		"duration", time.Since(start),
	)
}
