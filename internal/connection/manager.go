package connection

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/seedlabs/relay-listener/internal/metrics"
)

// Manager is the Connection Lifecycle Manager. It keeps at most one handle
// to the relay alive and reconnects after every close.
type Manager struct {
	cfg       ManagerConfig
	policy    backoff.BackOff
	transport Transport
	handler   MessageHandler
	logger    *slog.Logger
	metrics   *metrics.Metrics

	running atomic.Bool

	mu    sync.RWMutex
	stats ManagerStats
}

// Option configures a Manager.
type Option func(*Manager)

// WithMetrics records lifecycle counters on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) {
		if m != nil {
			mgr.metrics = m
		}
	}
}

// WithRetryPolicy replaces the policy built from ManagerConfig.Retry.
func WithRetryPolicy(b backoff.BackOff) Option {
	return func(mgr *Manager) {
		if b != nil {
			mgr.policy = b
		}
	}
}

// NewManager creates a lifecycle manager that dials through transport and
// hands every inbound payload to handler.
func NewManager(cfg ManagerConfig, transport Transport, handler MessageHandler, logger *slog.Logger, opts ...Option) (*Manager, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EventBufferSize <= 0 {
		cfg.EventBufferSize = DefaultManagerConfig().EventBufferSize
	}
	if handler == nil {
		handler = MessageHandlerFunc(func(context.Context, Inbound) {})
	}

	m := &Manager{
		cfg:       cfg,
		transport: transport,
		handler:   handler,
		logger:    logger,
		metrics:   metrics.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}

	if m.policy == nil {
		policy, err := NewRetryPolicy(cfg.Retry)
		if err != nil {
			return nil, err
		}
		m.policy = policy
	}

	return m, nil
}

// Run connects and then reacts to lifecycle events until ctx is cancelled
// or a bounded retry policy gives up. Both end with a nil error.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	events := make(chan Event, m.cfg.EventBufferSize)

	var (
		current Handle
		timer   *time.Timer
		retry   <-chan time.Time
	)

	defer func() {
		if timer != nil {
			timer.Stop()
		}
		if current != nil {
			current.Close()
		}
		m.setState(StateClosed)
		m.metrics.ConnectionUp.Set(0)
	}()

	current = m.connect(runCtx, events)

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("connection manager stopping")
			return nil

		case <-retry:
			timer, retry = nil, nil
			current = m.connect(runCtx, events)

		case ev := <-events:
			if current == nil || ev.HandleID != current.ID() {
				m.logger.Debug("ignoring event from replaced handle",
					"handle_id", ev.HandleID,
					"event", ev.Type.String(),
				)
				continue
			}

			switch ev.Type {
			case EventOpen:
				m.onOpen(current, ev)
			case EventMessage:
				m.onMessage(runCtx, ev)
			case EventError:
				m.onError(current, ev)
			case EventClose:
				current = nil
				delay := m.onClose(ev)
				if delay == backoff.Stop {
					m.logger.Warn("reconnect attempts exhausted, giving up",
						"policy", m.cfg.Retry.Policy,
						"max_attempts", m.cfg.Retry.MaxAttempts,
					)
					m.mu.Lock()
					m.stats.Exhausted = true
					m.mu.Unlock()
					return nil
				}
				timer = time.NewTimer(delay)
				retry = timer.C
			}
		}
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats.State
}

// Stats returns a snapshot of lifecycle counters.
func (m *Manager) Stats() ManagerStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}

// connect starts a new attempt and makes its handle current.
func (m *Manager) connect(ctx context.Context, events chan<- Event) Handle {
	h := m.transport.Dial(ctx, events)

	m.mu.Lock()
	m.stats.Attempts++
	m.stats.State = StateConnecting
	m.stats.HandleID = h.ID()
	attempt := m.stats.Attempts
	m.mu.Unlock()

	m.metrics.ConnectAttempts.Inc()
	m.logger.Info("connecting",
		"transport", m.transport.Name(),
		"handle_id", h.ID(),
		"attempt", attempt,
	)

	return h
}

func (m *Manager) onOpen(h Handle, ev Event) {
	m.policy.Reset()

	m.mu.Lock()
	m.stats.State = StateOpen
	m.stats.Opens++
	m.stats.LastOpenAt = ev.At
	m.mu.Unlock()

	m.metrics.ConnectionOpens.Inc()
	m.metrics.ConnectionUp.Set(1)
	m.logger.Info("connected", "handle_id", h.ID())

	if err := h.RequestHistory(); err != nil {
		m.logger.Warn("history request failed", "handle_id", h.ID(), "error", err)
		return
	}

	m.mu.Lock()
	m.stats.HistoryRequests++
	m.mu.Unlock()
	m.metrics.HistoryRequests.Inc()
}

func (m *Manager) onMessage(ctx context.Context, ev Event) {
	m.mu.Lock()
	m.stats.Messages++
	m.mu.Unlock()

	m.handler.HandleMessage(ctx, Inbound{
		HandleID:   ev.HandleID,
		Name:       ev.Name,
		Data:       ev.Data,
		ReceivedAt: ev.At,
	})
}

// onError forces a close; the close event drives the reconnect.
func (m *Manager) onError(h Handle, ev Event) {
	m.mu.Lock()
	m.stats.Errors++
	m.mu.Unlock()

	m.metrics.ConnectionErrors.Inc()
	m.logger.Warn("connection error", "handle_id", h.ID(), "error", ev.Err)

	if err := h.Close(); err != nil {
		m.logger.Debug("close after error", "handle_id", h.ID(), "error", err)
	}
}

// onClose records the close and returns the reconnect delay, or
// backoff.Stop when the policy has given up.
func (m *Manager) onClose(ev Event) time.Duration {
	delay := m.policy.NextBackOff()

	m.mu.Lock()
	m.stats.State = StateClosed
	m.stats.Closes++
	m.stats.LastCloseAt = ev.At
	if delay != backoff.Stop {
		m.stats.ReconnectsScheduled++
	}
	m.mu.Unlock()

	m.metrics.ConnectionCloses.Inc()
	m.metrics.ConnectionUp.Set(0)

	if delay != backoff.Stop {
		m.metrics.ReconnectsScheduled.Inc()
		m.logger.Info("connection closed, reconnecting",
			"handle_id", ev.HandleID,
			"delay", delay,
		)
	}
	return delay
}

func (m *Manager) setState(s State) {
	m.mu.Lock()
	m.stats.State = s
	m.mu.Unlock()
}
