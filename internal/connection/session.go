package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// session is the state shared by both transports' handles: one gorilla
// connection, its write lock, and the event sink back to the manager.
type session struct {
	id     string
	cfg    ClientConfig
	logger *slog.Logger

	events chan<- Event
	parent context.Context // Outlives the session; bounds emits

	ctx    context.Context // Cancelled by Close to abort an in-flight dial
	cancel context.CancelFunc
	done   chan struct{}

	// Write serialization
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	conn       *websocket.Conn
	connected  bool
	closed     bool
	lastPingAt time.Time
}

func newSession(ctx context.Context, cfg ClientConfig, logger *slog.Logger, events chan<- Event) *session {
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.NewString()
	sctx, cancel := context.WithCancel(ctx)

	return &session{
		id:     id,
		cfg:    cfg,
		logger: logger.With("handle_id", id),
		events: events,
		parent: ctx,
		ctx:    sctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// ID returns the handle's unique identifier.
func (s *session) ID() string {
	return s.id
}

// Close tears the connection down. Safe to call more than once and from any
// goroutine; the close event itself is emitted by the read goroutine.
func (s *session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.connected = false
	conn := s.conn
	s.mu.Unlock()

	s.cancel()
	close(s.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}

	return nil
}

// attach records a freshly dialed connection. It returns false when Close
// won the race, in which case the caller must drop conn.
func (s *session) attach(conn *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	s.conn = conn
	s.connected = true
	s.lastPingAt = time.Now()
	return true
}

func (s *session) isClosed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.closed
}

func (s *session) touch() {
	s.mu.Lock()
	s.lastPingAt = time.Now()
	s.mu.Unlock()
}

func (s *session) lastPing() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastPingAt
}

// send writes one text frame under the write deadline.
func (s *session) send(data []byte) error {
	s.mu.RLock()
	if !s.connected {
		s.mu.RUnlock()
		return ErrNotConnected
	}
	conn := s.conn
	s.mu.RUnlock()

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.cfg.WriteTimeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// emit delivers an event to the manager unless it has shut down.
func (s *session) emit(ev Event) {
	ev.HandleID = s.id
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	select {
	case s.events <- ev:
	case <-s.parent.Done():
	}
}

// fail reports err unless the handle was closed locally, in which case the
// error is a consequence of Close and not worth surfacing.
func (s *session) fail(err error) {
	if s.isClosed() {
		s.logger.Debug("error after close", "error", err)
		return
	}
	s.emit(Event{Type: EventError, Err: err})
}

// finish releases the connection and emits the handle's single close event.
// Only the goroutine that owns the read loop calls it, once, on exit.
func (s *session) finish() {
	s.Close()
	s.emit(Event{Type: EventClose})
}
