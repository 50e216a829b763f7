package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
)

// Transport opens connection handles to the relay.
type Transport interface {
	// Dial starts a connection attempt and returns its handle at once.
	// Establishment, inbound payloads, failures and the final close are
	// reported on events, tagged with the handle's ID.
	Dial(ctx context.Context, events chan<- Event) Handle

	// Name identifies the transport in logs.
	Name() string
}

// Handle is a single transport session.
type Handle interface {
	// ID returns the handle's unique identifier.
	ID() string

	// RequestHistory asks the relay for recent messages. Fire-and-forget.
	RequestHistory() error

	// Close tears the session down. The close event follows asynchronously.
	Close() error
}

// NewTransport returns the transport registered under kind.
func NewTransport(kind string, cfg ClientConfig, logger *slog.Logger) (Transport, error) {
	switch kind {
	case "", TransportWebSocket:
		return NewWebSocketTransport(cfg, logger), nil
	case TransportSocketIO:
		return NewSocketIOTransport(cfg, logger), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTransport, kind)
}

// wsTransport speaks raw WebSocket frames to <url>/<channel>.
type wsTransport struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewWebSocketTransport creates the raw WebSocket transport.
func NewWebSocketTransport(cfg ClientConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &wsTransport{cfg: cfg, logger: logger}
}

func (t *wsTransport) Name() string {
	return TransportWebSocket
}

func (t *wsTransport) Dial(ctx context.Context, events chan<- Event) Handle {
	h := &wsHandle{session: newSession(ctx, t.cfg, t.logger, events)}
	go h.run()
	return h
}

// Endpoint returns the channel URL the raw transport dials.
func Endpoint(base, channel string) (string, error) {
	if channel == "" {
		return base, nil
	}
	u, err := url.JoinPath(base, channel)
	if err != nil {
		return "", fmt.Errorf("build endpoint: %w", err)
	}
	return u, nil
}

type wsHandle struct {
	*session
}

// RequestHistory sends the plain-text getMessages command.
func (h *wsHandle) RequestHistory() error {
	if err := h.send([]byte(RawHistoryCommand)); err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	return nil
}

// run dials, then owns the read loop until the connection ends.
func (h *wsHandle) run() {
	defer h.finish()

	endpoint, err := Endpoint(h.cfg.URL, h.cfg.Channel)
	if err != nil {
		h.fail(err)
		return
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: h.cfg.HandshakeTimeout,
	}

	conn, _, err := dialer.DialContext(h.ctx, endpoint, h.cfg.Header)
	if err != nil {
		h.fail(fmt.Errorf("dial %s: %w", endpoint, err))
		return
	}
	if !h.attach(conn) {
		conn.Close()
		return
	}

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		h.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		h.touch()
		return nil
	})

	h.logger.Debug("websocket connected", "url", endpoint)
	h.emit(Event{Type: EventOpen})

	go h.heartbeatLoop(conn)
	h.readLoop(conn)
}

func (h *wsHandle) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				h.logger.Debug("relay closed connection",
					"code", closeErr.Code,
					"reason", closeErr.Text,
				)
				return
			}
			h.fail(fmt.Errorf("read: %w", err))
			return
		}

		h.emit(Event{Type: EventMessage, Data: data, At: receivedAt})
	}
}

// heartbeatLoop pings the relay and reports a stale connection.
func (h *wsHandle) heartbeatLoop(conn *websocket.Conn) {
	if h.cfg.PingInterval <= 0 {
		return
	}

	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-h.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				h.logger.Debug("failed to send ping", "error", err)
			}

			lastPing := h.lastPing()
			if h.cfg.PingTimeout > 0 && time.Since(lastPing) > h.cfg.PingTimeout {
				h.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", h.cfg.PingTimeout,
				)
				h.fail(ErrStaleConnection)
				return
			}
		}
	}
}
