package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/seedlabs/relay-listener/internal/socketio"
)

// sioTransport speaks socket.io v5 over an Engine.IO v4 WebSocket.
type sioTransport struct {
	cfg    ClientConfig
	logger *slog.Logger
}

// NewSocketIOTransport creates the socket.io transport.
func NewSocketIOTransport(cfg ClientConfig, logger *slog.Logger) Transport {
	if logger == nil {
		logger = slog.Default()
	}
	return &sioTransport{cfg: cfg, logger: logger}
}

func (t *sioTransport) Name() string {
	return TransportSocketIO
}

func (t *sioTransport) Dial(ctx context.Context, events chan<- Event) Handle {
	h := &sioHandle{
		session:   newSession(ctx, t.cfg, t.logger, events),
		namespace: normalizeNamespace(t.cfg.Namespace),
	}
	go h.run()
	return h
}

// SocketIOURL builds the Engine.IO WebSocket URL for base, e.g.
// https://host/app → wss://host/app/socket.io/?EIO=4&transport=websocket.
func SocketIOURL(base, mount string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse relay url: %w", err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if mount == "" {
		mount = "/socket.io/"
	}
	p := path.Join("/", u.Path, mount)
	if !strings.HasSuffix(p, "/") {
		p += "/"
	}
	u.Path = p

	q := u.Query()
	q.Set("EIO", "4")
	q.Set("transport", "websocket")
	u.RawQuery = q.Encode()

	return u.String(), nil
}

func normalizeNamespace(ns string) string {
	if ns == "" {
		return socketio.DefaultNamespace
	}
	if !strings.HasPrefix(ns, "/") {
		return "/" + ns
	}
	return ns
}

type sioHandle struct {
	*session
	namespace string
	joined    bool // Read loop only
}

// RequestHistory emits getMessages {channel, time_interval_minutes}.
func (h *sioHandle) RequestHistory() error {
	frame, err := socketio.EncodeEvent(h.namespace, HistoryEvent, HistoryRequest{
		Channel:             h.cfg.Channel,
		TimeIntervalMinutes: h.cfg.HistoryMinutes,
	})
	if err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	if err := h.send(frame); err != nil {
		return fmt.Errorf("request history: %w", err)
	}
	return nil
}

func (h *sioHandle) run() {
	defer h.finish()

	endpoint, err := SocketIOURL(h.cfg.URL, h.cfg.SocketIOPath)
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

	open, err := h.handshake(conn)
	if err != nil {
		h.fail(err)
		return
	}

	h.logger.Debug("engine.io session opened",
		"url", endpoint,
		"sid", open.SID,
		"ping_interval_ms", open.PingInterval,
		"ping_timeout_ms", open.PingTimeout,
	)

	deadline := open.Deadline()
	if deadline <= 0 {
		deadline = h.cfg.PingTimeout
	}
	h.readLoop(conn, deadline)
}

// handshake reads the Engine.IO open packet and joins the namespace.
func (h *sioHandle) handshake(conn *websocket.Conn) (socketio.OpenPayload, error) {
	if h.cfg.HandshakeTimeout > 0 {
		conn.SetReadDeadline(time.Now().Add(h.cfg.HandshakeTimeout))
	}

	_, data, err := conn.ReadMessage()
	if err != nil {
		return socketio.OpenPayload{}, fmt.Errorf("read open packet: %w", err)
	}

	typ, payload, err := socketio.DecodeEngine(data)
	if err != nil {
		return socketio.OpenPayload{}, fmt.Errorf("read open packet: %w", err)
	}
	if typ != socketio.EngineOpen {
		return socketio.OpenPayload{}, fmt.Errorf("read open packet: unexpected engine packet %q", byte(typ))
	}

	open, err := socketio.DecodeOpen(payload)
	if err != nil {
		return socketio.OpenPayload{}, err
	}

	frame, err := socketio.EncodeConnect(h.namespace, nil)
	if err != nil {
		return socketio.OpenPayload{}, err
	}
	if err := h.send(frame); err != nil {
		return socketio.OpenPayload{}, fmt.Errorf("join namespace %s: %w", h.namespace, err)
	}

	return open, nil
}

func (h *sioHandle) readLoop(conn *websocket.Conn, deadline time.Duration) {
	if deadline <= 0 {
		conn.SetReadDeadline(time.Time{})
	}

	for {
		if deadline > 0 {
			conn.SetReadDeadline(time.Now().Add(deadline))
		}

		_, data, err := conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			var closeErr *websocket.CloseError
			var netErr net.Error
			switch {
			case errors.As(err, &closeErr):
				h.logger.Debug("relay closed connection",
					"code", closeErr.Code,
					"reason", closeErr.Text,
				)
			case errors.As(err, &netErr) && netErr.Timeout():
				h.logger.Warn("no ping received, connection stale", "timeout", deadline)
				h.fail(ErrStaleConnection)
			default:
				h.fail(fmt.Errorf("read: %w", err))
			}
			return
		}

		if !h.handleFrame(data, receivedAt) {
			return
		}
	}
}

// handleFrame processes one Engine.IO frame. It returns false when the
// session is over.
func (h *sioHandle) handleFrame(data []byte, receivedAt time.Time) bool {
	typ, payload, err := socketio.DecodeEngine(data)
	if err != nil {
		h.logger.Warn("malformed engine.io frame", "error", err, "frame", string(data))
		return true
	}

	switch typ {
	case socketio.EnginePing:
		h.touch()
		if err := h.send(socketio.EncodePong(payload)); err != nil {
			h.fail(fmt.Errorf("send pong: %w", err))
			return false
		}
		return true

	case socketio.EngineClose:
		h.logger.Debug("engine.io close received")
		return false

	case socketio.EngineMessage:
		return h.handlePacket(payload, receivedAt)

	default:
		h.logger.Debug("ignoring engine.io packet", "type", string(byte(typ)))
		return true
	}
}

func (h *sioHandle) handlePacket(payload []byte, receivedAt time.Time) bool {
	p, err := socketio.DecodePacket(payload)
	if err != nil {
		h.logger.Warn("malformed socket.io packet", "error", err, "packet", string(payload))
		return true
	}
	if p.Namespace != h.namespace {
		h.logger.Debug("ignoring packet for other namespace", "namespace", p.Namespace)
		return true
	}

	switch p.Type {
	case socketio.PacketConnect:
		if !h.joined {
			h.joined = true
			h.emit(Event{Type: EventOpen, At: receivedAt})
		}

	case socketio.PacketEvent:
		name, args, err := p.Event()
		if err != nil {
			h.logger.Warn("malformed socket.io event", "error", err, "packet", string(payload))
			return true
		}
		data := []byte("null")
		if len(args) > 0 {
			data = args[0]
		}
		h.emit(Event{Type: EventMessage, Name: name, Data: data, At: receivedAt})

	case socketio.PacketConnectError:
		var cerr socketio.ConnectErrorPayload
		if len(p.Data) > 0 {
			if err := json.Unmarshal(p.Data, &cerr); err != nil {
				cerr.Message = string(p.Data)
			}
		}
		h.fail(fmt.Errorf("%w: %s", ErrConnectRefused, cerr.Message))
		return false

	case socketio.PacketDisconnect:
		h.logger.Debug("namespace disconnected by relay")
		return false
	}

	return true
}
