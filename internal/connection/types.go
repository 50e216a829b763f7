package connection

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyRunning   = errors.New("manager already running")
	ErrConnectRefused   = errors.New("socket.io connect refused")
	ErrUnknownTransport = errors.New("unknown transport")
)

// EventType is a lifecycle event signalled by a handle.
type EventType int

const (
	EventOpen EventType = iota + 1
	EventMessage
	EventError
	EventClose
)

func (t EventType) String() string {
	switch t {
	case EventOpen:
		return "open"
	case EventMessage:
		return "message"
	case EventError:
		return "error"
	case EventClose:
		return "close"
	}
	return "unknown"
}

// Event is emitted by a handle into the manager's event channel.
// Every handle emits at most one EventOpen and exactly one EventClose.
type Event struct {
	Type     EventType
	HandleID string
	Name     string // socket.io event name; empty for raw frames
	Data     []byte
	Err      error
	At       time.Time
}

// Inbound is a payload passed from the manager to its MessageHandler.
type Inbound struct {
	HandleID   string
	Name       string // socket.io event name; empty for raw frames
	Data       []byte
	ReceivedAt time.Time
}

// MessageHandler consumes inbound payloads. It runs on the manager's event
// loop and must not block for long.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg Inbound)
}

// MessageHandlerFunc adapts a function to MessageHandler.
type MessageHandlerFunc func(ctx context.Context, msg Inbound)

// HandleMessage calls f.
func (f MessageHandlerFunc) HandleMessage(ctx context.Context, msg Inbound) {
	f(ctx, msg)
}

// State is the manager's connection state.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

// HistoryRequest is the socket.io fetch-history payload.
type HistoryRequest struct {
	Channel             string `json:"channel"`
	TimeIntervalMinutes int    `json:"time_interval_minutes"`
}

// RawHistoryCommand is the text frame that asks a raw WebSocket relay for history.
const RawHistoryCommand = "getMessages"

// HistoryEvent is the socket.io event name for the fetch-history request.
const HistoryEvent = "getMessages"

// Transport names.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// ClientConfig configures a transport.
type ClientConfig struct {
	URL              string        // Relay base URL (e.g., wss://telegram.seedlabs.digital/ws)
	Channel          string        // Appended to the URL path for websocket; sent in the history request for socketio
	SocketIOPath     string        // Engine.IO mount path (socketio only)
	Namespace        string        // socket.io namespace
	HistoryMinutes   int           // time_interval_minutes for socketio history requests
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // Dial + upgrade timeout
	PingInterval     time.Duration // Keepalive ping interval (websocket)
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		SocketIOPath:     "/socket.io/",
		Namespace:        "/",
		HistoryMinutes:   10,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// ManagerConfig configures the Connection Lifecycle Manager.
type ManagerConfig struct {
	Retry           RetryConfig // Reconnect policy
	EventBufferSize int         // Buffer size for the handle → manager event channel
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Retry: RetryConfig{
			Policy: RetryUnbounded,
			Delay:  5 * time.Second,
		},
		EventBufferSize: 1000,
	}
}

// ManagerStats provides statistics about the lifecycle manager.
type ManagerStats struct {
	State               State
	HandleID            string // Current handle, empty before the first attempt
	Attempts            int64
	Opens               int64
	Closes              int64
	Errors              int64
	Messages            int64
	HistoryRequests     int64
	ReconnectsScheduled int64
	LastOpenAt          time.Time
	LastCloseAt         time.Time
	Exhausted           bool // Bounded policy gave up
}
