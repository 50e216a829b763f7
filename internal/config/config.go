package config

import "time"

// Transport names accepted in relay.transport.
const (
	TransportWebSocket = "websocket"
	TransportSocketIO  = "socketio"
)

// Reconnect policy names accepted in connection.reconnect.policy.
const (
	PolicyUnbounded   = "unbounded"
	PolicyBounded     = "bounded"
	PolicyExponential = "exponential"
)

// ListenerConfig is the root configuration for a listener instance.
type ListenerConfig struct {
	Relay      RelayConfig      `yaml:"relay"`
	Connection ConnectionConfig `yaml:"connection"`
	History    HistoryConfig    `yaml:"history"`
	Log        LogConfig        `yaml:"log"`
	Archive    ArchiveConfig    `yaml:"archive"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// RelayConfig identifies the remote relay and the stream to follow.
type RelayConfig struct {
	URL          string `yaml:"url"`           // ws(s):// base for websocket, http(s):// or ws(s):// for socketio
	Channel      string `yaml:"channel"`       // Stream identifier, appended to the URL path for websocket
	Transport    string `yaml:"transport"`     // "websocket" or "socketio"
	SocketIOPath string `yaml:"socketio_path"` // Engine.IO mount path (socketio only)
	Namespace    string `yaml:"namespace"`     // socket.io namespace, "/" by default
	RestURL      string `yaml:"rest_url"`      // Base URL for GET /api/get-messages
}

// ConnectionConfig holds lifecycle manager settings.
type ConnectionConfig struct {
	Reconnect        ReconnectConfig `yaml:"reconnect"`
	HandshakeTimeout time.Duration   `yaml:"handshake_timeout"`
	PingInterval     time.Duration   `yaml:"ping_interval"`
	PingTimeout      time.Duration   `yaml:"ping_timeout"`
	WriteTimeout     time.Duration   `yaml:"write_timeout"`
	EventBufferSize  int             `yaml:"event_buffer_size"`
}

// ReconnectConfig selects the retry policy applied after a close.
type ReconnectConfig struct {
	Policy      string        `yaml:"policy"`       // "unbounded", "bounded" or "exponential"
	Delay       time.Duration `yaml:"delay"`        // Fixed delay, or initial delay for exponential
	MaxDelay    time.Duration `yaml:"max_delay"`    // Cap for exponential
	MaxAttempts int           `yaml:"max_attempts"` // Consecutive attempts before giving up (bounded)
}

// HistoryConfig controls the history request sent on every open.
type HistoryConfig struct {
	IntervalMinutes int `yaml:"interval_minutes"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// ArchiveConfig enables forwarding received messages to a remote database.
type ArchiveConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`

	// BackfillInterval polls the REST history endpoint into the archive;
	// zero disables it.
	BackfillInterval time.Duration `yaml:"backfill_interval"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds Prometheus metrics and health server settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
