package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultRelayURL             = "wss://telegram.seedlabs.digital/ws"
	DefaultChannel              = "gem_tools_calls"
	DefaultTransport            = TransportWebSocket
	DefaultSocketIOPath         = "/socket.io/"
	DefaultNamespace            = "/"
	DefaultRestURL              = "https://telegram.seedlabs.digital"
	DefaultReconnectPolicy      = PolicyUnbounded
	DefaultReconnectDelay       = 5 * time.Second
	DefaultReconnectMaxDelay    = 60 * time.Second
	DefaultReconnectMaxAttempts = 5
	DefaultHandshakeTimeout     = 10 * time.Second
	DefaultPingInterval         = 30 * time.Second
	DefaultPingTimeout          = 60 * time.Second
	DefaultWriteTimeout         = 5 * time.Second
	DefaultEventBufferSize      = 1000
	DefaultHistoryMinutes       = 10
	DefaultLogLevel             = "info"
	DefaultLogFormat            = "text"
	DefaultArchiveBatchSize     = 100
	DefaultArchiveFlush         = 5 * time.Second
	DefaultArchiveBufferSize    = 1000
	DefaultDBPort               = 5432
	DefaultDBSSLMode            = "prefer"
	DefaultMaxConns             = 4
	DefaultMinConns             = 1
	DefaultMetricsPort          = 9090
	DefaultMetricsPath          = "/metrics"
)

func (c *ListenerConfig) applyDefaults() {
	// Relay defaults
	if c.Relay.URL == "" {
		c.Relay.URL = DefaultRelayURL
	}
	if c.Relay.Channel == "" {
		c.Relay.Channel = DefaultChannel
	}
	if c.Relay.Transport == "" {
		c.Relay.Transport = DefaultTransport
	}
	if c.Relay.SocketIOPath == "" {
		c.Relay.SocketIOPath = DefaultSocketIOPath
	}
	if c.Relay.Namespace == "" {
		c.Relay.Namespace = DefaultNamespace
	}
	if c.Relay.RestURL == "" {
		c.Relay.RestURL = DefaultRestURL
	}

	// Connection defaults
	rc := &c.Connection.Reconnect
	if rc.Policy == "" {
		rc.Policy = DefaultReconnectPolicy
	}
	if rc.Delay == 0 {
		rc.Delay = DefaultReconnectDelay
	}
	if rc.MaxDelay == 0 {
		rc.MaxDelay = DefaultReconnectMaxDelay
	}
	if rc.Policy == PolicyBounded && rc.MaxAttempts == 0 {
		rc.MaxAttempts = DefaultReconnectMaxAttempts
	}
	if c.Connection.HandshakeTimeout == 0 {
		c.Connection.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Connection.PingInterval == 0 {
		c.Connection.PingInterval = DefaultPingInterval
	}
	if c.Connection.PingTimeout == 0 {
		c.Connection.PingTimeout = DefaultPingTimeout
	}
	if c.Connection.WriteTimeout == 0 {
		c.Connection.WriteTimeout = DefaultWriteTimeout
	}
	if c.Connection.EventBufferSize == 0 {
		c.Connection.EventBufferSize = DefaultEventBufferSize
	}

	// History defaults
	if c.History.IntervalMinutes == 0 {
		c.History.IntervalMinutes = DefaultHistoryMinutes
	}

	// Log defaults
	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}
	if c.Log.Format == "" {
		c.Log.Format = DefaultLogFormat
	}

	// Archive defaults
	if c.Archive.BatchSize == 0 {
		c.Archive.BatchSize = DefaultArchiveBatchSize
	}
	if c.Archive.FlushInterval == 0 {
		c.Archive.FlushInterval = DefaultArchiveFlush
	}
	if c.Archive.BufferSize == 0 {
		c.Archive.BufferSize = DefaultArchiveBufferSize
	}
	applyDBDefaults(&c.Archive.Database)

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
