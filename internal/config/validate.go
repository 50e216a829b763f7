package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// Validate checks that all required fields are set and values are valid.
func (c *ListenerConfig) Validate() error {
	if err := c.Relay.validate(); err != nil {
		return err
	}

	rc := c.Connection.Reconnect
	switch rc.Policy {
	case PolicyUnbounded, PolicyExponential:
	case PolicyBounded:
		if rc.MaxAttempts < 1 {
			return errors.New("connection.reconnect.max_attempts must be >= 1 for bounded policy")
		}
	default:
		return fmt.Errorf("connection.reconnect.policy %q is not one of unbounded, bounded, exponential", rc.Policy)
	}
	if rc.Delay <= 0 {
		return errors.New("connection.reconnect.delay must be > 0")
	}
	if rc.MaxAttempts < 0 {
		return errors.New("connection.reconnect.max_attempts must be >= 0")
	}
	if rc.Policy == PolicyExponential && rc.MaxDelay < rc.Delay {
		return fmt.Errorf("connection.reconnect.max_delay (%s) cannot be less than delay (%s)", rc.MaxDelay, rc.Delay)
	}
	for _, d := range []struct {
		key   string
		value time.Duration
	}{
		{"connection.handshake_timeout", c.Connection.HandshakeTimeout},
		{"connection.ping_interval", c.Connection.PingInterval},
		{"connection.ping_timeout", c.Connection.PingTimeout},
		{"connection.write_timeout", c.Connection.WriteTimeout},
	} {
		if d.value <= 0 {
			return fmt.Errorf("%s must be > 0, got %s", d.key, d.value)
		}
	}
	if c.Connection.EventBufferSize < 1 {
		return errors.New("connection.event_buffer_size must be >= 1")
	}

	if c.History.IntervalMinutes < 1 {
		return errors.New("history.interval_minutes must be >= 1")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("log.format %q must be text or json", c.Log.Format)
	}

	if c.Archive.Enabled {
		if err := c.Archive.Database.validate("archive.database"); err != nil {
			return err
		}
		if c.Archive.BatchSize < 1 {
			return errors.New("archive.batch_size must be >= 1")
		}
		if c.Archive.BufferSize < 1 {
			return errors.New("archive.buffer_size must be >= 1")
		}
		if c.Archive.BackfillInterval < 0 {
			return errors.New("archive.backfill_interval must be >= 0")
		}
		if c.Archive.BackfillInterval > 0 {
			u, err := url.Parse(c.Relay.RestURL)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
				return fmt.Errorf("relay.rest_url %q must be an http or https URL for backfill", c.Relay.RestURL)
			}
		}
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}

func (r *RelayConfig) validate() error {
	if r.Channel == "" {
		return errors.New("relay.channel is required")
	}

	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("relay.url: %w", err)
	}

	switch r.Transport {
	case TransportWebSocket:
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("relay.url scheme %q must be ws or wss for websocket transport", u.Scheme)
		}
	case TransportSocketIO:
		switch u.Scheme {
		case "ws", "wss", "http", "https":
		default:
			return fmt.Errorf("relay.url scheme %q must be http, https, ws or wss for socketio transport", u.Scheme)
		}
	default:
		return fmt.Errorf("relay.transport %q must be websocket or socketio", r.Transport)
	}

	if u.Host == "" {
		return errors.New("relay.url must include a host")
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
