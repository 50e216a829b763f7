package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
relay:
  url: ws://localhost:8000/ws
  channel: test_channel
  transport: websocket
connection:
  reconnect:
    policy: bounded
    delay: 2s
    max_attempts: 3
history:
  interval_minutes: 30
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Relay.URL != "ws://localhost:8000/ws" {
		t.Errorf("Relay.URL = %q, want %q", cfg.Relay.URL, "ws://localhost:8000/ws")
	}
	if cfg.Relay.Channel != "test_channel" {
		t.Errorf("Relay.Channel = %q, want %q", cfg.Relay.Channel, "test_channel")
	}
	if cfg.Connection.Reconnect.Policy != PolicyBounded {
		t.Errorf("Reconnect.Policy = %q, want %q", cfg.Connection.Reconnect.Policy, PolicyBounded)
	}
	if cfg.Connection.Reconnect.Delay != 2*time.Second {
		t.Errorf("Reconnect.Delay = %v, want 2s", cfg.Connection.Reconnect.Delay)
	}
	if cfg.Connection.Reconnect.MaxAttempts != 3 {
		t.Errorf("Reconnect.MaxAttempts = %d, want 3", cfg.Connection.Reconnect.MaxAttempts)
	}
	if cfg.History.IntervalMinutes != 30 {
		t.Errorf("History.IntervalMinutes = %d, want 30", cfg.History.IntervalMinutes)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_ARCHIVE_PASSWORD", "secret123")
	t.Setenv("TEST_RELAY_CHANNEL", "from_env")

	yaml := `
relay:
  channel: ${TEST_RELAY_CHANNEL}
archive:
  enabled: true
  database:
    host: localhost
    name: relay
    user: listener
    password: ${TEST_ARCHIVE_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Archive.Database.Password != "secret123" {
		t.Errorf("Archive.Database.Password = %q, want %q", cfg.Archive.Database.Password, "secret123")
	}
	if cfg.Relay.Channel != "from_env" {
		t.Errorf("Relay.Channel = %q, want %q", cfg.Relay.Channel, "from_env")
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
relay:
  channel: other_channel
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	if cfg.Relay.Channel != "other_channel" {
		t.Errorf("Relay.Channel = %q, want %q", cfg.Relay.Channel, "other_channel")
	}
	if cfg.Relay.URL != DefaultRelayURL {
		t.Errorf("Relay.URL = %q, want default %q", cfg.Relay.URL, DefaultRelayURL)
	}
	if cfg.Relay.Transport != TransportWebSocket {
		t.Errorf("Relay.Transport = %q, want default %q", cfg.Relay.Transport, TransportWebSocket)
	}
	if cfg.Connection.Reconnect.Policy != PolicyUnbounded {
		t.Errorf("Reconnect.Policy = %q, want default %q", cfg.Connection.Reconnect.Policy, PolicyUnbounded)
	}
	if cfg.Connection.Reconnect.Delay != DefaultReconnectDelay {
		t.Errorf("Reconnect.Delay = %v, want default %v", cfg.Connection.Reconnect.Delay, DefaultReconnectDelay)
	}
	if cfg.Connection.Reconnect.MaxAttempts != 0 {
		t.Errorf("Reconnect.MaxAttempts = %d, want 0 for unbounded", cfg.Connection.Reconnect.MaxAttempts)
	}
	if cfg.History.IntervalMinutes != DefaultHistoryMinutes {
		t.Errorf("History.IntervalMinutes = %d, want default %d", cfg.History.IntervalMinutes, DefaultHistoryMinutes)
	}
	if cfg.Archive.Database.Port != DefaultDBPort {
		t.Errorf("Archive.Database.Port = %d, want default %d", cfg.Archive.Database.Port, DefaultDBPort)
	}
	if cfg.Metrics.Path != DefaultMetricsPath {
		t.Errorf("Metrics.Path = %q, want default %q", cfg.Metrics.Path, DefaultMetricsPath)
	}
}

func TestLoadWithDefaults_EmptyPath(t *testing.T) {
	cfg, err := LoadWithDefaults("")
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Relay.Channel != DefaultChannel {
		t.Errorf("Relay.Channel = %q, want default %q", cfg.Relay.Channel, DefaultChannel)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate, got %v", err)
	}
}

func TestLoadWithDefaults_BoundedAttempts(t *testing.T) {
	path := writeTempFile(t, `
connection:
  reconnect:
    policy: bounded
`)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}
	if cfg.Connection.Reconnect.MaxAttempts != DefaultReconnectMaxAttempts {
		t.Errorf("MaxAttempts = %d, want default %d", cfg.Connection.Reconnect.MaxAttempts, DefaultReconnectMaxAttempts)
	}
}

func TestLoadAndValidate_Invalid(t *testing.T) {
	path := writeTempFile(t, `
relay:
  transport: carrier_pigeon
`)

	_, err := LoadAndValidate(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	want := `validate config: relay.transport "carrier_pigeon" must be websocket or socketio`
	if err.Error() != want {
		t.Errorf("error = %q, want %q", err.Error(), want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ListenerConfig)
		wantErr string
	}{
		{
			name:    "defaults",
			mutate:  func(c *ListenerConfig) {},
			wantErr: "",
		},
		{
			name:    "missing channel",
			mutate:  func(c *ListenerConfig) { c.Relay.Channel = "" },
			wantErr: "relay.channel is required",
		},
		{
			name:    "http url for websocket",
			mutate:  func(c *ListenerConfig) { c.Relay.URL = "https://example.com/ws" },
			wantErr: `relay.url scheme "https" must be ws or wss for websocket transport`,
		},
		{
			name: "http url for socketio",
			mutate: func(c *ListenerConfig) {
				c.Relay.Transport = TransportSocketIO
				c.Relay.URL = "https://example.com"
			},
			wantErr: "",
		},
		{
			name:    "missing host",
			mutate:  func(c *ListenerConfig) { c.Relay.URL = "ws:///ws" },
			wantErr: "relay.url must include a host",
		},
		{
			name:    "unknown policy",
			mutate:  func(c *ListenerConfig) { c.Connection.Reconnect.Policy = "forever" },
			wantErr: `connection.reconnect.policy "forever" is not one of unbounded, bounded, exponential`,
		},
		{
			name: "bounded without attempts",
			mutate: func(c *ListenerConfig) {
				c.Connection.Reconnect.Policy = PolicyBounded
				c.Connection.Reconnect.MaxAttempts = 0
			},
			wantErr: "connection.reconnect.max_attempts must be >= 1 for bounded policy",
		},
		{
			name:    "zero delay",
			mutate:  func(c *ListenerConfig) { c.Connection.Reconnect.Delay = -time.Second },
			wantErr: "connection.reconnect.delay must be > 0",
		},
		{
			name: "exponential max below delay",
			mutate: func(c *ListenerConfig) {
				c.Connection.Reconnect.Policy = PolicyExponential
				c.Connection.Reconnect.Delay = 10 * time.Second
				c.Connection.Reconnect.MaxDelay = time.Second
			},
			wantErr: "connection.reconnect.max_delay (1s) cannot be less than delay (10s)",
		},
		{
			name:    "negative write timeout",
			mutate:  func(c *ListenerConfig) { c.Connection.WriteTimeout = -time.Second },
			wantErr: "connection.write_timeout must be > 0, got -1s",
		},
		{
			name:    "negative ping interval",
			mutate:  func(c *ListenerConfig) { c.Connection.PingInterval = -5 * time.Second },
			wantErr: "connection.ping_interval must be > 0, got -5s",
		},
		{
			name:    "zero ping timeout",
			mutate:  func(c *ListenerConfig) { c.Connection.PingTimeout = 0 },
			wantErr: "connection.ping_timeout must be > 0, got 0s",
		},
		{
			name:    "negative handshake timeout",
			mutate:  func(c *ListenerConfig) { c.Connection.HandshakeTimeout = -time.Millisecond },
			wantErr: "connection.handshake_timeout must be > 0, got -1ms",
		},
		{
			name:    "bad log level",
			mutate:  func(c *ListenerConfig) { c.Log.Level = "verbose" },
			wantErr: `log.level "verbose" is not one of debug, info, warn, error`,
		},
		{
			name:    "archive missing host",
			mutate:  func(c *ListenerConfig) { c.Archive.Enabled = true },
			wantErr: "archive.database.host is required",
		},
		{
			name: "archive min_conns exceeds max_conns",
			mutate: func(c *ListenerConfig) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 5}
			},
			wantErr: "archive.database.min_conns (5) cannot exceed max_conns (2)",
		},
		{
			name: "archive negative backfill interval",
			mutate: func(c *ListenerConfig) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 1}
				c.Archive.BackfillInterval = -time.Second
			},
			wantErr: "archive.backfill_interval must be >= 0",
		},
		{
			name: "backfill needs http rest url",
			mutate: func(c *ListenerConfig) {
				c.Archive.Enabled = true
				c.Archive.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 2, MinConns: 1}
				c.Archive.BackfillInterval = time.Minute
				c.Relay.RestURL = "ftp://relay.example"
			},
			wantErr: `relay.rest_url "ftp://relay.example" must be an http or https URL for backfill`,
		},
		{
			name: "metrics port out of range",
			mutate: func(c *ListenerConfig) {
				c.Metrics.Enabled = true
				c.Metrics.Port = 70000
			},
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestLoadExampleConfig(t *testing.T) {
	t.Setenv("RELAY_DB_PASSWORD", "from-env")

	cfg, err := LoadAndValidate(filepath.Join("..", "..", "configs", "listener.example.yaml"))
	if err != nil {
		t.Fatalf("LoadAndValidate() error = %v", err)
	}

	def := Default()
	if cfg.Relay != def.Relay {
		t.Errorf("Relay = %+v, want defaults %+v", cfg.Relay, def.Relay)
	}
	if cfg.Connection != def.Connection {
		t.Errorf("Connection = %+v, want defaults %+v", cfg.Connection, def.Connection)
	}
	if cfg.Archive.Database.Password != "from-env" {
		t.Errorf("Archive.Database.Password = %q, want %q", cfg.Archive.Database.Password, "from-env")
	}
	if cfg.Archive.Enabled || cfg.Metrics.Enabled {
		t.Error("example enables optional components")
	}
}
