package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "relay_listener"

// Metrics holds every collector exported by the listener.
type Metrics struct {
	ConnectAttempts     prometheus.Counter
	ConnectionOpens     prometheus.Counter
	ConnectionCloses    prometheus.Counter
	ConnectionErrors    prometheus.Counter
	ConnectionUp        prometheus.Gauge
	ReconnectsScheduled prometheus.Counter
	HistoryRequests     prometheus.Counter

	MessagesReceived *prometheus.CounterVec // label: kind
	ParseErrors      prometheus.Counter

	ArchiveInserts   prometheus.Counter
	ArchiveConflicts prometheus.Counter
	ArchiveErrors    prometheus.Counter
	ArchiveDropped   prometheus.Counter

	registry *prometheus.Registry
}

// New creates the collectors. With a non-nil registry they are registered
// alongside the Go and process collectors.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConnectAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connection attempts started, including the first one",
		}),
		ConnectionOpens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_opens_total",
			Help:      "Connections that completed the handshake",
		}),
		ConnectionCloses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_closes_total",
			Help:      "Connection handles that closed, for any reason",
		}),
		ConnectionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connection_errors_total",
			Help:      "Transport errors that forced a close",
		}),
		ConnectionUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_up",
			Help:      "1 while a connection is open, 0 otherwise",
		}),
		ReconnectsScheduled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_scheduled_total",
			Help:      "Delayed reconnect attempts scheduled after a close",
		}),
		HistoryRequests: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_requests_total",
			Help:      "Fetch-history requests sent on open",
		}),
		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Inbound payloads by classification",
		}, []string{"kind"}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Inbound payloads that could not be parsed",
		}),
		ArchiveInserts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_inserts_total",
			Help:      "Messages inserted into the archive",
		}),
		ArchiveConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_conflicts_total",
			Help:      "Messages skipped because they were already archived",
		}),
		ArchiveErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Archive batch inserts that failed",
		}),
		ArchiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_dropped_total",
			Help:      "Messages not queued because the archive buffer was closed",
		}),
		registry: reg,
	}

	if reg != nil {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			m.ConnectAttempts,
			m.ConnectionOpens,
			m.ConnectionCloses,
			m.ConnectionErrors,
			m.ConnectionUp,
			m.ReconnectsScheduled,
			m.HistoryRequests,
			m.MessagesReceived,
			m.ParseErrors,
			m.ArchiveInserts,
			m.ArchiveConflicts,
			m.ArchiveErrors,
			m.ArchiveDropped,
		)
	}

	return m
}

// Discard returns unregistered collectors, for components built without metrics.
func Discard() *Metrics {
	return New(nil)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
