package cmd

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/seedlabs/relay-listener/internal/connection"
	"github.com/seedlabs/relay-listener/internal/poller"
	"github.com/seedlabs/relay-listener/internal/router"
	"github.com/seedlabs/relay-listener/internal/version"
	"github.com/seedlabs/relay-listener/internal/writer"
)

// pinger is satisfied by *pgxpool.Pool.
type pinger interface {
	Ping(ctx context.Context) error
}

// healthDeps are the components /health reports on. Archive and DB are nil
// when the archive is disabled, Backfill when backfill is off.
type healthDeps struct {
	Connection  func() connection.ManagerStats
	Router      func() router.Stats
	Archive     func() writer.WriterMetrics
	Backfill    func() poller.Stats
	DB          pinger
	Metrics     http.Handler
	MetricsPath string
}

// createHealthHandler creates the HTTP handler for health checks and metrics.
func createHealthHandler(deps healthDeps) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Version    version.Info   `json:"version"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Version:    version.Get(),
			Components: make(map[string]any),
		}

		// Relay connection
		conn := deps.Connection()
		health.Components["connection"] = map[string]any{
			"state":            conn.State.String(),
			"handle_id":        conn.HandleID,
			"attempts":         conn.Attempts,
			"opens":            conn.Opens,
			"closes":           conn.Closes,
			"errors":           conn.Errors,
			"history_requests": conn.HistoryRequests,
			"reconnects":       conn.ReconnectsScheduled,
			"exhausted":        conn.Exhausted,
		}
		switch {
		case conn.Exhausted:
			health.Status = "unhealthy"
		case conn.State != connection.StateOpen:
			health.Status = "degraded"
		}

		// Message router
		rs := deps.Router()
		health.Components["router"] = map[string]any{
			"received":     rs.MessagesReceived,
			"history":      rs.HistoryBatches,
			"new":          rs.NewMessages,
			"unknown":      rs.UnknownMessages,
			"parse_errors": rs.ParseErrors,
		}

		// Archive database
		if deps.DB != nil {
			if err := deps.DB.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["archive"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				ws := deps.Archive()
				health.Components["archive"] = map[string]any{
					"status":    "connected",
					"inserts":   ws.Inserts,
					"conflicts": ws.Conflicts,
					"errors":    ws.Errors,
				}
			}
		}

		// Archive backfill
		if deps.Backfill != nil {
			bs := deps.Backfill()
			backfill := map[string]any{
				"status":  "ok",
				"polls":   bs.Polls,
				"fetched": bs.Fetched,
				"queued":  bs.Queued,
				"errors":  bs.Errors,
			}
			if !bs.LastPollAt.IsZero() {
				backfill["last_poll_at"] = bs.LastPollAt
			}
			if bs.LastError != "" {
				backfill["status"] = "failing"
				backfill["last_error"] = bs.LastError
				if health.Status == "healthy" {
					health.Status = "degraded"
				}
			}
			health.Components["backfill"] = backfill
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		mux.Handle(path, deps.Metrics)
	}

	return mux
}
