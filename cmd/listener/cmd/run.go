package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/seedlabs/relay-listener/internal/api"
	"github.com/seedlabs/relay-listener/internal/config"
	"github.com/seedlabs/relay-listener/internal/connection"
	"github.com/seedlabs/relay-listener/internal/database"
	"github.com/seedlabs/relay-listener/internal/metrics"
	"github.com/seedlabs/relay-listener/internal/model"
	"github.com/seedlabs/relay-listener/internal/poller"
	"github.com/seedlabs/relay-listener/internal/router"
	"github.com/seedlabs/relay-listener/internal/version"
	"github.com/seedlabs/relay-listener/internal/writer"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Connect to the relay and log messages until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			logger := newLogger(cfg.Log, cmd.OutOrStdout())
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return run(ctx, cfg, logger)
		},
	}
}

// clientConfig maps listener settings onto the transport configuration.
func clientConfig(cfg *config.ListenerConfig) connection.ClientConfig {
	header := http.Header{}
	header.Set("User-Agent", version.UserAgent())

	return connection.ClientConfig{
		URL:              cfg.Relay.URL,
		Channel:          cfg.Relay.Channel,
		SocketIOPath:     cfg.Relay.SocketIOPath,
		Namespace:        cfg.Relay.Namespace,
		HistoryMinutes:   cfg.History.IntervalMinutes,
		Header:           header,
		HandshakeTimeout: cfg.Connection.HandshakeTimeout,
		PingInterval:     cfg.Connection.PingInterval,
		PingTimeout:      cfg.Connection.PingTimeout,
		WriteTimeout:     cfg.Connection.WriteTimeout,
	}
}

// managerConfig maps listener settings onto the lifecycle manager configuration.
func managerConfig(cfg *config.ListenerConfig) connection.ManagerConfig {
	rc := cfg.Connection.Reconnect
	return connection.ManagerConfig{
		Retry: connection.RetryConfig{
			Policy:      rc.Policy,
			Delay:       rc.Delay,
			MaxDelay:    rc.MaxDelay,
			MaxAttempts: rc.MaxAttempts,
		},
		EventBufferSize: cfg.Connection.EventBufferSize,
	}
}

// run wires the components and blocks until ctx is cancelled or the
// lifecycle manager gives up.
func run(ctx context.Context, cfg *config.ListenerConfig, logger *slog.Logger) error {
	logger.Info("starting listener",
		"version", version.Version,
		"commit", version.Commit,
		"transport", cfg.Relay.Transport,
		"url", cfg.Relay.URL,
		"channel", cfg.Relay.Channel,
		"reconnect_policy", cfg.Connection.Reconnect.Policy,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := metrics.Discard()
	if cfg.Metrics.Enabled {
		m = metrics.New(prometheus.NewRegistry())
	}

	// Optional archive sink
	var (
		archiveBuf    *router.GrowableBuffer[model.RelayMessage]
		archiveWriter *writer.ArchiveWriter
		db            pinger
	)
	if cfg.Archive.Enabled {
		pool, err := database.Connect(ctx, cfg.Archive.Database, logger)
		if err != nil {
			logger.Error("failed to connect to archive database", "error", err)
			return err
		}
		defer pool.Close()

		if err := writer.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to prepare archive schema", "error", err)
			return err
		}

		archiveBuf = router.NewGrowableBuffer[model.RelayMessage](min(cfg.Archive.BufferSize, 64), cfg.Archive.BufferSize)
		archiveWriter = writer.NewArchiveWriter(writer.WriterConfig{
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
			FlushTimeout:  shutdownTimeout,
		}, archiveBuf, pool, logger.With("component", "archive"), m)
		db = pool
	}

	rtr := router.New(router.Config{Channel: cfg.Relay.Channel},
		logger.With("component", "router"),
		router.WithMetrics(m),
		router.WithArchive(archiveBuf),
	)

	transport, err := connection.NewTransport(cfg.Relay.Transport, clientConfig(cfg), logger.With("component", "connection"))
	if err != nil {
		return err
	}

	mgr, err := connection.NewManager(managerConfig(cfg), transport, rtr,
		logger.With("component", "manager"),
		connection.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create connection manager: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	// The manager returning (shutdown or exhausted retries) stops everything else.
	g.Go(func() error {
		defer cancel()
		return mgr.Run(gctx)
	})

	if archiveWriter != nil {
		g.Go(func() error {
			if err := archiveWriter.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()
			archiveBuf.Close()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return archiveWriter.Stop(stopCtx)
		})
	}

	var backfill *poller.Poller
	if archiveWriter != nil && cfg.Archive.BackfillInterval > 0 {
		backfill = poller.New(poller.Config{
			Channel:  cfg.Relay.Channel,
			Interval: cfg.Archive.BackfillInterval,
			Minutes:  cfg.History.IntervalMinutes,
		}, api.NewClient(cfg.Relay.RestURL, api.WithLogger(logger)), rtr, logger.With("component", "backfill"))

		g.Go(func() error {
			if err := backfill.Start(gctx); err != nil {
				return err
			}
			<-gctx.Done()

			stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer stopCancel()
			return backfill.Stop(stopCtx)
		})
	}

	if cfg.Metrics.Enabled {
		deps := healthDeps{
			Connection:  mgr.Stats,
			Router:      rtr.Stats,
			DB:          db,
			Metrics:     m.Handler(),
			MetricsPath: cfg.Metrics.Path,
		}
		if archiveWriter != nil {
			deps.Archive = archiveWriter.Stats
		}
		if backfill != nil {
			deps.Backfill = backfill.Stats
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Metrics.Port),
			Handler:           createHealthHandler(deps),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server",
				"port", cfg.Metrics.Port,
				"metrics_path", cfg.Metrics.Path,
			)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if err != nil {
		logger.Error("listener stopped with error", "error", err)
		return err
	}

	stats := mgr.Stats()
	logger.Info("listener stopped",
		"attempts", stats.Attempts,
		"opens", stats.Opens,
		"exhausted", stats.Exhausted,
	)
	return nil
}
