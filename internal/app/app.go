// Package app assembles the terminal core from configuration. Both the daemon
// and posctl build on it so they talk to the backend the same way.
package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiwari-pos/terminal/internal/archive"
	"github.com/kiwari-pos/terminal/internal/backend"
	"github.com/kiwari-pos/terminal/internal/command"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/marker"
	"github.com/kiwari-pos/terminal/internal/metrics"
	"github.com/kiwari-pos/terminal/internal/recovery"
	"github.com/kiwari-pos/terminal/internal/service"
	"github.com/kiwari-pos/terminal/internal/session"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
)

// Options tunes Build.
type Options struct {
	// Registerer receives the metric collectors. Nil means the default registry.
	Registerer prometheus.Registerer

	// RetryCommands resends transient failures with the same envelope.
	// Interactive callers leave it off and let the operator retry.
	RetryCommands bool
}

// Components is the assembled core.
type Components struct {
	Config     *config.Config
	Logger     *log.Logger
	Metrics    *metrics.Recorder
	Gate       *command.Gate
	Dispatcher *command.Dispatcher
	Orders     *service.OrderService
	Snapshots  *snapshot.Reconstructor
	Subscriber *backend.Subscriber
	Markers    marker.Store

	closers []func()
}

// Build wires config into a ready core. Call Close when done.
func Build(ctx context.Context, cfg *config.Config, opts Options) (*Components, error) {
	logger := cfg.Logger()
	c := &Components{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics.NewRecorderWithRegisterer(opts.Registerer),
		Gate:    command.NewGate(),
	}

	markers, err := marker.OpenSQLite(cfg.MarkerDBPath)
	if err != nil {
		return nil, fmt.Errorf("open marker store: %w", err)
	}
	c.Markers = markers
	c.closers = append(c.closers, func() { markers.Close() })

	httpClient := backend.NewClient(cfg.BackendURL, nil, cfg.HTTPTimeout)
	orderClient := backend.NewOrderClient(httpClient)

	var archiveSource snapshot.ArchiveSource = orderClient
	if cfg.ArchiveDatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.ArchiveDatabaseURL)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("connect archive database: %w", err)
		}
		c.closers = append(c.closers, pool.Close)

		store := archive.NewStore(pool)
		if err := store.Migrate(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("migrate archive database: %w", err)
		}
		archiveSource = store
		logger.Info("reading archived orders from the archive database")
	}

	c.Dispatcher = command.NewDispatcher(c.Gate, backend.NewCommandClient(httpClient), c.Metrics, component(logger, "dispatcher"))

	var dispatcher service.CommandDispatcher = c.Dispatcher
	if opts.RetryCommands {
		dispatcher = retrying{d: c.Dispatcher, cfg: command.DefaultRetryConfig()}
	}
	c.Orders = service.NewOrderService(command.NewBuilder(), dispatcher, c.Markers, component(logger, "orders"))
	c.Snapshots = snapshot.NewReconstructor(archiveSource, orderClient, c.Metrics, component(logger, "snapshot"))
	c.Subscriber = backend.NewSubscriber(cfg.BackendWSURL, cfg.HTTPTimeout, component(logger, "subscriber"))

	return c, nil
}

// NewMonitor creates a recovery monitor over the core's marker store and
// reconstructor. onResume may be nil.
func (c *Components) NewMonitor(onResume func(*snapshot.Snapshot)) *recovery.Monitor {
	return recovery.NewMonitor(c.Markers, c.Snapshots,
		recovery.WithConfig(c.Config.Recovery()),
		recovery.WithOnResume(onResume),
		recovery.WithObserver(c.Metrics),
		recovery.WithLogger(component(c.Logger, "recovery")),
	)
}

// TerminalContext returns ctx carrying the terminal's own session, for backend
// calls made without an operator. ctx is returned as is when no terminal
// token is configured.
func (c *Components) TerminalContext(ctx context.Context) context.Context {
	if c.Config.TerminalToken == "" {
		return ctx
	}
	return session.NewContext(ctx, &session.Session{
		UserID:      "terminal",
		DisplayName: "Terminal",
		Role:        "TERMINAL",
		Token:       c.Config.TerminalToken,
	})
}

// Close releases the marker store and archive pool.
func (c *Components) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
	c.closers = nil
}

func component(logger *log.Logger, name string) *log.Entry {
	return logger.WithField("component", name)
}

// retrying sends every envelope through Dispatcher.Retry.
type retrying struct {
	d   *command.Dispatcher
	cfg command.RetryConfig
}

func (r retrying) Dispatch(ctx context.Context, env command.Envelope) command.Response {
	return r.d.Retry(ctx, env, r.cfg)
}
