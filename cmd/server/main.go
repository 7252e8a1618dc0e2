package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kiwari-pos/terminal/internal/app"
	"github.com/kiwari-pos/terminal/internal/config"
	"github.com/kiwari-pos/terminal/internal/router"
	"github.com/kiwari-pos/terminal/internal/snapshot"
	"github.com/kiwari-pos/terminal/internal/ws"
	log "github.com/sirupsen/logrus"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("terminal daemon failed")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	core, err := app.Build(ctx, cfg, app.Options{})
	if err != nil {
		return err
	}
	defer core.Close()
	logger := core.Logger.WithField("component", "server")

	hub := ws.NewHub(core.Subscriber, core.Metrics, core.Logger.WithField("component", "ws"))
	go hub.Run(ctx)

	monitor := core.NewMonitor(func(s *snapshot.Snapshot) {
		ev, err := ws.NewEvent(ws.EventRecoveryResumed, s)
		if err != nil {
			logger.WithError(err).Error("encode recovery event")
			return
		}
		hub.BroadcastAll(ev)
	})
	go func() {
		res, err := monitor.Run(core.TerminalContext(ctx))
		if err != nil {
			logger.WithError(err).Warn("recovery check failed")
			return
		}
		logger.WithFields(log.Fields{"state": res.State, "order_id": res.OrderID}).Info("recovery check finished")
	}()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router.New(cfg, router.Dependencies{Core: core, Hub: hub, Recovery: monitor}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", srv.Addr).Info("starting terminal API")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("shutdown with error")
	}
	logger.Info("terminal API stopped")
	return nil
}
