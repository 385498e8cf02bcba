package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpipe/internal/daemon"
	derrors "git.home.luguber.info/inful/docpipe/internal/errors"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
)

// ServeCmd implements the 'serve' command: the webhook server plus the
// scheduled scan daemon.
type ServeCmd struct{}

func (s *ServeCmd) Run(_ *Global, root *CLI) error {
	rt, err := newRuntime(root)
	if err != nil {
		return err
	}
	defer rt.cleanup()

	registry := prom.NewRegistry()
	recorder := metrics.NewPrometheusRecorder(registry)
	rt.runner.WithRecorder(recorder)

	d, err := daemon.New(rt.cfg, rt.runner)
	if err != nil {
		return derrors.Wrap(err, derrors.CategoryDaemon, derrors.SeverityFatal, "daemon not created")
	}
	d.WithStore(rt.store).
		WithRecorder(recorder).
		WithRegistry(registry).
		WithConfigFile(root.Config)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errChan := make(chan error, 1)
	go func() { errChan <- d.Start(ctx) }()

	select {
	case err := <-errChan:
		if err != nil {
			return derrors.Wrap(err, derrors.CategoryDaemon, derrors.SeverityFatal, "daemon failed")
		}
		// Start returned on its own; fall through to an orderly Stop.
	case <-ctx.Done():
		slog.Info("shutdown signal received, stopping daemon")
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()

	if err := d.Stop(stopCtx); err != nil {
		return derrors.Wrap(err, derrors.CategoryDaemon, derrors.SeverityError, "daemon stop failed")
	}

	slog.Info("daemon stopped")
	return nil
}
