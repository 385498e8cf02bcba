// Package daemon runs the pipeline continuously: a worker queue for
// webhook-triggered processing, scheduled organization scans, an HTTP
// surface for health, metrics, and webhooks, and optional configuration
// reload on file change.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/docpipe/internal/config"
	"git.home.luguber.info/inful/docpipe/internal/docstore"
	"git.home.luguber.info/inful/docpipe/internal/logfields"
	"git.home.luguber.info/inful/docpipe/internal/metrics"
	"git.home.luguber.info/inful/docpipe/internal/server"
	"git.home.luguber.info/inful/docpipe/internal/services"
)

// DaemonStatus is the lifecycle state of the daemon.
type DaemonStatus string

const (
	StatusStopped  DaemonStatus = "stopped"
	StatusStarting DaemonStatus = "starting"
	StatusRunning  DaemonStatus = "running"
	StatusStopping DaemonStatus = "stopping"
	StatusError    DaemonStatus = "error"
)

// initialScanDelay is how long after startup the first scan is enqueued.
const initialScanDelay = 3 * time.Second

// Daemon ties the queue, scheduler, HTTP server, and config watcher into one
// long-running service.
type Daemon struct {
	mu         sync.RWMutex
	cfg        *config.Config
	configPath string
	runner     services.Service
	store      *docstore.Store
	recorder   metrics.Recorder
	registry   *prom.Registry

	status    atomic.Value // DaemonStatus
	startTime time.Time
	stopChan  chan struct{}

	queue      *Queue
	scheduler  *Scheduler
	watcher    *ConfigWatcher
	httpServer *server.Server
}

// New creates a stopped daemon around cfg and runner.
func New(cfg *config.Config, runner services.Service) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if runner == nil {
		return nil, errors.New("service runner is required")
	}

	d := &Daemon{
		cfg:      cfg,
		runner:   runner,
		recorder: metrics.NoopRecorder{},
		stopChan: make(chan struct{}),
	}
	d.status.Store(StatusStopped)
	return d, nil
}

// WithStore attaches the document store. The job ledger and the health
// endpoint's job count come from it.
func (d *Daemon) WithStore(store *docstore.Store) *Daemon {
	d.store = store
	return d
}

// WithRecorder attaches a metrics recorder.
func (d *Daemon) WithRecorder(rec metrics.Recorder) *Daemon {
	if rec != nil {
		d.recorder = rec
	}
	return d
}

// WithRegistry attaches the Prometheus registry served on /metrics.
func (d *Daemon) WithRegistry(registry *prom.Registry) *Daemon {
	d.registry = registry
	return d
}

// WithConfigFile enables configuration reload for path when the daemon
// configuration has watching turned on.
func (d *Daemon) WithConfigFile(path string) *Daemon {
	d.configPath = path
	return d
}

// Start brings all components up and then blocks until Stop is called or ctx
// is cancelled. Teardown happens in Stop, not here.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if status := d.Status(); status != StatusStopped {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not stopped: %s", status)
	}

	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.stopChan = make(chan struct{})

	slog.Info("starting daemon")

	d.queue = NewQueue(d.cfg.Daemon.QueueSize, d.cfg.Daemon.Workers, d.runner).
		WithStore(d.store).
		WithRecorder(d.recorder)
	d.httpServer = server.New(d.cfg.Server, d.store, server.EnqueueFunc(d.enqueueWebhook), d.registry)

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return fmt.Errorf("start http server: %w", err)
	}

	d.queue.Start(ctx)

	if interval := d.scanIntervalLocked(); interval > 0 {
		if err := d.startSchedulerLocked(ctx, interval); err != nil {
			d.status.Store(StatusError)
			d.teardown(ctx)
			d.mu.Unlock()
			return err
		}
	} else {
		slog.Info("periodic scans disabled")
	}

	if d.cfg.Daemon.WatchConfig && d.configPath != "" {
		watcher, err := NewConfigWatcher(d.configPath, d.applyConfig)
		if err != nil {
			slog.Error("config watcher unavailable", logfields.Error(err))
		} else if err := watcher.Start(ctx); err != nil {
			slog.Error("config watcher not started", logfields.Error(err))
		} else {
			d.watcher = watcher
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("daemon started",
		slog.String("listen", fmt.Sprintf("%s:%d", d.cfg.Server.Host, d.cfg.Server.Port)),
		slog.String("scan_interval", d.cfg.Daemon.ScanInterval),
		slog.Int("workers", d.cfg.Daemon.Workers))
	d.mu.Unlock()

	d.mainLoop(ctx)
	return nil
}

// Stop shuts components down in reverse start order.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	status := d.Status()
	if status == StatusStopped || status == StatusStopping {
		return nil
	}

	d.status.Store(StatusStopping)
	slog.Info("stopping daemon")

	select {
	case <-d.stopChan:
	default:
		close(d.stopChan)
	}

	d.teardown(ctx)

	d.status.Store(StatusStopped)
	slog.Info("daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return nil
}

func (d *Daemon) teardown(ctx context.Context) {
	if d.watcher != nil {
		if err := d.watcher.Stop(ctx); err != nil {
			slog.Error("config watcher stop failed", logfields.Error(err))
		}
		d.watcher = nil
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(ctx); err != nil {
			slog.Error("scheduler stop failed", logfields.Error(err))
		}
		d.scheduler = nil
	}
	if d.queue != nil {
		d.queue.Stop(ctx)
	}
	if d.httpServer != nil {
		if err := d.httpServer.Stop(ctx); err != nil {
			slog.Error("http server stop failed", logfields.Error(err))
		}
	}
}

// Status returns the daemon lifecycle state.
func (d *Daemon) Status() DaemonStatus {
	status, ok := d.status.Load().(DaemonStatus)
	if !ok {
		return StatusError
	}
	return status
}

// StartTime returns when Start was called.
func (d *Daemon) StartTime() time.Time {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.startTime
}

// Queue exposes the job queue for status inspection. The field is assigned
// once in Start before any component that could reach it is running, so
// reads need no lock.
func (d *Daemon) Queue() *Queue {
	return d.queue
}

// EnqueueProcess queues a manual processing run for one repository.
func (d *Daemon) EnqueueProcess(ctx context.Context, repository string) (string, error) {
	return d.enqueueJob(ctx, repository, TriggerManual)
}

// enqueueWebhook is wired into the HTTP server as its Enqueuer.
func (d *Daemon) enqueueWebhook(ctx context.Context, repository string) (string, error) {
	return d.enqueueJob(ctx, repository, TriggerWebhook)
}

// enqueueJob runs on HTTP handler goroutines during shutdown, so it must not
// take d.mu; the queue field is safe to read without it (see Queue).
func (d *Daemon) enqueueJob(ctx context.Context, repository string, trigger Trigger) (string, error) {
	if status := d.Status(); status != StatusRunning && status != StatusStarting {
		return "", fmt.Errorf("daemon is not running: %s", status)
	}
	if d.queue == nil {
		return "", errors.New("job queue is not available")
	}

	return d.queue.EnqueueProcess(ctx, repository, trigger)
}

func (d *Daemon) enqueueScan(ctx context.Context) {
	if d.queue == nil {
		return
	}

	if _, err := d.queue.EnqueueScan(ctx, TriggerSchedule); err != nil {
		slog.Error("scheduled scan not enqueued", logfields.Error(err))
	}
}

// mainLoop blocks until shutdown. Shortly after startup it enqueues the
// first scan so a fresh daemon does not wait a full interval for data.
func (d *Daemon) mainLoop(ctx context.Context) {
	initialScan := time.NewTimer(initialScanDelay)
	defer initialScan.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("main loop stopped by context")
			return
		case <-d.stopChan:
			slog.Info("main loop stopped by stop signal")
			return
		case <-initialScan.C:
			if d.scanInterval() > 0 && d.Status() == StatusRunning {
				d.enqueueScan(ctx)
			}
		}
	}
}

// applyConfig is called by the watcher with a freshly loaded configuration.
// Only the scan cadence is applied live; host, server, pipeline, and export
// settings are bound at construction and need a restart.
func (d *Daemon) applyConfig(newCfg *config.Config) error {
	d.mu.Lock()
	oldCfg := d.cfg
	d.cfg = newCfg

	if newCfg.Server != oldCfg.Server {
		slog.Warn("server settings changed, restart required to apply")
	}
	if newCfg.Host != oldCfg.Host {
		slog.Warn("host settings changed, restart required to apply")
	}

	rescheduled := false
	if newCfg.Daemon.ScanInterval != oldCfg.Daemon.ScanInterval {
		if err := d.rescheduleScanLocked(); err != nil {
			d.mu.Unlock()
			return err
		}
		rescheduled = true
	}
	d.mu.Unlock()

	if rescheduled {
		slog.Info("scan schedule updated", slog.String("scan_interval", newCfg.Daemon.ScanInterval))
	}
	return nil
}

// rescheduleScanLocked replaces the scheduler with one running at the
// current configured interval. Caller holds d.mu.
func (d *Daemon) rescheduleScanLocked() error {
	if d.scheduler != nil {
		if err := d.scheduler.Stop(context.Background()); err != nil {
			slog.Error("scheduler stop failed", logfields.Error(err))
		}
		d.scheduler = nil
	}

	interval := d.scanIntervalLocked()
	if interval <= 0 {
		slog.Info("periodic scans disabled")
		return nil
	}
	return d.startSchedulerLocked(context.Background(), interval)
}

// startSchedulerLocked creates and starts the scan scheduler. Caller holds
// d.mu.
func (d *Daemon) startSchedulerLocked(ctx context.Context, interval time.Duration) error {
	scheduler, err := NewScheduler()
	if err != nil {
		return err
	}

	if _, err := scheduler.ScheduleEvery("organization-scan", interval, func() {
		d.enqueueScan(ctx)
	}); err != nil {
		return fmt.Errorf("schedule organization scan: %w", err)
	}

	scheduler.Start(ctx)
	d.scheduler = scheduler
	return nil
}

// scanInterval parses the configured scan interval; zero disables scans.
func (d *Daemon) scanInterval() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scanIntervalLocked()
}

func (d *Daemon) scanIntervalLocked() time.Duration {
	raw := d.cfg.Daemon.ScanInterval
	if raw == "" || raw == "0" {
		return 0
	}
	interval, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid scan interval, periodic scans disabled",
			slog.String("scan_interval", raw), logfields.Error(err))
		return 0
	}
	return interval
}
