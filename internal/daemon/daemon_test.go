package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpipe/internal/config"
)

func daemonConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Daemon: config.DaemonConfig{ScanInterval: "0", QueueSize: 4, Workers: 1},
	}
}

func startDaemon(t *testing.T, d *Daemon) chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- d.Start(context.Background()) }()

	require.Eventually(t, func() bool {
		return d.Status() == StatusRunning
	}, 2*time.Second, 10*time.Millisecond)

	return done
}

func stopDaemon(t *testing.T, d *Daemon, done chan error) {
	t.Helper()
	require.NoError(t, d.Stop(context.Background()))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
	require.Equal(t, StatusStopped, d.Status())
}

func TestNew_RequiresConfigAndRunner(t *testing.T) {
	_, err := New(nil, &fakeService{})
	require.Error(t, err)

	_, err = New(daemonConfig(), nil)
	require.Error(t, err)

	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)
	require.Equal(t, StatusStopped, d.Status())
}

func TestDaemon_StartStop(t *testing.T) {
	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)

	done := startDaemon(t, d)
	stopDaemon(t, d, done)
}

func TestDaemon_Start_RejectsWhenRunning(t *testing.T) {
	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)

	done := startDaemon(t, d)
	t.Cleanup(func() { stopDaemon(t, d, done) })

	err = d.Start(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "not stopped")
}

func TestDaemon_Stop_NoopWhenStopped(t *testing.T) {
	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)

	require.NoError(t, d.Stop(context.Background()))
	require.Equal(t, StatusStopped, d.Status())
}

func TestDaemon_EnqueueProcess_RunsJob(t *testing.T) {
	svc := &fakeService{}
	d, err := New(daemonConfig(), svc)
	require.NoError(t, err)

	done := startDaemon(t, d)
	t.Cleanup(func() { stopDaemon(t, d, done) })

	id, err := d.EnqueueProcess(context.Background(), "acme/docs")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	require.Eventually(t, func() bool {
		repos := svc.processedRepos()
		return len(repos) == 1 && repos[0] == "acme/docs"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDaemon_EnqueueProcess_RejectedWhenStopped(t *testing.T) {
	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)

	_, err = d.EnqueueProcess(context.Background(), "acme/docs")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not running")
}

func TestDaemon_ApplyConfig_ReschedulesScan(t *testing.T) {
	d, err := New(daemonConfig(), &fakeService{})
	require.NoError(t, err)

	done := startDaemon(t, d)
	t.Cleanup(func() { stopDaemon(t, d, done) })
	require.Nil(t, d.scheduler)

	newCfg := daemonConfig()
	newCfg.Daemon.ScanInterval = "1h"
	require.NoError(t, d.applyConfig(newCfg))

	require.NotNil(t, d.scheduler)
	require.Equal(t, time.Hour, d.scanInterval())
}

func TestDaemon_ScanInterval_Parsing(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"30m", 30 * time.Minute},
		{"45s", 45 * time.Second},
		{"0", 0},
		{"", 0},
		{"soon", 0},
	}

	for _, tt := range tests {
		cfg := daemonConfig()
		cfg.Daemon.ScanInterval = tt.raw
		d, err := New(cfg, &fakeService{})
		require.NoError(t, err)
		require.Equal(t, tt.want, d.scanInterval(), "interval %q", tt.raw)
	}
}
