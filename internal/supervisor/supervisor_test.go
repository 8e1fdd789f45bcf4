package supervisor

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/canslim/sentinel/internal/workers"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWorker struct {
	name string

	mu      sync.Mutex
	started int
	stopped int
}

func (f *fakeWorker) Name() string { return f.name }

func (f *fakeWorker) Start(ctx context.Context) {
	f.mu.Lock()
	f.started++
	f.mu.Unlock()
}

func (f *fakeWorker) Stop() {
	f.mu.Lock()
	f.stopped++
	f.mu.Unlock()
}

func (f *fakeWorker) Status() workers.Stats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return workers.Stats{MessagesProcessed: int64(f.started), State: workers.StateIdle}
}

func (f *fakeWorker) counts() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.started, f.stopped
}

func newTestSupervisor(t *testing.T) (*Supervisor, *fakeWorker) {
	t.Helper()
	w := &fakeWorker{name: "position"}
	sock := filepath.Join(t.TempDir(), "sentinel.sock")
	return New(sock, zerolog.Nop(), w), w
}

func TestStartLaunchesEveryWorker(t *testing.T) {
	sup, w := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	defer sup.Stop(time.Second)

	started, _ := w.counts()
	assert.Equal(t, 1, started)
}

func TestStatusAggregatesWorkerStats(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	defer sup.Stop(time.Second)

	report := sup.Status()
	require.Contains(t, report.Workers, "position")
	assert.GreaterOrEqual(t, report.UptimeSeconds, 0.0)
}

func TestRestartWorkerStopsAndStartsOnlyThatWorker(t *testing.T) {
	sup, w := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	defer sup.Stop(time.Second)

	require.NoError(t, sup.RestartWorker("position"))

	started, stopped := w.counts()
	assert.Equal(t, 2, started)
	assert.Equal(t, 1, stopped)
}

func TestRestartWorkerUnknownNameErrors(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	require.NoError(t, sup.Start())
	defer sup.Stop(time.Second)

	err := sup.RestartWorker("nonexistent")
	assert.Error(t, err)
}

func TestStopStopsEveryWorker(t *testing.T) {
	sup, w := newTestSupervisor(t)
	require.NoError(t, sup.Start())

	sup.Stop(time.Second)

	_, stopped := w.counts()
	assert.Equal(t, 1, stopped)
}
