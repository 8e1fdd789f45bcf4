// Package supervisor owns process lifecycle for the worker set: starting
// them together, restarting one by name without touching the others,
// graceful shutdown with a deadline, and a local IPC surface so an
// operator tool can query status or trigger a shutdown without sending
// a signal. IPC framing is grounded on display/bridge's RPClite-over-
// msgpack client (request/response over a raw socket); here the
// transport is a go-chi router served over a Unix socket listener
// instead of a raw net.Conn loop, and gopsutil supplies the process
// health numbers the status report carries.
package supervisor

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/canslim/sentinel/internal/workers"
	"github.com/go-chi/chi/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// gracefulShutdownTimeout bounds how long a SHUTDOWN command waits for
// in-flight worker ticks before forcing the process down.
const gracefulShutdownTimeout = 30 * time.Second

// Worker is the subset of a worker's lifecycle the supervisor drives.
// internal/workers' three concrete workers all satisfy this.
type Worker interface {
	Name() string
	Start(ctx context.Context)
	Status() workers.Stats
	Stop()
}

// Supervisor starts, restarts, and gracefully stops a fixed worker set,
// and exposes their status over a Unix-socket IPC endpoint.
type Supervisor struct {
	workers   map[string]Worker
	log       zerolog.Logger
	startedAt time.Time

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	socketPath string
	listener   net.Listener
	httpServer *http.Server

	cron *cron.Cron
}

// New builds a Supervisor over the given named workers.
func New(socketPath string, log zerolog.Logger, ws ...Worker) *Supervisor {
	byName := make(map[string]Worker, len(ws))
	for _, w := range ws {
		byName[w.Name()] = w
	}
	return &Supervisor{
		workers:    byName,
		log:        log.With().Str("component", "supervisor").Logger(),
		socketPath: socketPath,
	}
}

// Start launches every worker and the IPC listener. Crash recovery is
// intentionally simple: on a fresh start every worker rebuilds its view
// of the world solely from the repositories (GetInPosition/GetWatching/
// GetCurrent), never from in-process state, so a restart after a crash
// picks up exactly where the database says work left off.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.startedAt = time.Now()
	ctx := s.ctx
	s.mu.Unlock()

	for _, w := range s.workers {
		w.Start(ctx)
	}

	return s.startIPC()
}

// Stop signals shutdown, gives in-flight worker ticks up to timeout to
// finish, and force-returns (logging stragglers) if that deadline
// passes. A final status snapshot is logged either way.
func (s *Supervisor) Stop(timeout time.Duration) {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	if s.cron != nil {
		cronCtx := s.cron.Stop()
		<-cronCtx.Done()
	}

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.log.Warn().Err(err).Msg("ipc server did not shut down cleanly")
		}
	}

	done := make(chan struct{})
	go func() {
		for _, w := range s.workers {
			w.Stop()
		}
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("all workers stopped cleanly")
	case <-time.After(timeout):
		s.log.Warn().Msg("shutdown timeout elapsed with workers still stopping")
	}

	s.log.Info().Interface("status", s.Status()).Msg("final status at shutdown")
	if s.socketPath != "" {
		os.Remove(s.socketPath)
	}
}

// RestartWorker stops and restarts a single named worker in place,
// leaving the rest of the set untouched.
func (s *Supervisor) RestartWorker(name string) error {
	w, ok := s.workers[name]
	if !ok {
		return fmt.Errorf("no such worker: %s", name)
	}
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx == nil {
		return fmt.Errorf("supervisor not started")
	}

	w.Stop()
	w.Start(ctx)
	s.log.Info().Str("worker", name).Msg("worker restarted")
	return nil
}

// StatusReport is the supervisor-wide health snapshot the STATUS command
// returns.
type StatusReport struct {
	UptimeSeconds float64                  `msgpack:"uptime_seconds"`
	CPUPercent    float64                  `msgpack:"cpu_percent"`
	MemPercent    float64                  `msgpack:"mem_percent"`
	Workers       map[string]workers.Stats `msgpack:"workers"`
}

// Status gathers per-worker stats plus host CPU/RAM usage.
func (s *Supervisor) Status() StatusReport {
	report := StatusReport{
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
		Workers:       make(map[string]workers.Stats, len(s.workers)),
	}

	if pcts, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		report.CPUPercent = pcts[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		report.MemPercent = vm.UsedPercent
	}

	for name, w := range s.workers {
		report.Workers[name] = w.Status()
	}
	return report
}

func (s *Supervisor) router() *chi.Mux {
	r := chi.NewRouter()
	r.Get("/status", s.handleStatus)
	r.Post("/shutdown", s.handleShutdown)
	r.Post("/refresh/{worker}", s.handleRefresh)
	return r
}
