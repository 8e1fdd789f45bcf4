// Package workers runs the three scheduled evaluation loops — breakout
// watching, in-position checking, and market-regime refresh — each on
// its own cadence; the position and breakout workers widen from a
// market-hours interval to a longer off-hours one, and still evaluate on
// each off-hours tick. Cadence shape is grounded on
// aristath-sentinel's internal/queue.Scheduler: one goroutine per cadence,
// a shared stop channel plus WaitGroup for clean shutdown, and a
// market-state-aware interval instead of a fixed one.
package workers

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is a worker's current lifecycle state, surfaced to the
// supervisor's status report.
type State string

const (
	StateIdle    State = "idle"
	StateRunning State = "running"
	StateWaiting State = "waiting"
	StateError   State = "error"
	StateStopped State = "stopped"
)

// Stats is a worker's health counters, read by the supervisor's STATUS
// command and reset only on process restart.
type Stats struct {
	MessagesProcessed int64
	Errors            int64
	LastCheck         time.Time
	State             State
}

// base holds the cadence-loop machinery shared by every worker: a
// ticker-driven goroutine, a stop channel, and a stats snapshot guarded
// by a mutex so Status() is safe to call concurrently from the
// supervisor's IPC handler.
type base struct {
	name string
	log  zerolog.Logger

	mu      sync.Mutex
	stats   Stats
	stop    chan struct{}
	stopped bool
	wg      sync.WaitGroup
}

func newBase(name string, log zerolog.Logger) base {
	return base{
		name:  name,
		log:   log.With().Str("component", "worker").Str("worker", name).Logger(),
		stats: Stats{State: StateIdle},
		stop:  make(chan struct{}),
	}
}

// Name identifies the worker in logs and supervisor status output.
func (b *base) Name() string { return b.name }

// Status returns a snapshot of this worker's counters.
func (b *base) Status() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *base) setState(s State) {
	b.mu.Lock()
	b.stats.State = s
	b.mu.Unlock()
}

func (b *base) recordRun(processed int, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.LastCheck = time.Now()
	b.stats.MessagesProcessed += int64(processed)
	if err != nil {
		b.stats.Errors++
		b.stats.State = StateError
		return
	}
	b.stats.State = StateIdle
}

// runLoop ticks at interval() — re-evaluated every tick so a worker can
// widen its own cadence off-hours — invoking tick on every fire until
// stop is closed.
func (b *base) runLoop(ctx context.Context, interval func(now time.Time) time.Duration, tick func(ctx context.Context) (processed int, err error)) {
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		timer := time.NewTimer(interval(time.Now()))
		defer timer.Stop()
		for {
			select {
			case <-b.stop:
				return
			case <-ctx.Done():
				return
			case <-timer.C:
				b.setState(StateRunning)
				processed, err := tick(ctx)
				if err != nil {
					b.log.Error().Err(err).Msg("worker tick failed")
				}
				b.recordRun(processed, err)
				timer.Reset(interval(time.Now()))
			}
		}
	}()
}

// Stop signals the worker's loop to exit and waits for it to finish.
func (b *base) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	b.mu.Unlock()

	close(b.stop)
	b.wg.Wait()
	b.setState(StateStopped)
}
