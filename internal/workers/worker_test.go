package workers

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLoopTicksAndRecordsStats(t *testing.T) {
	b := newBase("test", zerolog.Nop())

	var calls int64
	tick := func(ctx context.Context) (int, error) {
		atomic.AddInt64(&calls, 1)
		return 3, nil
	}
	interval := func(now time.Time) time.Duration { return 5 * time.Millisecond }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	b.runLoop(ctx, interval, tick)
	require.Eventually(t, func() bool { return atomic.LoadInt64(&calls) >= 2 }, time.Second, time.Millisecond)

	stats := b.Status()
	assert.Equal(t, StateIdle, stats.State)
	assert.GreaterOrEqual(t, stats.MessagesProcessed, int64(3))
	assert.False(t, stats.LastCheck.IsZero())

	b.Stop()
	assert.Equal(t, StateStopped, b.Status().State)
}

func TestRunLoopRecordsErrorState(t *testing.T) {
	b := newBase("test", zerolog.Nop())

	tick := func(ctx context.Context) (int, error) { return 0, assertError{} }
	interval := func(now time.Time) time.Duration { return 5 * time.Millisecond }

	b.runLoop(context.Background(), interval, tick)
	require.Eventually(t, func() bool { return b.Status().Errors > 0 }, time.Second, time.Millisecond)
	assert.Equal(t, StateError, b.Status().State)

	b.Stop()
}

func TestStopIsIdempotent(t *testing.T) {
	b := newBase("test", zerolog.Nop())
	b.runLoop(context.Background(), func(time.Time) time.Duration { return time.Hour }, func(context.Context) (int, error) { return 0, nil })

	b.Stop()
	b.Stop() // must not panic or block on an already-closed channel
	assert.Equal(t, StateStopped, b.Status().State)
}

type assertError struct{}

func (assertError) Error() string { return "tick failed" }
