package coro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestSemaphorePingPong is the scaled-down rendering of the ping-pong
// scenario: two tasks alternate strictly via a pair of semaphores, one
// permit apiece, for a small iteration count rather than the original's
// 10^6 (a `go test` run should finish in milliseconds, not minutes).
func TestSemaphorePingPong(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	const iterations = 100
	pingReady := p.NewSemaphore(1) // ping goes first
	pongReady := p.NewSemaphore(0)

	var order []string

	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		for i := 0; i < iterations; i++ {
			tc.SemWait(pingReady) // consumes the turn pong (or the initial 1) handed us
			order = append(order, "ping")
			pongReady.Release() // hand the turn to pong
		}
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		for i := 0; i < iterations; i++ {
			tc.SemWait(pongReady)
			order = append(order, "pong")
			if i != iterations-1 {
				pingReady.Release()
			}
		}
		return CodeOK.Int32()
	}))

	p.Run()

	require.Len(t, order, 2*iterations)
	for i := 0; i < iterations; i++ {
		require.Equal(t, "ping", order[2*i])
		require.Equal(t, "pong", order[2*i+1])
	}
}

// TestSemaphoreDelayedInitialRelease exercises a negative-initial-counter
// semaphore where the releases happen (and are absorbed into the counter,
// since release never suspends and no waiter is queued yet) before the
// awaiter ever calls Wait: the counter crawls from -2 up to 0 without
// waking anything, and only a later release, once the awaiter is actually
// queued, transfers directly to it per §4.4 ("moves a single waiter ...
// without incrementing the counter").
func TestSemaphoreDelayedInitialRelease(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	sem := p.NewSemaphore(-2)
	woken := false

	// Scheduled first: runs to completion (release never suspends) before
	// the awaiter below ever gets a turn.
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		sem.Release()
		sem.Release()
		require.Equal(t, 0, sem.Counter(), "both releases were absorbed; no waiter was queued yet")
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		tc.SemWait(sem)
		woken = true
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		tc.Yield() // let the awaiter above enqueue itself first
		require.False(t, woken, "the awaiter must be queued, not yet woken")
		sem.Release()
		return CodeOK.Int32()
	}))

	p.Run()
	require.True(t, woken)
}

func TestSemaphoreReleaseAll(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	sem := p.NewSemaphore(-3)
	wokenCount := 0

	for i := 0; i < 3; i++ {
		p.Sched(NewTask(func(tc *TaskCtx) int32 {
			tc.SemWait(sem)
			wokenCount++
			return CodeOK.Int32()
		}))
	}
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		sem.ReleaseAll()
		return CodeOK.Int32()
	}))

	p.Run()
	require.Equal(t, 3, wokenCount)
	require.Equal(t, 0, sem.Counter())
}
