package coro

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestTimeoutMidWait is scenario 6: a task awaiting a semaphore that is
// never released is unwound by a short timeout, returning CodeTimeout,
// and the semaphore's waiter list ends up empty (no frame leaked onto it).
func TestTimeoutMidWait(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	sem := p.NewSemaphore(0)
	var ret int32

	inner := NewTask(func(tc *TaskCtx) int32 {
		tc.SemWait(sem)
		return CodeOK.Int32() // never reached
	})
	timed := Timed(inner, 30*time.Millisecond)

	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		ret = tc.Await(timed)
		return ret
	}))

	p.Run()

	require.Equal(t, CodeTimeout.Int32(), ret)
	require.Equal(t, 0, sem.WaiterLen())
}

// TestTimeoutCancellation is scenario 7: a task finishes well before its
// timeout deadline, so the timeout's internal sleeper is stopped early and
// never fires.
func TestTimeoutCancellation(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var traceEvents []LifecycleKind
	inner := NewTask(func(tc *TaskCtx) int32 {
		tc.SleepMS(5)
		return 0
	})
	traced := Trace(inner, func(kind LifecycleKind, frame frameID, ctx interface{}) {
		traceEvents = append(traceEvents, kind)
	}, nil)
	timed := Timed(traced, 200*time.Millisecond)

	var ret int32
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		ret = tc.Await(timed)
		return ret
	}))

	p.Run()

	require.Equal(t, int32(0), ret, "the task's own result must survive, not CodeTimeout")
	require.Equal(t, float64(0), p.metrics.Counter(MetricTimeoutsFired).Value())
	require.Contains(t, traceEvents, LifecycleReturn, "the trace modifier still observes the normal return")
}
