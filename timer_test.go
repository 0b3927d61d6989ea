package coro

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// TestSleepOrdering is scenario 4: tasks sleeping for ascending durations
// must complete, and therefore append their delay, in ascending order.
func TestSleepOrdering(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var mu sync.Mutex
	var order []int

	for i := 1; i <= 8; i++ {
		ms := int64(i)
		p.Sched(NewTask(func(tc *TaskCtx) int32 {
			tc.SleepMS(ms)
			mu.Lock()
			order = append(order, int(ms))
			mu.Unlock()
			return CodeOK.Int32()
		}))
	}

	p.Run()

	require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8}, order)
}

// TestVarSleepStop exercises the interruptible sleep: Stop wakes the
// sleeper early with CodeOK, well before its long deadline would fire.
func TestVarSleepStop(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var handle VarSleepHandle
	var code int32
	done := make(chan struct{})

	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		code = tc.VarSleepUS((5 * time.Second).Microseconds(), &handle)
		close(done)
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		tc.SleepMS(5)
		handle.Stop()
		return CodeOK.Int32()
	}))

	p.Run()

	select {
	case <-done:
	default:
		t.Fatal("sleeper never resumed")
	}
	require.Equal(t, CodeOK.Int32(), code)
	require.Equal(t, VarSleepElapsed, handle.state)
}
