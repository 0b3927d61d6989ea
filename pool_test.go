package coro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolRunSingleTask(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	ran := false
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		ran = true
		return 42
	}))

	got := p.Run()
	require.True(t, ran)
	require.Equal(t, int32(0), got) // Run returns stopVal (0), not the task's own result
}

func TestYieldOrdering(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var order []string

	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		order = append(order, "a1")
		tc.Yield()
		order = append(order, "a2")
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		order = append(order, "b1")
		tc.Yield()
		order = append(order, "b2")
		return CodeOK.Int32()
	}))

	p.Run()
	require.Equal(t, []string{"a1", "b1", "a2", "b2"}, order)
}

func TestAwaitIsSynchronousCallEdge(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var order []string
	child := NewTask(func(tc *TaskCtx) int32 {
		order = append(order, "child")
		return 7
	})
	var ret int32
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		order = append(order, "parent-before")
		ret = tc.Await(child)
		order = append(order, "parent-after")
		return ret
	}))

	p.Run()
	require.Equal(t, []string{"parent-before", "child", "parent-after"}, order)
	require.Equal(t, int32(7), ret)
}

func TestForceStopResumability(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	resumed := false
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		tc.ForceStop(99)
		resumed = true
		return CodeOK.Int32()
	}))

	got := p.Run()
	require.Equal(t, int32(99), got)
	require.False(t, resumed, "task must not resume past force_stop until run is called again")

	got2 := p.Run()
	require.True(t, resumed, "a later run call resumes as if nothing had happened")
	require.Equal(t, int32(0), got2)
}
