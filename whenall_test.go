package coro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWhenAll(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	a := NewTask(func(tc *TaskCtx) int32 { return 0x1 })
	b := NewTask(func(tc *TaskCtx) int32 { return 0x2 })
	c := NewTask(func(tc *TaskCtx) int32 {
		tc.Yield()
		return 0x4
	})

	var result int32
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		result = tc.WhenAll(a, b, c)
		return result
	}))

	p.Run()
	require.Equal(t, int32(0x7), result)
}

func TestWhenAllEmpty(t *testing.T) {
	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var result int32
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		result = tc.WhenAll()
		return result
	}))

	p.Run()
	require.Equal(t, CodeOK.Int32(), result)
}
