package coro

import (
	"runtime"
	"time"
)

// TaskFunc is the body of a coroutine: given a context for suspension
// operations, it runs to completion and returns an integer result (§3).
type TaskFunc func(tc *TaskCtx) int32

// Task is an unstarted coroutine value: the suspendable computation before
// it has been scheduled (spawn edge) or awaited (call edge). A Task that is
// dropped without either happening is a detached task (§4.1) and is
// reported via the diagnostic channel, detected here with a finalizer
// rather than requiring an explicit Close call, since the spec models this
// as a passive "was it ever used" flag rather than an owned resource.
type Task struct {
	fn       TaskFunc
	ownChain *modNode
	consumed bool
}

// NewTask constructs an unstarted task value wrapping fn.
func NewTask(fn TaskFunc) *Task {
	t := &Task{fn: fn}
	runtime.SetFinalizer(t, detachedTaskFinalizer)
	return t
}

func detachedTaskFinalizer(t *Task) {
	if !t.consumed {
		getGlobalLogger().Error("task dropped without being scheduled or awaited", "error", ErrDetachedTask)
	}
}

func (t *Task) markConsumed() {
	t.consumed = true
	runtime.SetFinalizer(t, nil)
}

// Timed returns t with a timeout modifier prepended to its own chain
// (§6's `timed`).
func Timed(t *Task, duration time.Duration) *Task {
	mod := newTimeoutModifier(duration)
	t.ownChain = &modNode{mod: mod, next: t.ownChain}
	return t
}

// Trace returns t with a trace modifier prepended to its own chain (§6's
// `trace`). fn is invoked for every lifecycle event observed anywhere in
// t's call chain while it is executing, with the event kind, the frame
// identity, and ctx.
func Trace(t *Task, fn TraceFunc, ctx interface{}) *Task {
	mod := newTraceModifier(fn, ctx)
	t.ownChain = &modNode{mod: mod, next: t.ownChain}
	return t
}
