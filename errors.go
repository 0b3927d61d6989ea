package coro

import "errors"

// Sentinel errors returned by the runtime. Wrap with fmt.Errorf("...: %w", ...)
// at call sites and unwrap with errors.Is/errors.As.
var (
	// ErrDetachedTask is reported when a task value is dropped without ever
	// having been scheduled or awaited.
	ErrDetachedTask = errors.New("coro: task dropped without being scheduled or awaited")

	// ErrTimerPoolExhausted is never returned to callers (the timer pool
	// falls back to allocating a fresh handle) and no code path logs it: a
	// handle released while the pool is at capacity is closed silently.
	ErrTimerPoolExhausted = errors.New("coro: timer pool at capacity")

	// ErrInvalidWaiterMask is returned when a caller tries to register a
	// second waiter on an fd for an event bit that already has a waiter.
	ErrInvalidWaiterMask = errors.New("coro: fd already has a waiter for one of the requested events")

	// ErrPanic wraps a recovered panic from a task body. It is never
	// returned directly (the return-slot protocol only carries int32
	// codes); a CodeGenericFailure caused by a panic additionally sets the
	// root's lastPanic to a wrapped ErrPanic, retrievable via
	// TaskCtx.LastPanic.
	ErrPanic = errors.New("coro: task panicked")

	// ErrPoolClosed is returned by Pool.Sched and logged by Pool.Run when
	// attempted after the owning Pool has been closed.
	ErrPoolClosed = errors.New("coro: pool closed")

	// ErrSemaphoreMisuse is logged when a SemGuard is released twice.
	// Reusing a VarSleepHandle while it is still armed is not detected.
	ErrSemaphoreMisuse = errors.New("coro: semaphore waiter misuse")
)
