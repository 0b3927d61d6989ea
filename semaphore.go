package coro

import "container/list"

// Semaphore is an integer counter (may be negative) plus a strict-FIFO
// queue of waiting frames, per §3/§4.4. It is owned by user code: its
// lifetime must exceed that of any frame suspended on it.
type Semaphore struct {
	counter int
	waiters *list.List // of *semWaiter, push-back on wait, pop-front on release
	pool    *Pool
}

type semWaiter struct {
	frame *task
	elem  *list.Element
}

// NewSemaphore creates a semaphore owned by p with the given initial
// counter value. A negative initial value must be raised above zero by
// releases before a SemWait can pass without queuing; a Release made while a
// waiter is already queued wakes that waiter directly, whatever the counter.
func (p *Pool) NewSemaphore(initial int) *Semaphore {
	return &Semaphore{counter: initial, waiters: list.New(), pool: p}
}

// SemGuard is returned by TaskCtx.SemWait; calling Release (typically via
// defer, the idiomatic Go rendering of the spec's scope-based unlock guard)
// releases the semaphore exactly once.
type SemGuard struct {
	sem      *Semaphore
	released bool
}

// Release drops the guard, releasing its semaphore. A second call is a
// no-op (ErrSemaphoreMisuse is logged but not returned, matching the
// programmer-error handling in §7).
func (g *SemGuard) Release() {
	if g.released {
		getGlobalLogger().Warn("semaphore guard released twice", "error", ErrSemaphoreMisuse)
		return
	}
	g.released = true
	g.sem.Release()
}

// SemWait suspends the current frame until the semaphore's counter is
// positive, decrementing it (or joining the FIFO waiter queue), and returns
// an unlock guard.
func (tc *TaskCtx) SemWait(sem *Semaphore) *SemGuard {
	frame := tc.frame
	if sem.counter > 0 {
		sem.counter--
		return &SemGuard{sem: sem}
	}

	tc.pool.dispatchSemWait(frame, sem)
	w := &semWaiter{frame: frame}
	w.elem = sem.waiters.PushBack(w)
	tc.pool.suspend(frame, suspendSem)
	tc.pool.dispatchSemUnwait(frame, sem)

	return &SemGuard{sem: sem}
}

// Release implements §4.4: if a waiter is queued, it is moved to the ready
// queue without incrementing the counter; otherwise the counter increments.
func (s *Semaphore) Release() {
	if front := s.waiters.Front(); front != nil {
		w := s.waiters.Remove(front).(*semWaiter)
		s.pool.wake(w.frame.root, CodeOK.Int32())
		return
	}
	s.counter++
}

// ReleaseAll moves the counter from <= 0 to 0, releasing exactly that many
// waiters. If the counter is already positive this is a no-op: the counter
// is never raised further.
func (s *Semaphore) ReleaseAll() {
	for s.counter < 0 {
		s.counter++
		if front := s.waiters.Front(); front != nil {
			w := s.waiters.Remove(front).(*semWaiter)
			s.pool.wake(w.frame.root, CodeOK.Int32())
		}
	}
}

// Counter returns the current counter value (for tests and diagnostics).
func (s *Semaphore) Counter() int { return s.counter }

// WaiterLen returns the number of queued waiters (for tests/diagnostics).
func (s *Semaphore) WaiterLen() int { return s.waiters.Len() }

// removeWaiter splices a specific frame's waiter node out of the queue,
// used by the timeout modifier's leaf-to-root unwind (§4.9) via the stored
// iterator analogue (we re-scan since list.List has no direct frame index;
// waiter lists are expected to be short relative to a single timeout firing).
func (s *Semaphore) removeWaiter(frame *task) bool {
	for e := s.waiters.Front(); e != nil; e = e.Next() {
		if e.Value.(*semWaiter).frame == frame {
			s.waiters.Remove(e)
			return true
		}
	}
	return false
}
