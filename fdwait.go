package coro

// fdWaiter is one (event-mask, waiter frame) entry of §3's fd-wait table.
type fdWaiter struct {
	mask  EventMask
	frame *task
}

// fdEntry is the table's value type: the OS subscription mask (always the
// union of every waiter's mask, invariant 1 of §3) plus the waiter list.
type fdEntry struct {
	activeMask EventMask
	waiters    []*fdWaiter
}

// fdWaitTable is the pool's map from fd to its waiters (§3, §4.3).
type fdWaitTable struct {
	pool    *Pool
	entries map[int]*fdEntry
}

func newFdWaitTable(p *Pool) *fdWaitTable {
	return &fdWaitTable{pool: p, entries: make(map[int]*fdEntry)}
}

func (w *fdWaitTable) hasActiveSubscriptions() bool { return len(w.entries) > 0 }

func (w *fdWaitTable) waiterCount() int {
	n := 0
	for _, e := range w.entries {
		n += len(e.waiters)
	}
	return n
}

// insert implements the §4.3 insert protocol: subscribe fresh, or OR the
// mask into an existing subscription, rejecting if it overlaps an existing
// waiter's bits (one waiter per fd per event kind).
func (w *fdWaitTable) insert(frame *task, fd int, mask EventMask) error {
	e, ok := w.entries[fd]
	if !ok {
		if err := w.pool.poll.subscribe(fd, mask); err != nil {
			return err
		}
		e = &fdEntry{activeMask: mask}
		w.entries[fd] = e
	} else {
		for _, ww := range e.waiters {
			if ww.mask&mask != 0 {
				return ErrInvalidWaiterMask
			}
		}
		newMask := e.activeMask | mask
		if err := w.pool.poll.modify(fd, newMask); err != nil {
			return err
		}
		e.activeMask = newMask
	}
	e.waiters = append(e.waiters, &fdWaiter{mask: mask, frame: frame})
	w.pool.metrics.Gauge(MetricFdWaiters).Set(float64(w.waiterCount()))
	return nil
}

// remove implements the §4.3 remove protocol for a specific frame's
// waiter, used both by the normal resume path and by the timeout
// modifier's leaf-to-root unwind (§4.9), which already knows the fd it
// recorded at the last fd-wait hook.
func (w *fdWaitTable) remove(frame *task, fd int) {
	e, ok := w.entries[fd]
	if !ok {
		return
	}
	for i, ww := range e.waiters {
		if ww.frame == frame {
			e.waiters = append(e.waiters[:i], e.waiters[i+1:]...)
			break
		}
	}
	w.resubscribeOrDrop(fd, e)
	w.pool.metrics.Gauge(MetricFdWaiters).Set(float64(w.waiterCount()))
}

func (w *fdWaitTable) resubscribeOrDrop(fd int, e *fdEntry) {
	if len(e.waiters) == 0 {
		_ = w.pool.poll.unsubscribe(fd)
		delete(w.entries, fd)
		return
	}
	var mask EventMask
	for _, ww := range e.waiters {
		mask |= ww.mask
	}
	e.activeMask = mask
	_ = w.pool.poll.modify(fd, mask)
}

// onReady is invoked by the driver for every (fd, mask) the multiplexer
// reports ready. Every waiter whose mask overlaps is woken with CodeOK, in
// the order they are stored (insertion order), matching §4.7's "fd
// readiness ... append to the ready queue in the order the multiplexer
// reports them" for the outer fd loop; waiters on one fd have no further
// ordering guarantee among themselves beyond that, per §5.
func (w *fdWaitTable) onReady(fd int, mask EventMask) {
	e, ok := w.entries[fd]
	if !ok {
		return
	}
	var remaining []*fdWaiter
	for _, ww := range e.waiters {
		if ww.mask&mask != 0 {
			frame := ww.frame
			w.pool.dispatchFdUnwait(frame, fd, ww.mask)
			w.pool.wake(frame.root, CodeOK.Int32())
		} else {
			remaining = append(remaining, ww)
		}
	}
	e.waiters = remaining
	w.resubscribeOrDrop(fd, e)
	w.pool.metrics.Gauge(MetricFdWaiters).Set(float64(w.waiterCount()))
}

// WaitEvent suspends the current frame until fd's readiness overlaps mask
// (§4.3, §6's wait_event).
func (tc *TaskCtx) WaitEvent(fd int, mask EventMask) int32 {
	frame := tc.frame
	p := tc.pool
	if err := p.fdTable.insert(frame, fd, mask); err != nil {
		p.log.Error("fd wait registration failed", "fd", fd, "error", err)
		return CodeGenericFailure.Int32()
	}
	p.dispatchFdWait(frame, fd, mask)
	return p.suspend(frame, suspendFd)
}

// Stopfd wakes every waiter on fd with CodeWakeup and unsubscribes fd,
// guaranteeing that no waiter will subsequently try to unsubscribe a fd the
// caller is about to close (§4.6).
func (p *Pool) Stopfd(fd int) {
	e, ok := p.fdTable.entries[fd]
	if !ok {
		return
	}
	for _, ww := range e.waiters {
		frame := ww.frame
		p.dispatchFdUnwait(frame, fd, ww.mask)
		p.wake(frame.root, CodeWakeup.Int32())
	}
	delete(p.fdTable.entries, fd)
	_ = p.poll.unsubscribe(fd)
	p.metrics.Gauge(MetricFdWaiters).Set(float64(p.fdTable.waiterCount()))
}
