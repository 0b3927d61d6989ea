package coro

import (
	"time"

	"golang.org/x/sys/unix"
)

// timerHandle is one reusable one-shot timer (§3's Timer pool), surfaced as
// a readable fd via the self-pipe trick: arming spawns a goroutine that
// waits on the pool's clock source and writes a byte to the pipe when it
// elapses, which is exactly the "exposed as a waitable fd" contract §6
// asks for, and lets WithClock(clockz.NewFakeClock()) drive deterministic
// timer tests without a real OS timer object.
type timerHandle struct {
	readFd, writeFd int
	stop            chan struct{}
}

func newPipePair() (int, int, error) {
	var fds [2]int
	if err := unix.Pipe(fds[:]); err != nil {
		return 0, 0, err
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			unix.Close(fds[0])
			unix.Close(fds[1])
			return 0, 0, err
		}
	}
	return fds[0], fds[1], nil
}

// timerPool is the bounded LIFO cache of idle timer handles (§3, capacity
// 64 by default per §6).
type timerPool struct {
	pool     *Pool
	capacity int
	free     []*timerHandle
	armed    map[int]*timerHandle // by readFd
}

func newTimerPool(p *Pool, capacity int) *timerPool {
	return &timerPool{pool: p, capacity: capacity, armed: make(map[int]*timerHandle)}
}

func (tp *timerPool) armedCount() int { return len(tp.armed) }

func (tp *timerPool) acquire() (*timerHandle, error) {
	if n := len(tp.free); n > 0 {
		h := tp.free[n-1]
		tp.free = tp.free[:n-1]
		tp.pool.metrics.Gauge(MetricTimerPoolCached).Set(float64(len(tp.free)))
		return h, nil
	}
	r, w, err := newPipePair()
	if err != nil {
		return nil, err
	}
	return &timerHandle{readFd: r, writeFd: w}, nil
}

// arm starts the clock wait for h. Exactly one of the wait elapsing or stop
// being closed will result in at most one byte written to the pipe.
func (tp *timerPool) arm(h *timerHandle, d time.Duration) {
	stop := make(chan struct{})
	h.stop = stop
	clock := tp.pool.clock
	writeFd := h.writeFd
	go func() {
		select {
		case <-clock.After(d):
			unix.Write(writeFd, []byte{1})
		case <-stop:
		}
	}()
	tp.armed[h.readFd] = h
	tp.pool.metrics.Gauge(MetricTimersArmed).Set(float64(len(tp.armed)))
}

// cancel stops an in-flight arm goroutine before it fires, without
// returning h to the pool. Used by VarSleepHandle.Stop, whose caller is
// still parked in the suspend() call that owns h and will release it
// itself once it resumes (via drainAndRelease) — releasing here too would
// hand the same handle out to two unrelated sleepers.
func (tp *timerPool) cancel(h *timerHandle) {
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
}

// cancelAndRelease stops an in-flight arm goroutine before it fires and
// returns h to the pool. Used by error cleanup paths that abandon h before
// any suspend() call takes ownership of its release.
func (tp *timerPool) cancelAndRelease(h *timerHandle) {
	tp.cancel(h)
	tp.release(h)
}

// drainAndRelease is called after a timer has fired and its waiter
// resumed: drain the pipe byte and return the handle to the pool.
func (tp *timerPool) drainAndRelease(h *timerHandle) {
	var buf [8]byte
	for {
		n, err := unix.Read(h.readFd, buf[:])
		if n <= 0 || err != nil {
			break
		}
	}
	tp.release(h)
}

func (tp *timerPool) release(h *timerHandle) {
	delete(tp.armed, h.readFd)
	tp.pool.metrics.Gauge(MetricTimersArmed).Set(float64(len(tp.armed)))
	if len(tp.free) < tp.capacity {
		tp.free = append(tp.free, h)
		tp.pool.metrics.Gauge(MetricTimerPoolCached).Set(float64(len(tp.free)))
		return
	}
	unix.Close(h.readFd)
	unix.Close(h.writeFd)
}

// sleep is the shared implementation behind SleepUS/MS/S: acquire a timer,
// arm it, subscribe its read side in the fd-wait table, and suspend (§4.5).
func (tc *TaskCtx) sleep(d time.Duration) int32 {
	p := tc.pool
	h, err := p.timers.acquire()
	if err != nil {
		p.log.Error("timer pool exhausted", "error", err)
		return CodeGenericFailure.Int32()
	}
	p.timers.arm(h, d)
	if err := p.fdTable.insert(tc.frame, h.readFd, EventReadable); err != nil {
		p.timers.cancelAndRelease(h)
		return CodeGenericFailure.Int32()
	}
	code := p.suspend(tc.frame, suspendTimer)
	p.fdTable.remove(tc.frame, h.readFd)
	p.timers.drainAndRelease(h)
	return code
}

// SleepUS suspends for at least n microseconds.
func (tc *TaskCtx) SleepUS(n int64) int32 { return tc.sleep(time.Duration(n) * time.Microsecond) }

// SleepMS suspends for at least n milliseconds.
func (tc *TaskCtx) SleepMS(n int64) int32 { return tc.sleep(time.Duration(n) * time.Millisecond) }

// SleepS suspends for at least n seconds.
func (tc *TaskCtx) SleepS(n int64) int32 { return tc.sleep(time.Duration(n) * time.Second) }

// VarSleepState is the lifecycle of an interruptible sleep handle (§4.5).
type VarSleepState int

const (
	VarSleepUnarmed VarSleepState = iota
	VarSleepArmed
	VarSleepElapsed
)

// VarSleepHandle lets a third party wake a sleeper before its deadline,
// returned as if the sleep had elapsed normally (CodeOK).
type VarSleepHandle struct {
	pool   *Pool
	frame  *task
	handle *timerHandle
	state  VarSleepState
}

// VarSleepUS is the interruptible counterpart of SleepUS: h transitions
// Unarmed -> Armed for the duration of the call and Armed -> Elapsed once
// woken (by deadline or by Stop).
func (tc *TaskCtx) VarSleepUS(n int64, h *VarSleepHandle) int32 {
	p := tc.pool
	handle, err := p.timers.acquire()
	if err != nil {
		p.log.Error("timer pool exhausted", "error", err)
		return CodeGenericFailure.Int32()
	}
	h.pool = p
	h.frame = tc.frame
	h.handle = handle
	h.state = VarSleepArmed

	p.timers.arm(handle, time.Duration(n)*time.Microsecond)
	if err := p.fdTable.insert(tc.frame, handle.readFd, EventReadable); err != nil {
		p.timers.cancelAndRelease(handle)
		h.state = VarSleepElapsed
		return CodeGenericFailure.Int32()
	}
	code := p.suspend(tc.frame, suspendTimer)
	h.state = VarSleepElapsed
	p.fdTable.remove(tc.frame, handle.readFd)
	p.timers.drainAndRelease(handle)
	return code
}

// Stop wakes the sleeper early, as if its deadline had elapsed (returns
// CodeOK to the sleeper). A no-op if the handle is already Elapsed or was
// never armed. The handle's timer is only cancelled here, not released:
// the parked VarSleepUS call still owns it and releases it via its own
// drainAndRelease once it resumes.
func (h *VarSleepHandle) Stop() {
	if h.state != VarSleepArmed {
		return
	}
	h.state = VarSleepElapsed
	h.pool.fdTable.remove(h.frame, h.handle.readFd)
	h.pool.timers.cancel(h.handle)
	h.pool.wake(h.frame.root, CodeOK.Int32())
}
