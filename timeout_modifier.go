package coro

import (
	"context"
	"fmt"
	"time"

	"github.com/zoobzio/tracez"
)

var (
	timeoutSpan    = tracez.Key("coro.timeout")
	timeoutTagDur  = tracez.Tag("coro.timeout.duration")
	timeoutTagFire = tracez.Tag("coro.timeout.fired")
)

// timeoutState is the state machine §4.9 describes.
type timeoutState int

const (
	timeoutRunning timeoutState = iota
	timeoutWaitingFd
	timeoutWaitingSem
	timeoutFired
	timeoutCancelled
)

// timeoutModifier implements `timed(task, duration)`. One instance is
// created per Timed() call and lives for the duration of the call chain it
// was prepended to.
type timeoutModifier struct {
	baseModifier

	duration time.Duration

	state timeoutState
	root  *task
	leaf  *task

	waitFd   int
	waitMask EventMask
	waitSem  *Semaphore

	sleeper *VarSleepHandle

	tracer *tracez.Tracer
	span   *tracez.ActiveSpan
}

func newTimeoutModifier(d time.Duration) *timeoutModifier {
	return &timeoutModifier{duration: d, tracer: tracez.New()}
}

func (m *timeoutModifier) onCall(frame *task) {
	if m.root == nil {
		m.root = frame
		m.leaf = frame
		m.state = timeoutRunning

		_, span := m.tracer.StartSpan(context.Background(), timeoutSpan)
		span.SetTag(timeoutTagDur, m.duration.String())
		m.span = span

		frame.pool.metrics.Gauge(MetricTimeoutsArmed).Set(1)

		m.sleeper = &VarSleepHandle{}
		sleeperTask := NewTask(func(tc *TaskCtx) int32 {
			code := tc.VarSleepUS(m.duration.Microseconds(), m.sleeper)
			m.onTimerWake(code)
			return CodeOK.Int32()
		})
		frame.pool.Sched(sleeperTask)
		return
	}
	m.leaf = frame
}

func (m *timeoutModifier) onReturn(frame *task) {
	if frame == m.root {
		if m.state == timeoutFired {
			return // already unwound via timer expiry; span/counters already finalized
		}
		if m.sleeper != nil {
			m.sleeper.Stop()
		}
		m.state = timeoutCancelled
		if m.span != nil {
			m.span.SetTag(timeoutTagFire, "false")
			m.span.Finish()
		}
		m.root.pool.metrics.Gauge(MetricTimeoutsArmed).Set(0)
		return
	}
	if frame.caller != nil {
		m.leaf = frame.caller
	}
}

func (m *timeoutModifier) onFdWait(frame *task, fd int, mask EventMask) {
	m.state = timeoutWaitingFd
	m.waitFd = fd
	m.waitMask = mask
}

func (m *timeoutModifier) onFdUnwait(frame *task, fd int, mask EventMask) {
	if m.state == timeoutWaitingFd {
		m.state = timeoutRunning
	}
}

func (m *timeoutModifier) onSemWait(frame *task, sem *Semaphore) {
	m.state = timeoutWaitingSem
	m.waitSem = sem
}

func (m *timeoutModifier) onSemUnwait(frame *task, sem *Semaphore) {
	if m.state == timeoutWaitingSem {
		m.state = timeoutRunning
	}
}

// onTimerWake runs on the sleeper sibling's own stack once it resumes,
// either because the deadline elapsed or because onReturn stopped it early.
func (m *timeoutModifier) onTimerWake(code int32) {
	switch m.state {
	case timeoutCancelled:
		return
	case timeoutWaitingFd:
		m.root.pool.fdTable.remove(m.leaf, m.waitFd)
	case timeoutWaitingSem:
		m.waitSem.removeWaiter(m.leaf)
	case timeoutRunning:
		// No external structure to detach the leaf from.
	}

	p := m.root.pool
	p.metrics.Counter(MetricTimeoutsFired).Inc()
	p.metrics.Gauge(MetricTimeoutsArmed).Set(0)
	if m.span != nil {
		m.span.SetTag(timeoutTagFire, "true")
		m.span.Finish()
	}
	p.log.Warn("timeout fired", "frame", fmt.Sprintf("%d", m.root.id.index), "duration", m.duration.String())

	m.state = timeoutFired

	m.root.root.pendingTimeoutTarget = m.root
	p.wake(m.root.root, CodeTimeout.Int32())
}
