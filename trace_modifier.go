package coro

// TraceFunc is the user callback passed to Trace(): invoked for every
// lifecycle event observed anywhere in the traced task's call chain, given
// the event kind, the frame identity, and the ctx value Trace() was called
// with (§4.11).
type TraceFunc func(kind LifecycleKind, frame frameID, ctx interface{})

// traceModifier has no scheduling effect; it only forwards lifecycle
// events to fn.
type traceModifier struct {
	fn  TraceFunc
	ctx interface{}
}

func newTraceModifier(fn TraceFunc, ctx interface{}) *traceModifier {
	return &traceModifier{fn: fn, ctx: ctx}
}

func (m *traceModifier) invoke(kind LifecycleKind, frame *task) {
	defer func() {
		if r := recover(); r != nil {
			frame.pool.log.Error("trace callback panicked", "kind", kind.String(), "recovered", r)
		}
	}()
	m.fn(kind, frame.id, m.ctx)
}

func (m *traceModifier) onCall(frame *task)    { m.invoke(LifecycleCall, frame) }
func (m *traceModifier) onReturn(frame *task)  { m.invoke(LifecycleReturn, frame) }
func (m *traceModifier) onLeave(frame *task)   { m.invoke(LifecycleLeave, frame) }
func (m *traceModifier) onReentry(frame *task) { m.invoke(LifecycleReentry, frame) }

func (m *traceModifier) onFdWait(frame *task, fd int, mask EventMask) {
	m.invoke(LifecycleFdWait, frame)
}

func (m *traceModifier) onFdUnwait(frame *task, fd int, mask EventMask) {
	m.invoke(LifecycleFdUnwait, frame)
}

func (m *traceModifier) onSemWait(frame *task, sem *Semaphore) {
	m.invoke(LifecycleSemWait, frame)
}

func (m *traceModifier) onSemUnwait(frame *task, sem *Semaphore) {
	m.invoke(LifecycleSemUnwait, frame)
}
