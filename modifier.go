package coro

import (
	"context"

	"github.com/zoobzio/hookz"
)

// LifecycleKind enumerates the eight lifecycle events modifiers observe, in
// the order §4.8 lists them.
type LifecycleKind int

const (
	LifecycleCall LifecycleKind = iota
	LifecycleReturn
	LifecycleLeave
	LifecycleReentry
	LifecycleFdWait
	LifecycleFdUnwait
	LifecycleSemWait
	LifecycleSemUnwait
)

func (k LifecycleKind) String() string {
	switch k {
	case LifecycleCall:
		return "call"
	case LifecycleReturn:
		return "return"
	case LifecycleLeave:
		return "leave"
	case LifecycleReentry:
		return "reentry"
	case LifecycleFdWait:
		return "fd_wait"
	case LifecycleFdUnwait:
		return "fd_unwait"
	case LifecycleSemWait:
		return "sem_wait"
	case LifecycleSemUnwait:
		return "sem_unwait"
	default:
		return "unknown"
	}
}

// LifecycleEvent is forwarded to every subscriber of a pool's lifecycle
// dispatcher for every hook invocation. The Trace modifier is not one of
// those subscribers: it is a chain node and sees events through the chain
// walk.
type LifecycleEvent struct {
	Kind  LifecycleKind
	Frame frameID
	Fd    int       // valid for FdWait/FdUnwait
	Mask  EventMask // valid for FdWait/FdUnwait
	Sem   *Semaphore // valid for SemWait/SemUnwait
}

const lifecycleHookKey = hookz.Key("coro.lifecycle")

// modifier is the per-node observer interface. Hooks never return an error
// that affects the frame's return value: a failing hook is logged and the
// chain walk continues, per §4.8.
type modifier interface {
	onCall(frame *task)
	onReturn(frame *task)
	onLeave(frame *task)
	onReentry(frame *task)
	onFdWait(frame *task, fd int, mask EventMask)
	onFdUnwait(frame *task, fd int, mask EventMask)
	onSemWait(frame *task, sem *Semaphore)
	onSemUnwait(frame *task, sem *Semaphore)
}

// modNode is one link in a frame's singly-linked, append-only modifier
// chain (§3, §4.8). Chains are only ever extended at their tail, and a
// node's own chain is never shared until it is attached to a caller's chain,
// so mutating its tail in attachChain is always safe.
type modNode struct {
	mod  modifier
	next *modNode
}

// attachChain implements call-edge inheritance: own (the callee's own
// chain, possibly nil) is extended by appending base (the caller's chain)
// at its tail.
func attachChain(own *modNode, base *modNode) *modNode {
	if own == nil {
		return base
	}
	if base == nil {
		return own
	}
	n := own
	for n.next != nil {
		n = n.next
	}
	n.next = base
	return own
}

func walkChain(head *modNode, fn func(modifier)) {
	for n := head; n != nil; n = n.next {
		fn(n.mod)
	}
}

func (p *Pool) emitLifecycle(ev LifecycleEvent) {
	if p.hooks == nil {
		return
	}
	if err := p.hooks.Emit(context.Background(), lifecycleHookKey, ev); err != nil {
		p.logger().Warn("lifecycle hook emit failed", "error", err, "kind", ev.Kind.String())
	}
}

func safeHook(logger Logger, kind string, fn func()) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("modifier hook panicked", "kind", kind, "recovered", r)
		}
	}()
	fn()
}

func (p *Pool) dispatchCall(frame *task) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "call", func() { m.onCall(frame) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleCall, Frame: frame.id})
}

func (p *Pool) dispatchReturn(frame *task) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "return", func() { m.onReturn(frame) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleReturn, Frame: frame.id})
}

func (p *Pool) dispatchLeave(frame *task) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "leave", func() { m.onLeave(frame) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleLeave, Frame: frame.id})
}

func (p *Pool) dispatchReentry(frame *task) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "reentry", func() { m.onReentry(frame) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleReentry, Frame: frame.id})
}

func (p *Pool) dispatchFdWait(frame *task, fd int, mask EventMask) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "fd_wait", func() { m.onFdWait(frame, fd, mask) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleFdWait, Frame: frame.id, Fd: fd, Mask: mask})
}

func (p *Pool) dispatchFdUnwait(frame *task, fd int, mask EventMask) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "fd_unwait", func() { m.onFdUnwait(frame, fd, mask) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleFdUnwait, Frame: frame.id, Fd: fd, Mask: mask})
}

func (p *Pool) dispatchSemWait(frame *task, sem *Semaphore) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "sem_wait", func() { m.onSemWait(frame, sem) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleSemWait, Frame: frame.id, Sem: sem})
}

func (p *Pool) dispatchSemUnwait(frame *task, sem *Semaphore) {
	walkChain(frame.chain, func(m modifier) { safeHook(p.logger(), "sem_unwait", func() { m.onSemUnwait(frame, sem) }) })
	p.emitLifecycle(LifecycleEvent{Kind: LifecycleSemUnwait, Frame: frame.id, Sem: sem})
}

// baseModifier gives every concrete modifier no-op defaults so it only has
// to implement the hooks it cares about, in the spirit of the original's
// per-kind union dispatch.
type baseModifier struct{}

func (baseModifier) onCall(*task)                        {}
func (baseModifier) onReturn(*task)                      {}
func (baseModifier) onLeave(*task)                       {}
func (baseModifier) onReentry(*task)                     {}
func (baseModifier) onFdWait(*task, int, EventMask)       {}
func (baseModifier) onFdUnwait(*task, int, EventMask)     {}
func (baseModifier) onSemWait(*task, *Semaphore)          {}
func (baseModifier) onSemUnwait(*task, *Semaphore)        {}
