package coro

import (
	"container/list"
	"fmt"
	"runtime"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/hookz"
	"github.com/zoobzio/metricz"
)

// Pool is the top-level scheduler: ready queue, fd-wait table, and timer
// pool, plus the driver loop in Run. It owns every task frame reachable
// from its ready queue, fd-wait table, or any semaphore waiter list created
// through it (§5's resource-ownership model).
type Pool struct {
	ready *list.List // of *rootTask

	fdTable *fdWaitTable
	timers  *timerPool
	poll    *poller

	clock   clockz.Clock
	hooks   *hookz.Hooks[LifecycleEvent]
	metrics *metricz.Registry
	log     Logger

	timerCapacity int

	reportCh chan report

	stopVal       int32
	stopRequested bool
	closed        bool
}

type report struct {
	root   *rootTask
	reason suspendReason
	code   int32
}

// CreatePool constructs a new, empty pool.
func CreatePool(opts ...Option) (*Pool, error) {
	p := &Pool{
		ready:         list.New(),
		hooks:         hookz.New[LifecycleEvent](),
		reportCh:      make(chan report),
		timerCapacity: 64,
	}
	for _, o := range opts {
		o(p)
	}
	if p.clock == nil {
		p.clock = clockz.RealClock
	}
	if p.log == nil {
		p.log = getGlobalLogger()
	}
	if p.metrics == nil {
		p.metrics = newPoolMetrics()
	}

	pl, err := newPoller()
	if err != nil {
		return nil, err
	}
	p.poll = pl
	p.fdTable = newFdWaitTable(p)
	p.timers = newTimerPool(p, p.timerCapacity)

	return p, nil
}

func (p *Pool) logger() Logger { return p.log }

// Close releases the pool's multiplexer fd and observability handles.
// Any frames still suspended anywhere are abandoned (per §5, undefined
// behavior if their owning semaphores outlive the pool; fd and timer state
// is simply dropped along with the poller).
func (p *Pool) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.hooks.Close()
	return p.poll.close()
}

// newRoot wires up a brand-new root frame+goroutine for t, with the
// given explicit modifier chain (spawn edge: no inheritance by default,
// only what the caller passed in mods).
func (p *Pool) newRoot(t *Task, mods []modifier) *rootTask {
	frame := newTask(p, nil)
	var explicit *modNode
	for i := len(mods) - 1; i >= 0; i-- {
		explicit = &modNode{mod: mods[i], next: explicit}
	}
	frame.chain = attachChain(t.ownChain, explicit)
	frame.everCalled = true
	t.markConsumed()

	root := &rootTask{frame: frame, fn: t.fn, resumeCh: make(chan int32, 1)}
	frame.root = root
	p.metrics.Counter(MetricTasksScheduled).Inc()
	return root
}

// Sched schedules t as a root (spawn edge): it is appended to the ready
// queue tail and runs with no inherited modifiers unless mods is given
// explicitly. Returns ErrPoolClosed if the pool has already been closed.
func (p *Pool) Sched(t *Task, mods ...modifier) error {
	if p.closed {
		return ErrPoolClosed
	}
	root := p.newRoot(t, mods)
	p.ready.PushBack(root)
	return nil
}

// Sched is the from-inside-a-task equivalent of Pool.Sched (§6): a spawn
// edge from the currently running frame's pool.
func (tc *TaskCtx) Sched(t *Task, mods ...modifier) error {
	return tc.pool.Sched(t, mods...)
}

// runRoot is the goroutine body for a root task. It is launched exactly
// once per root, the first time the driver resumes it.
func (p *Pool) runRoot(root *rootTask) {
	ctx := newTaskCtx(p, root.frame)
	p.dispatchCall(root.frame)

	var retVal int32
	func() {
		defer func() {
			if r := recover(); r != nil {
				if tu, ok := r.(timeoutUnwind); ok {
					retVal = tu.code
					return
				}
				root.lastPanic = fmt.Errorf("%w: %v", ErrPanic, r)
				p.log.Error("task panicked", "recovered", r)
				retVal = CodeGenericFailure.Int32()
			}
		}()
		retVal = root.fn(ctx)
	}()

	p.dispatchReturn(root.frame)
	root.retVal = retVal
	root.finished = true
	p.metrics.Counter(MetricTasksCompleted).Inc()
	p.reportCh <- report{root: root, reason: suspendDone}
}

// timeoutUnwind is panicked by suspend when a fired timeout modifier wakes
// a suspended frame: rather than returning CodeTimeout to the immediate
// awaiter (which the original's "destroy leaf..root" semantics forbid),
// this unwinds the goroutine's Go call stack up through every intervening
// Await frame until target is reached, at which point that Await call
// returns CodeTimeout to its own caller instead of propagating further.
type timeoutUnwind struct {
	target *task
	code   int32
}

// suspend is the single choke point every suspension operation (yield,
// sleep, fd wait, sem wait, force-stop) funnels through: report to the
// driver that this root is no longer runnable, then block until the driver
// sends a resume code. Any registration this suspension requires (into the
// fd table, a semaphore's waiter list, or the timer pool) must already have
// happened on this same goroutine before calling suspend, since this
// goroutine is the only one permitted to touch pool state until it parks.
func (p *Pool) suspend(frame *task, reason suspendReason) int32 {
	root := frame.root
	p.reportCh <- report{root: root, reason: reason}
	code := <-root.resumeCh
	frame.lastCode = code
	if target := root.pendingTimeoutTarget; target != nil {
		root.pendingTimeoutTarget = nil
		panic(timeoutUnwind{target: target, code: code})
	}
	return code
}

// Yield enqueues the current frame's root at the ready-queue tail and picks
// the next runnable frame (§4.7).
func (tc *TaskCtx) Yield() int32 {
	return tc.pool.suspend(tc.frame, suspendYield)
}

// ForceStop unwinds the driver: Run returns n. The calling frame resumes
// normally (as if nothing had happened) the next time Run is invoked on
// this pool (§4.10).
func (tc *TaskCtx) ForceStop(n int32) int32 {
	p := tc.pool
	root := tc.frame.root
	p.reportCh <- report{root: root, reason: suspendForceStop, code: n}
	code := <-root.resumeCh
	tc.frame.lastCode = code
	if target := root.pendingTimeoutTarget; target != nil {
		root.pendingTimeoutTarget = nil
		panic(timeoutUnwind{target: target, code: code})
	}
	return code
}

// Await performs a call edge: the current frame C awaits sub-task t. t's
// frame inherits C's modifier chain, runs synchronously on C's own
// goroutine stack (direct continuation, no queue round-trip), and its
// return value is handed back to C.
func (tc *TaskCtx) Await(t *Task) int32 {
	p := tc.pool
	caller := tc.frame

	callee := newTask(p, caller)
	callee.chain = attachChain(t.ownChain, caller.chain)
	callee.everCalled = true
	t.markConsumed()

	p.dispatchLeave(caller)
	p.dispatchCall(callee)

	childCtx := newTaskCtx(p, callee)
	var ret int32
	func() {
		defer func() {
			if r := recover(); r != nil {
				if tu, ok := r.(timeoutUnwind); ok {
					if tu.target != callee {
						panic(tu) // not yet at the modifier's root frame
					}
					ret = tu.code
					return
				}
				callee.root.lastPanic = fmt.Errorf("%w: %v", ErrPanic, r)
				p.log.Error("awaited task panicked", "recovered", r)
				ret = CodeGenericFailure.Int32()
			}
		}()
		ret = t.fn(childCtx)
	}()

	p.dispatchReturn(callee)
	p.dispatchReentry(caller)

	return ret
}

// nextResult is the tagged-variant return of next_task (§4.2, §9): either
// resume a specific root, or there is nothing runnable right now (Idle).
type nextResult struct {
	root *rootTask
	idle bool
}

// nextTask implements §4.2's five-step policy. Steps 2 and 4/5 are merged
// relative to the prose: readiness fetched from a poll call is dispatched
// straight into the ready queue (there is no user-visible difference
// between a "pre-delivered" cache and an immediate requeue, since both
// collapse to "go back to step 1").
func (p *Pool) nextTask() nextResult {
	for {
		if e := p.ready.Front(); e != nil {
			root := p.ready.Remove(e).(*rootTask)
			p.metrics.Gauge(MetricReadyQueueDepth).Set(float64(p.ready.Len()))
			return nextResult{root: root}
		}

		if !p.fdTable.hasActiveSubscriptions() && p.timers.armedCount() == 0 {
			return nextResult{idle: true}
		}

		if p.dispatchReadiness(0) {
			continue
		}
		p.dispatchReadiness(-1)
	}
}

// dispatchReadiness polls with the given timeout and, for every ready fd,
// wakes its waiters (pushing their roots onto the ready queue). Returns
// whether anything was dispatched.
func (p *Pool) dispatchReadiness(timeoutMs int) bool {
	events, err := p.poll.poll(timeoutMs)
	if err != nil {
		p.log.Error("poller error", "error", err)
		return false
	}
	if len(events) == 0 {
		return false
	}
	for _, e := range events {
		p.fdTable.onReady(e.fd, e.mask)
	}
	return true
}

// wake pushes root onto the ready queue tail with the given pending resume
// code, used by semaphore release, fd readiness, and timer fire.
func (p *Pool) wake(root *rootTask, code int32) {
	root.pendingCode = code
	p.ready.PushBack(root)
}

// Run drives the pool to quiescence: pop ready, resume, repeat, blocking on
// the multiplexer when idle, until next_task reports Idle or a force_stop
// fires. Returns the force_stop value, or 0 by default (§4.2, §4.10). A
// Run on an already-closed pool is a programmer error: it is logged and
// returns immediately rather than touching a torn-down poller.
func (p *Pool) Run() int32 {
	if p.closed {
		p.log.Error("pool run after close", "error", ErrPoolClosed)
		return CodeOK.Int32()
	}
	p.stopVal = 0
	p.stopRequested = false

	for {
		if p.stopRequested {
			return p.stopVal
		}
		nt := p.nextTask()
		if nt.idle {
			return p.stopVal
		}
		p.driveRoot(nt.root)
	}
}

// driveRoot resumes one root (starting its goroutine on first run, or
// sending its pending code otherwise) and blocks until it reports back.
func (p *Pool) driveRoot(root *rootTask) {
	if !root.started {
		root.started = true
		go p.runRoot(root)
	} else {
		root.resumeCh <- root.pendingCode
	}

	rep := <-p.reportCh
	switch rep.reason {
	case suspendDone:
		// runRoot already dispatched the return hook and set retVal.
	case suspendForceStop:
		p.stopVal = rep.code
		p.stopRequested = true
		p.wake(rep.root, CodeOK.Int32())
	case suspendYield:
		p.wake(rep.root, CodeOK.Int32())
	case suspendFd, suspendSem, suspendTimer:
		// The frame already registered itself in the fd table, a
		// semaphore's waiter list, or the timer pool before reporting.
	}
}

// This blank reference to runtime.GOMAXPROCS documents, rather than enforces, that this scheduler
// is intentionally single-threaded in its *logical* execution even though
// every root is a real goroutine: GOMAXPROCS has no bearing on correctness
// here because the handoff discipline (suspend/driveRoot) ensures at most
// one goroutine is ever unblocked at a time.
var _ = runtime.GOMAXPROCS
