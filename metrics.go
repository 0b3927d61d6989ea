package coro

import "github.com/zoobzio/metricz"

// Pool-level observability keys, following the same metricz.Key constant
// style used for the Timeout connector this design borrows the dependency
// from.
const (
	MetricTasksScheduled  = metricz.Key("coro.tasks.scheduled.total")
	MetricTasksCompleted  = metricz.Key("coro.tasks.completed.total")
	MetricReadyQueueDepth = metricz.Key("coro.ready_queue.depth")
	MetricFdWaiters       = metricz.Key("coro.fd_waiters.count")
	MetricTimersArmed     = metricz.Key("coro.timers.armed")
	MetricTimerPoolCached = metricz.Key("coro.timer_pool.cached")
	MetricTimeoutsArmed   = metricz.Key("coro.timeouts.armed")
	MetricTimeoutsFired   = metricz.Key("coro.timeouts.fired.total")
)

func newPoolMetrics() *metricz.Registry {
	reg := metricz.New()
	reg.Counter(MetricTasksScheduled)
	reg.Counter(MetricTasksCompleted)
	reg.Gauge(MetricReadyQueueDepth)
	reg.Gauge(MetricFdWaiters)
	reg.Gauge(MetricTimersArmed)
	reg.Gauge(MetricTimerPoolCached)
	reg.Gauge(MetricTimeoutsArmed)
	reg.Counter(MetricTimeoutsFired)
	return reg
}
