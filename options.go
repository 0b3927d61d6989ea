package coro

import (
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/metricz"
)

// Option configures a Pool at construction time, following the functional
// options idiom used throughout this codebase's sibling packages for
// similarly shaped constructors.
type Option func(*Pool)

// WithClock substitutes the clock source (§2's "Clock source" leaf
// component) used for timer arming and sleep durations. Tests should pass
// clockz.NewFakeClock() for deterministic timing.
func WithClock(clock clockz.Clock) Option {
	return func(p *Pool) { p.clock = clock }
}

// WithLogger installs a Logger for this Pool only, overriding the package
// default installed via SetLogger.
func WithLogger(l Logger) Option {
	return func(p *Pool) { p.log = l }
}

// WithMetrics substitutes the metricz.Registry used for scheduler
// observability counters/gauges. By default a fresh private registry is
// created.
func WithMetrics(reg *metricz.Registry) Option {
	return func(p *Pool) { p.metrics = reg }
}

// WithTimerPoolCapacity overrides the default bounded timer-handle cache
// size (64, per §6).
func WithTimerPoolCapacity(n int) Option {
	return func(p *Pool) { p.timerCapacity = n }
}
