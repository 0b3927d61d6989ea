// Package coro implements a single-threaded cooperative coroutine runtime:
// an I/O-aware scheduler, a call-chain modifier inheritance system, and a
// timeout/cancellation protocol built on top of it.
//
// A Pool owns a ready queue, an fd-wait table, and a timer pool. Tasks are
// scheduled onto a Pool as roots (spawn edge) or awaited from within a
// running task (call edge, which inherits the awaiting frame's modifier
// chain). Exactly one goroutine is ever permitted to touch Pool state at a
// time; see the package-level design notes in DESIGN.md for the handoff
// discipline that guarantees this without a mutex.
package coro
