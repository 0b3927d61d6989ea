package coro

// WhenAll schedules every task in tasks as a sibling root, then blocks the
// calling frame until all of them have completed, returning the bitwise OR
// of their results (§6's `when_all`). Join discipline: a zero-initial
// semaphore plus exactly one Wait per task, each paired one-to-one with
// that task's own Release on completion. A Release hands its permit to the
// waiting caller if it is queued and otherwise raises the counter for the
// next Wait to consume, so each of the N waits matches one completion; the
// semaphore has no single N-unit wait.
func (tc *TaskCtx) WhenAll(tasks ...*Task) int32 {
	if len(tasks) == 0 {
		return CodeOK.Int32()
	}
	p := tc.pool
	join := p.NewSemaphore(0)
	results := make([]int32, len(tasks))

	for i, t := range tasks {
		i, t := i, t
		wrapped := NewTask(func(wtc *TaskCtx) int32 {
			results[i] = wtc.Await(t)
			join.Release()
			return results[i]
		})
		p.Sched(wrapped)
	}

	for range tasks {
		tc.SemWait(join)
	}

	var acc int32
	for _, r := range results {
		acc |= r
	}
	return acc
}
