package coro

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type capturingLogger struct {
	errors []string
}

func (l *capturingLogger) Debug(string, ...interface{}) {}
func (l *capturingLogger) Info(string, ...interface{})  {}
func (l *capturingLogger) Warn(string, ...interface{})  {}
func (l *capturingLogger) Error(msg string, kv ...interface{}) {
	l.errors = append(l.errors, msg)
}

// TestDetachedTaskDiagnostic exercises the finalizer's logic directly
// rather than depending on GC timing (which runtime.SetFinalizer gives no
// deadline for): a Task that was never scheduled or awaited reports
// ErrDetachedTask; one that was is silent.
func TestDetachedTaskDiagnostic(t *testing.T) {
	prev := getGlobalLogger()
	defer SetLogger(prev)

	logger := &capturingLogger{}
	SetLogger(logger)

	dropped := NewTask(func(tc *TaskCtx) int32 { return 0 })
	detachedTaskFinalizer(dropped)
	require.Len(t, logger.errors, 1)

	logger.errors = nil
	consumed := NewTask(func(tc *TaskCtx) int32 { return 0 })
	consumed.markConsumed()
	detachedTaskFinalizer(consumed)
	require.Empty(t, logger.errors)
}

func TestFrameIDMonotonic(t *testing.T) {
	a := nextFrameID()
	b := nextFrameID()
	require.Less(t, a.index, b.index)
}
