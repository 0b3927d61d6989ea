package coro

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

// TestFdRoundTrip is a simplified rendering of scenario 5: a client and
// server exchange a message over a non-blocking socketpair, each suspended
// on WaitEvent/ReadSZ/WriteSZ rather than blocking the OS thread.
func TestFdRoundTrip(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	clientFd, serverFd := fds[0], fds[1]

	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	payload := []byte("ping")
	var received []byte

	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		n, code := tc.WriteSZ(clientFd, payload)
		require.Equal(t, CodeOK.Int32(), code)
		require.Equal(t, len(payload), n)
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		buf := make([]byte, 64)
		n, code := tc.ReadSZ(serverFd, buf)
		require.Equal(t, CodeOK.Int32(), code)
		received = append(received, buf[:n]...)
		return CodeOK.Int32()
	}))

	p.Run()

	require.Equal(t, payload, received)
	unix.Close(clientFd)
	unix.Close(serverFd)
}

// TestStopfd verifies §4.6: every waiter on fd is woken with CodeWakeup and
// the fd is dropped from the wait table.
func TestStopfd(t *testing.T) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	require.NoError(t, err)
	for _, fd := range fds {
		require.NoError(t, unix.SetNonblock(fd, true))
	}
	listenFd, peerFd := fds[0], fds[1]
	defer unix.Close(listenFd)
	defer unix.Close(peerFd)

	p, err := CreatePool()
	require.NoError(t, err)
	defer p.Close()

	var code int32
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		code = tc.WaitEvent(listenFd, EventReadable)
		return CodeOK.Int32()
	}))
	p.Sched(NewTask(func(tc *TaskCtx) int32 {
		tc.Yield() // ensure the waiter above has registered first
		p.Stopfd(listenFd)
		return CodeOK.Int32()
	}))

	p.Run()

	require.Equal(t, CodeWakeup.Int32(), code)
	require.False(t, p.fdTable.hasActiveSubscriptions())
}
