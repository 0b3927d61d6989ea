package coro

import "golang.org/x/sys/unix"

// ReadSZ is the non-blocking read wrapper of §6: suspend until fd is
// readable, then read once. A return of n == 0 means the peer closed the
// connection, reported as a failure rather than a successful empty read.
func (tc *TaskCtx) ReadSZ(fd int, buf []byte) (int, int32) {
	for {
		n, err := unix.Read(fd, buf)
		switch err {
		case nil:
			if n == 0 {
				return 0, CodeGenericFailure.Int32()
			}
			return n, CodeOK.Int32()
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if code := tc.WaitEvent(fd, EventReadable); code != CodeOK.Int32() {
				return 0, code
			}
		default:
			return 0, CodeGenericFailure.Int32()
		}
	}
}

// WriteSZ is the non-blocking write wrapper of §6: suspend until fd is
// writable, then write once. Partial writes are returned as-is; callers
// loop themselves if they need the whole buffer flushed.
func (tc *TaskCtx) WriteSZ(fd int, buf []byte) (int, int32) {
	for {
		n, err := unix.Write(fd, buf)
		switch err {
		case nil:
			return n, CodeOK.Int32()
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if code := tc.WaitEvent(fd, EventWritable); code != CodeOK.Int32() {
				return 0, code
			}
		default:
			return 0, CodeGenericFailure.Int32()
		}
	}
}

// Accept is the non-blocking accept wrapper of §6.
func (tc *TaskCtx) Accept(fd int) (int, unix.Sockaddr, int32) {
	for {
		nfd, sa, err := unix.Accept(fd)
		switch err {
		case nil:
			if err := unix.SetNonblock(nfd, true); err != nil {
				unix.Close(nfd)
				return 0, nil, CodeGenericFailure.Int32()
			}
			return nfd, sa, CodeOK.Int32()
		case unix.EINTR:
			continue
		case unix.EAGAIN:
			if code := tc.WaitEvent(fd, EventReadable); code != CodeOK.Int32() {
				return 0, nil, code
			}
		default:
			return 0, nil, CodeGenericFailure.Int32()
		}
	}
}

// Connect is the non-blocking connect wrapper of §6: fd must already be
// non-blocking. Suspends until the connect completes (successfully or not)
// and reports the result via SO_ERROR.
func (tc *TaskCtx) Connect(fd int, sa unix.Sockaddr) int32 {
	err := unix.Connect(fd, sa)
	if err == nil {
		return CodeOK.Int32()
	}
	if err != unix.EINPROGRESS {
		return CodeGenericFailure.Int32()
	}
	if code := tc.WaitEvent(fd, EventWritable); code != CodeOK.Int32() {
		return code
	}
	soErr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil || soErr != 0 {
		return CodeGenericFailure.Int32()
	}
	return CodeOK.Int32()
}
