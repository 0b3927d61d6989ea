//go:build linux

package coro

import (
	"sync"

	"golang.org/x/sys/unix"
)

// poller is the OS multiplexer of §6: subscribe/modify/unsubscribe fds and
// poll for readiness. Implemented with epoll, following the same
// EpollCreate1/EpollCtl/EpollWait shape used by this codebase's sibling
// event-loop package. The poller keeps no per-fd state of its own; the
// fd-wait table tracks which fds (sockets and timer pipes) are subscribed.
type poller struct {
	epfd int
	mu   sync.Mutex
	buf  []unix.EpollEvent
}

func newPoller() (*poller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &poller{epfd: epfd, buf: make([]unix.EpollEvent, 128)}, nil
}

func maskToEpoll(m EventMask) uint32 {
	var ev uint32
	if m.has(EventReadable) {
		ev |= unix.EPOLLIN
	}
	if m.has(EventWritable) {
		ev |= unix.EPOLLOUT
	}
	if m.has(EventPriority) {
		ev |= unix.EPOLLPRI
	}
	// error and hangup are always reported by epoll regardless of subscription.
	return ev
}

func epollToMask(ev uint32) EventMask {
	var m EventMask
	if ev&unix.EPOLLIN != 0 {
		m |= EventReadable
	}
	if ev&unix.EPOLLOUT != 0 {
		m |= EventWritable
	}
	if ev&unix.EPOLLERR != 0 {
		m |= EventError
	}
	if ev&unix.EPOLLHUP != 0 || ev&unix.EPOLLRDHUP != 0 {
		m |= EventHangup
	}
	if ev&unix.EPOLLPRI != 0 {
		m |= EventPriority
	}
	return m
}

func (p *poller) subscribe(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := &unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, ev)
}

func (p *poller) modify(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	ev := &unix.EpollEvent{Events: maskToEpoll(mask), Fd: int32(fd)}
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, ev)
}

func (p *poller) unsubscribe(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// poll blocks for at most timeoutMs (0 = non-blocking, -1 = infinite) and
// returns the (fd, mask) pairs reported ready.
func (p *poller) poll(timeoutMs int) ([]readyFd, error) {
	for {
		n, err := unix.EpollWait(p.epfd, p.buf, timeoutMs)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		out := make([]readyFd, 0, n)
		for i := 0; i < n; i++ {
			out = append(out, readyFd{fd: int(p.buf[i].Fd), mask: epollToMask(p.buf[i].Events)})
		}
		return out, nil
	}
}

func (p *poller) close() error {
	return unix.Close(p.epfd)
}

type readyFd struct {
	fd   int
	mask EventMask
}
