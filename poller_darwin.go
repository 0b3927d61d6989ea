//go:build darwin

package coro

import (
	"sync"

	"golang.org/x/sys/unix"
)

// poller on Darwin uses kqueue. Each fd may carry independent read/write
// filters; we translate EventMask into up to two kevent changes, mirroring
// the epoll implementation's subscribe/modify/unsubscribe contract.
type poller struct {
	kq  int
	mu  sync.Mutex
	buf []unix.Kevent_t
}

func newPoller() (*poller, error) {
	kq, err := unix.Kqueue()
	if err != nil {
		return nil, err
	}
	return &poller{kq: kq, buf: make([]unix.Kevent_t, 128)}, nil
}

func (p *poller) changes(fd int, mask EventMask, add bool) []unix.Kevent_t {
	flags := uint16(unix.EV_ADD | unix.EV_ENABLE)
	if !add {
		flags = unix.EV_DELETE
	}
	var out []unix.Kevent_t
	if add && mask.has(EventReadable) || !add {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: flags})
	}
	if add && mask.has(EventWritable) || !add {
		out = append(out, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: flags})
	}
	return out
}

func (p *poller) subscribe(fd int, mask EventMask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	changes := p.changes(fd, mask, true)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *poller) modify(fd int, mask EventMask) error {
	// kqueue has no atomic "replace" primitive comparable to epoll_ctl MOD;
	// the fd-wait table calls modify both to widen a subscription (a new
	// waiter) and to narrow it (a waiter leaving), so we unsubscribe and
	// resubscribe with the full new mask.
	p.mu.Lock()
	defer p.mu.Unlock()
	_, _ = unix.Kevent(p.kq, p.changes(fd, 0, false), nil, nil)
	changes := p.changes(fd, mask, true)
	_, err := unix.Kevent(p.kq, changes, nil, nil)
	return err
}

func (p *poller) unsubscribe(fd int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := unix.Kevent(p.kq, p.changes(fd, 0, false), nil, nil)
	return err
}

func (p *poller) poll(timeoutMs int) ([]readyFd, error) {
	var ts *unix.Timespec
	if timeoutMs >= 0 {
		t := unix.NsecToTimespec(int64(timeoutMs) * 1e6)
		ts = &t
	}
	for {
		n, err := unix.Kevent(p.kq, nil, p.buf, ts)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return nil, err
		}
		byFd := make(map[int]EventMask, n)
		for i := 0; i < n; i++ {
			fd := int(p.buf[i].Ident)
			switch p.buf[i].Filter {
			case unix.EVFILT_READ:
				byFd[fd] |= EventReadable
			case unix.EVFILT_WRITE:
				byFd[fd] |= EventWritable
			}
			if p.buf[i].Flags&unix.EV_EOF != 0 {
				byFd[fd] |= EventHangup
			}
			if p.buf[i].Flags&unix.EV_ERROR != 0 {
				byFd[fd] |= EventError
			}
		}
		out := make([]readyFd, 0, len(byFd))
		for fd, mask := range byFd {
			out = append(out, readyFd{fd: fd, mask: mask})
		}
		return out, nil
	}
}

func (p *poller) close() error {
	return unix.Close(p.kq)
}

type readyFd struct {
	fd   int
	mask EventMask
}
