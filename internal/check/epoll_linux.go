//go:build linux

package check

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// epollReactor is the production Reactor, backed by a single epoll
// instance.
type epollReactor struct {
	epfd int

	mu    sync.Mutex
	write map[int]bool // fd -> write interest currently armed
	read  map[int]bool // fd -> read interest currently armed

	eventBuf []unix.EpollEvent
}

// NewEpollReactor creates a Reactor backed by Linux epoll.
func NewEpollReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	return &epollReactor{
		epfd:     epfd,
		write:    make(map[int]bool),
		read:     make(map[int]bool),
		eventBuf: make([]unix.EpollEvent, 256),
	}, nil
}

func (r *epollReactor) mask(fd int) uint32 {
	var m uint32 = unix.EPOLLERR | unix.EPOLLHUP
	if r.write[fd] {
		m |= unix.EPOLLOUT
	}
	if r.read[fd] {
		m |= unix.EPOLLIN
	}
	return m
}

func (r *epollReactor) Register(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write[fd] = true
	r.read[fd] = false
	ev := unix.EpollEvent{Events: r.mask(fd), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
}

func (r *epollReactor) Unregister(fd int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.write, fd)
	delete(r.read, fd)
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

func (r *epollReactor) SetRead(fd int, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.read[fd] = on
	ev := unix.EpollEvent{Events: r.mask(fd), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (r *epollReactor) SetWrite(fd int, on bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.write[fd] = on
	ev := unix.EpollEvent{Events: r.mask(fd), Fd: int32(fd)}
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
}

func (r *epollReactor) Poll(ctx context.Context, timeout time.Duration) ([]Event, error) {
	ms := int(timeout / time.Millisecond)
	if ms < 0 {
		ms = 0
	}
	n, err := unix.EpollWait(r.epfd, r.eventBuf, ms)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("epoll_wait: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		raw := r.eventBuf[i]
		out = append(out, Event{
			FD:       int(raw.Fd),
			Readable: raw.Events&unix.EPOLLIN != 0,
			Writable: raw.Events&unix.EPOLLOUT != 0,
			Err:      raw.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0,
		})
	}
	return out, nil
}

func (r *epollReactor) Close() error {
	return unix.Close(r.epfd)
}
