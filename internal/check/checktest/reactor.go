// Package checktest provides an in-memory Reactor double so
// internal/check's scheduler, FSM, and protocol-classification tests
// can run without real sockets or epoll.
package checktest

import (
	"context"
	"sync"
	"time"

	"github.com/relaylb/checkengine/internal/check"
)

// FakeReactor is a Reactor whose readiness is driven entirely by test
// code calling Fire, rather than by a real kernel poller.
type FakeReactor struct {
	mu       sync.Mutex
	write    map[int]bool
	read     map[int]bool
	pending  []check.Event
	closed   bool
}

// NewFakeReactor creates an empty FakeReactor.
func NewFakeReactor() *FakeReactor {
	return &FakeReactor{
		write: make(map[int]bool),
		read:  make(map[int]bool),
	}
}

func (f *FakeReactor) Register(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.write[fd] = true
	f.read[fd] = false
	return nil
}

func (f *FakeReactor) Unregister(fd int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.write, fd)
	delete(f.read, fd)
	return nil
}

func (f *FakeReactor) SetRead(fd int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.read[fd] = on
	return nil
}

func (f *FakeReactor) SetWrite(fd int, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.write[fd] = on
	return nil
}

// Fire queues a synthetic readiness event for the next Poll call, if
// the fd is currently registered with matching interest.
func (f *FakeReactor) Fire(ev check.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ev.Writable && !f.write[ev.FD] {
		ev.Writable = false
	}
	if ev.Readable && !f.read[ev.FD] {
		ev.Readable = false
	}
	if !ev.Writable && !ev.Readable && !ev.Err {
		return
	}
	f.pending = append(f.pending, ev)
}

func (f *FakeReactor) Poll(ctx context.Context, _ time.Duration) ([]check.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := f.pending
	f.pending = nil
	return out, nil
}

func (f *FakeReactor) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *FakeReactor) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// Armed reports the current write/read interest recorded for fd, for
// tests asserting that a handler rearmed (or left alone) a probe
// socket's readiness bits.
func (f *FakeReactor) Armed(fd int) (write, read bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.write[fd], f.read[fd]
}
