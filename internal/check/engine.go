// Package check implements the active server health-check engine:
// the scheduler, non-blocking probe driver, write/read handlers, and
// liveness FSM. It is a single cooperative event loop — mirroring
// HAProxy's single-threaded reactor model — so nothing under this
// package needs its own goroutine or internal locking beyond what
// backend.Server/Proxy already provide for readers on other
// goroutines.
package check

import (
	"context"
	"time"

	"golang.org/x/sys/unix"

	"github.com/relaylb/checkengine/internal/alert"
	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/clock"
)

// maxPollWait bounds how long a single Poll call may block, so a
// Reconcile request or a newly-added task is never starved for more
// than this long even when nothing else is due.
const maxPollWait = 250 * time.Millisecond

// Engine runs the check scheduler over a set of backend.Server tasks,
// using reactor for non-blocking I/O readiness and clock as the sole
// source of time (so tests can run the whole FSM under a fake clock
// without real sleeps).
type Engine struct {
	reactor Reactor
	clock   clock.Clock
	sink    alert.Sink
	maxFD   int

	tasks   []*Task
	fdIndex map[int]*Task

	// reconcile carries cross-goroutine mutation requests (config
	// reload, admin API) to be run synchronously on the loop
	// goroutine; same-goroutine wakeups never need this channel.
	reconcile chan func(*Engine)
}

// NewEngine constructs an Engine. maxFD is the file-descriptor budget:
// a new probe socket whose fd is at or above it is treated as absorbed rather than
// launched.
func NewEngine(reactor Reactor, clk clock.Clock, sink alert.Sink, maxFD int) *Engine {
	return &Engine{
		reactor:   reactor,
		clock:     clk,
		sink:      sink,
		maxFD:     maxFD,
		fdIndex:   make(map[int]*Task),
		reconcile: make(chan func(*Engine), 32),
	}
}

// AddServer registers a server for checking, starting its first probe
// immediately (Expire set to now). Call this during setup, before Run;
// to add a server while the engine is already running, use Reconcile.
func (e *Engine) AddServer(s *backend.Server) *Task {
	t := &Task{Server: s, Expire: e.clock.Now()}
	e.tasks = append(e.tasks, t)
	return t
}

// Reconcile schedules fn to run on the loop goroutine at the start of
// the next iteration. Safe to call from any goroutine.
func (e *Engine) Reconcile(fn func(*Engine)) {
	e.reconcile <- fn
}

// Run drives the scheduler until ctx is done or the reactor returns a
// fatal error. It owns the reactor exclusively for its lifetime.
func (e *Engine) Run(ctx context.Context) error {
	defer e.reactor.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-e.reconcile:
			fn(e)
			continue
		default:
		}

		events, err := e.reactor.Poll(ctx, e.pollTimeout())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		for _, ev := range events {
			e.dispatch(ev)
		}
		e.scanTasks()
	}
}

// pollTimeout returns the time until the soonest task is due, clamped
// to [0, maxPollWait] so reconcile requests are serviced promptly.
func (e *Engine) pollTimeout() time.Duration {
	now := e.clock.Now()
	timeout := maxPollWait
	for _, t := range e.tasks {
		if until := t.Expire.Sub(now); until < timeout {
			timeout = until
		}
	}
	if timeout < 0 {
		timeout = 0
	}
	return timeout
}

// dispatch routes one readiness event to the write- or read-side
// handler. Events for an fd no longer tracked (already closed this
// tick) are dropped.
func (e *Engine) dispatch(ev Event) {
	t, ok := e.fdIndex[ev.FD]
	if !ok {
		return
	}
	s := t.Server

	if ev.Err {
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
		return
	}
	if ev.Writable {
		onWritable(e, t)
	}

	s.Lock()
	stillUnset := s.Result == backend.ResultUnset
	s.Unlock()
	if ev.Readable && stillUnset {
		onReadable(e, t)
	}
}

// scanTasks is the scheduler core: for every task whose deadline has
// passed, or whose in-flight probe has a settled result, drive it
// through the probe driver or the FSM.
func (e *Engine) scanTasks() {
	now := e.clock.Now()
	for _, t := range e.tasks {
		e.processCheck(t, now)
	}
}

// processCheck is the per-task step of the scheduler: launch a new
// probe if none is in flight and the deadline has passed, or resolve
// an in-flight probe whose result has settled or timed out.
func (e *Engine) processCheck(t *Task, now time.Time) {
	s := t.Server
	s.Lock()
	curFD := s.CurFD
	result := s.Result
	inter := s.Inter
	checked := s.State&backend.StateChecked != 0
	s.Unlock()

	if curFD == backend.NoFD {
		if t.Expire.After(now) {
			return
		}
		if !checked || s.Proxy.Stopped() {
			advancePast(&t.Expire, now, inter)
			return
		}
		switch beginProbe(e, t) {
		case outcomeRegistered:
			// t.Expire was set to the connect deadline by beginProbe.
		case outcomeSyncFailure:
			e.applyFailure(t)
			advancePast(&t.Expire, now, inter)
		case outcomeAbsorbed:
			advancePast(&t.Expire, now, inter)
		}
		return
	}

	switch result {
	case backend.ResultSuccess:
		e.applySuccess(t)
		e.closeProbe(t)
		advancePast(&t.Expire, now, inter)
	case backend.ResultFailure:
		e.applyFailure(t)
		e.closeProbe(t)
		advancePast(&t.Expire, now, inter)
	default: // backend.ResultUnset: still waiting on the peer
		if !t.Expire.After(now) {
			s.Lock()
			s.Result = backend.ResultFailure
			s.Unlock()
			e.applyFailure(t)
			e.closeProbe(t)
			advancePast(&t.Expire, now, inter)
		}
	}
}

// closeProbe releases the fd owned by t's in-flight probe, if any,
// unregistering it from the reactor and clearing the server's
// curfd/result so the next tick starts a fresh probe.
func (e *Engine) closeProbe(t *Task) {
	s := t.Server
	s.Lock()
	fd := s.CurFD
	s.CurFD = backend.NoFD
	s.Result = backend.ResultUnset
	s.Unlock()

	if fd == backend.NoFD {
		return
	}
	_ = e.reactor.Unregister(fd)
	delete(e.fdIndex, fd)
	_ = unix.Close(fd)
}
