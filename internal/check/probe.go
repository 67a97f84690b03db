package check

import (
	"golang.org/x/sys/unix"

	"github.com/relaylb/checkengine/internal/alert"
	"github.com/relaylb/checkengine/internal/backend"
)

// probeOutcome is the tri-state result of beginProbe, distinguishing
// the three exit paths from connect initiation.
type probeOutcome int

const (
	// outcomeRegistered means a non-blocking connect was launched and
	// the fd is now tracked by the reactor; the task's Expire has been
	// advanced to the connect deadline.
	outcomeRegistered probeOutcome = iota
	// outcomeSyncFailure means the probe failed synchronously (socket
	// creation past this point, bind, or connect); Result is already
	// ResultFailure and the fd, if any, is already closed.
	outcomeSyncFailure
	// outcomeAbsorbed means the probe could not even be attempted
	// (socket creation failed or the fd budget is exhausted); this is
	// a silent no-op, retried on the next tick.
	outcomeAbsorbed
)

// beginProbe creates a non-blocking AF_INET/SOCK_STREAM socket,
// applies outbound binding if requested, launches connect(), and on
// acceptance hands the fd to the reactor with write-readiness armed
// and read-readiness disarmed.
func beginProbe(e *Engine, t *Task) probeOutcome {
	s := t.Server
	s.Lock()
	s.Result = backend.ResultUnset
	s.Unlock()

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return outcomeAbsorbed
	}
	if fd >= e.maxFD {
		_ = unix.Close(fd)
		return outcomeAbsorbed
	}
	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)

	s.Lock()
	addr := s.Addr
	port := s.Port
	if s.CheckAddr.IsValid() {
		addr = s.CheckAddr
	}
	if s.CheckPort != 0 {
		port = s.CheckPort
	}
	srvBindSrc := s.State&backend.StateBindSrc != 0
	srvTransparent := s.State&backend.StateTransparent != 0
	srvSource := s.SourceAddr
	proxy := s.Proxy
	id := s.ID
	s.Unlock()

	proxy.Lock()
	pxBindSrc := proxy.Options&backend.OptBindSrc != 0
	pxTransparent := proxy.Options&backend.OptTransparent != 0
	pxSource := proxy.SourceAddr
	proxy.Unlock()

	bindSrc := srvBindSrc || pxBindSrc
	transparent := srvTransparent || pxTransparent
	source := srvSource
	if !source.IsValid() {
		source = pxSource
	}

	if bindSrc && source.IsValid() {
		if transparent {
			e.emit(alert.Critical, proxy.ID, id,
				"transparent proxy source binding requested but not implemented; falling back to plain source bind")
		}
		_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
		sa := &unix.SockaddrInet4{Addr: source.As4()}
		if err := unix.Bind(fd, sa); err != nil {
			_ = unix.Close(fd)
			s.Lock()
			s.Result = backend.ResultFailure
			s.Unlock()
			e.emit(alert.Critical, proxy.ID, id, "source bind failed: "+err.Error())
			return outcomeSyncFailure
		}
	}

	dst := &unix.SockaddrInet4{Port: int(port), Addr: addr.As4()}
	connErr := unix.Connect(fd, dst)
	switch connErr {
	case nil, unix.EINPROGRESS, unix.EALREADY, unix.EAGAIN:
		// connect in progress; fall through to registration.
	case unix.EISCONN:
		s.Lock()
		s.Result = backend.ResultSuccess
		s.Unlock()
	default:
		_ = unix.Close(fd)
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
		return outcomeSyncFailure
	}

	if err := e.reactor.Register(fd); err != nil {
		_ = unix.Close(fd)
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
		return outcomeSyncFailure
	}

	e.fdIndex[fd] = t
	s.Lock()
	s.CurFD = fd
	deadline := s.ConnectDeadline()
	s.Unlock()
	t.Expire = e.clock.Now().Add(deadline)
	return outcomeRegistered
}
