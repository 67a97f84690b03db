package check

import (
	"golang.org/x/sys/unix"

	"github.com/relaylb/checkengine/internal/backend"
)

// onReadable reads up to 64 bytes of what the peer has sent in one
// non-blocking read and classifies them against the proxy's
// configured protocol. A closed connection or read error is a
// failure; EAGAIN/EWOULDBLOCK means nothing has arrived yet and is
// repolled without touching Result. Bytes that did arrive are
// classified as they stand: a reply split across segments is judged
// on whatever the single read returned, without waiting for more.
func onReadable(e *Engine, t *Task) {
	s := t.Server
	s.Lock()
	fd := s.CurFD
	s.Unlock()

	proxy := s.Proxy
	proxy.Lock()
	proto := proxy.Proto
	proxy.Unlock()

	var buf [64]byte
	n, err := unix.Read(fd, buf[:])
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return
	}
	if err != nil || n == 0 {
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
		return
	}

	if acceptReply(proto, buf[:n]) {
		s.Lock()
		s.Result = backend.ResultSuccess
		s.Unlock()
	} else {
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
	}
}
