package check

import (
	"golang.org/x/sys/unix"

	"github.com/relaylb/checkengine/internal/backend"
)

// onWritable fires once the connecting fd reports writability (or
// error, handled by the caller before this is reached). A bare TCP
// check is satisfied by the connect completing; HTTP, SMTP, and SSLv3
// checks all send the proxy's pre-rendered request (a HELO/QUIT for
// SMTP, configured the same way as the HTTP/SSL3 payload).
func onWritable(e *Engine, t *Task) {
	s := t.Server
	s.Lock()
	fd := s.CurFD
	s.Unlock()

	errno, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
	if gerr != nil || errno != 0 {
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
		return
	}

	proxy := s.Proxy
	proxy.Lock()
	proto := proxy.Proto
	req := proxy.CheckReq
	proxy.Unlock()

	if proto == 0 {
		s.Lock()
		s.Result = backend.ResultSuccess
		s.Unlock()
		return
	}

	payload := append([]byte(nil), req...)
	if proto&backend.ProtoSSL3 != 0 {
		patchSSL3Timestamp(payload, e.clock.Now())
	}

	n, err := unix.Write(fd, payload)
	switch {
	case n == len(payload):
		_ = e.reactor.SetWrite(fd, false)
		_ = e.reactor.SetRead(fd, true)
	case n == 0 || err == unix.EAGAIN:
		// Nothing went out yet; stay write-armed and repoll.
	default:
		// A partial write (the kernel send buffer filled mid-payload,
		// which this driver doesn't resume from) or a write error
		// other than EAGAIN.
		s.Lock()
		s.Result = backend.ResultFailure
		s.Unlock()
	}
}
