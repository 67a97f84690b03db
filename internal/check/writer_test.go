package check

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/check/checktest"
	"github.com/relaylb/checkengine/internal/clock/clocktest"
)

// socketpair returns a connected pair of non-blocking AF_UNIX stream
// fds. onWritable/onReadable only ever see a connected non-blocking
// fd, and a socketpair gives one without racing a real TCP handshake
// or an Accept() on a listener, while still exercising the real
// syscalls these handlers make.
func socketpair(t *testing.T) (probeFD, peerFD int, cleanup func()) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	require.NoError(t, err)
	return fds[0], fds[1], func() {
		_ = unix.Close(fds[0])
		_ = unix.Close(fds[1])
	}
}

// waitReadable blocks until fd has data (or EOF/HUP) pending, so a
// test doesn't race the kernel delivering bytes it just wrote to the
// other half of the pair.
func waitReadable(t *testing.T, fd int) {
	t.Helper()
	pfd := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for i := 0; i < 200; i++ {
		n, err := unix.Poll(pfd, 10)
		if err != nil && err != unix.EINTR {
			t.Fatalf("poll: %v", err)
		}
		if n > 0 {
			return
		}
	}
	t.Fatal("timed out waiting for fd to become readable")
}

// readAll drains fd until the peer would block, for asserting on
// exactly what onWritable put on the wire.
func readAll(t *testing.T, fd int, maxWait time.Duration) []byte {
	t.Helper()
	deadline := time.Now().Add(maxWait)
	var out []byte
	buf := make([]byte, 4096)
	for time.Now().Before(deadline) {
		n, err := unix.Read(fd, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err == unix.EAGAIN {
			time.Sleep(time.Millisecond)
			continue
		}
		break
	}
	return out
}

func TestOnWritableSendsHTTPRequestFullyAndArmsRead(t *testing.T) {
	probeFD, peerFD, cleanup := socketpair(t)
	defer cleanup()

	e := newTestEngine(nil)
	p := backend.NewProxy("web")
	p.Proto = backend.ProtoHTTP
	p.CheckReq = []byte("OPTIONS / HTTP/1.0\r\n\r\n")
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = probeFD
	require.NoError(t, e.reactor.Register(probeFD))
	task := &Task{Server: s}

	onWritable(e, task)

	assert.Equal(t, backend.ResultUnset, s.Result)
	write, read := e.reactor.(*checktest.FakeReactor).Armed(probeFD)
	assert.False(t, write, "write interest should be dropped once the full request is sent")
	assert.True(t, read, "read interest should be armed to await the reply")

	got := readAll(t, peerFD, 200*time.Millisecond)
	assert.Equal(t, p.CheckReq, got)
}

func TestOnWritableSendsSMTPRequestInsteadOfSkipping(t *testing.T) {
	probeFD, peerFD, cleanup := socketpair(t)
	defer cleanup()

	e := newTestEngine(nil)
	p := backend.NewProxy("mail")
	p.Proto = backend.ProtoSMTP
	p.CheckReq = []byte("QUIT\r\n")
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = probeFD
	require.NoError(t, e.reactor.Register(probeFD))
	task := &Task{Server: s}

	onWritable(e, task)

	got := readAll(t, peerFD, 200*time.Millisecond)
	assert.Equal(t, p.CheckReq, got, "the configured SMTP request must actually be sent, not skipped")
}

func TestOnWritablePatchesSSL3TimestampBeforeSending(t *testing.T) {
	probeFD, peerFD, cleanup := socketpair(t)
	defer cleanup()

	clk := clocktest.New(time.Unix(123456789, 0))
	e := NewEngine(checktest.NewFakeReactor(), clk, nil, 65536)
	p := backend.NewProxy("web")
	p.Proto = backend.ProtoSSL3
	p.CheckReq = make([]byte, 20)
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = probeFD
	require.NoError(t, e.reactor.Register(probeFD))
	task := &Task{Server: s}

	onWritable(e, task)

	got := readAll(t, peerFD, 200*time.Millisecond)
	require.Len(t, got, 20)
	assert.NotEqual(t, []byte{0, 0, 0, 0}, got[11:15], "the ClientHello timestamp bytes should have been patched")
}

func TestOnWritableEAGAINLeavesResultUnsetAndStaysWriteArmed(t *testing.T) {
	probeFD, _, cleanup := socketpair(t)
	defer cleanup()

	e := newTestEngine(nil)

	// Saturate the send buffer so the payload write below returns
	// EAGAIN without putting anything on the wire, the same transient
	// non-readiness the reactor's own writability signal can race.
	chunk := make([]byte, 65536)
	saturated := false
	for i := 0; i < 256; i++ {
		_, err := unix.Write(probeFD, chunk)
		if err == unix.EAGAIN {
			saturated = true
			break
		}
	}
	require.True(t, saturated, "expected the socketpair send buffer to saturate")

	p := backend.NewProxy("web")
	p.Proto = backend.ProtoHTTP
	p.CheckReq = []byte("OPTIONS / HTTP/1.0\r\n\r\n")
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = probeFD
	require.NoError(t, e.reactor.Register(probeFD))
	task := &Task{Server: s}

	onWritable(e, task)

	assert.Equal(t, backend.ResultUnset, s.Result)
	write, read := e.reactor.(*checktest.FakeReactor).Armed(probeFD)
	assert.True(t, write, "must stay write-armed to repoll after EAGAIN")
	assert.False(t, read)
}

func TestOnWritableBareTCPCheckSucceedsWithoutSending(t *testing.T) {
	probeFD, _, cleanup := socketpair(t)
	defer cleanup()

	e := newTestEngine(nil)
	p := backend.NewProxy("web") // Proto left at zero value: bare TCP connect check
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = probeFD
	require.NoError(t, e.reactor.Register(probeFD))
	task := &Task{Server: s}

	onWritable(e, task)

	assert.Equal(t, backend.ResultSuccess, s.Result)
}

func TestOnWritableConnectErrorFailsWithoutSending(t *testing.T) {
	e := newTestEngine(nil)
	p := backend.NewProxy("web")
	p.Proto = backend.ProtoHTTP
	p.CheckReq = []byte("OPTIONS / HTTP/1.0\r\n\r\n")
	s := newTestServer("s1", p, 2, 3)
	s.CurFD = 999999 // not a real fd: GetsockoptInt fails, exercising the same guard as a pending connect error
	task := &Task{Server: s}

	onWritable(e, task)

	assert.Equal(t, backend.ResultFailure, s.Result)
}
