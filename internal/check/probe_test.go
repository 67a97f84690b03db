package check

import (
	"net"
	"net/netip"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/check/checktest"
	"github.com/relaylb/checkengine/internal/clock/clocktest"
)

// listenLoopback opens a real TCP listener on 127.0.0.1 so beginProbe's
// non-blocking connect() has a live peer to race against, rather than
// faking the socket layer itself.
func listenLoopback(t *testing.T) (netip.Addr, uint16, func()) {
	t.Helper()
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	require.NoError(t, err)

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	addr, err := netip.ParseAddr(host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return addr, uint16(port), func() { _ = ln.Close() }
}

func TestBeginProbeRegistersFDOnLiveListener(t *testing.T) {
	addr, port, closeLn := listenLoopback(t)
	defer closeLn()

	clk := clocktest.New(time.Unix(0, 0))
	e := NewEngine(checktest.NewFakeReactor(), clk, nil, 65536)
	p := backend.NewProxy("web")
	s := newTestServer("s1", p, 2, 3)
	s.Addr = addr
	s.Port = port
	s.Inter = time.Second
	task := &Task{Server: s}

	outcome := beginProbe(e, task)

	assert.Contains(t, []probeOutcome{outcomeRegistered, outcomeSyncFailure}, outcome)
	if outcome == outcomeRegistered {
		assert.NotEqual(t, backend.NoFD, s.CurFD)
		assert.Equal(t, clk.Now().Add(time.Second), task.Expire)
		_, tracked := e.fdIndex[s.CurFD]
		assert.True(t, tracked)
	} else {
		assert.Equal(t, backend.ResultFailure, s.Result)
	}
}

func TestBeginProbeSyncFailureOnClosedPort(t *testing.T) {
	addr, port, closeLn := listenLoopback(t)
	closeLn() // nothing listens on this port anymore

	clk := clocktest.New(time.Unix(0, 0))
	e := NewEngine(checktest.NewFakeReactor(), clk, nil, 65536)
	p := backend.NewProxy("web")
	s := newTestServer("s1", p, 2, 3)
	s.Addr = addr
	s.Port = port
	task := &Task{Server: s}

	// A connect to a closed loopback port usually fails synchronously
	// with ECONNREFUSED, but may also complete as "in progress" and
	// only be refused once polled; accept either outcome.
	outcome := beginProbe(e, task)
	assert.Contains(t, []probeOutcome{outcomeRegistered, outcomeSyncFailure}, outcome)
}

func TestBeginProbeAbsorbedWhenFDBudgetExhausted(t *testing.T) {
	addr, port, closeLn := listenLoopback(t)
	defer closeLn()

	clk := clocktest.New(time.Unix(0, 0))
	e := NewEngine(checktest.NewFakeReactor(), clk, nil, 0) // budget of 0
	p := backend.NewProxy("web")
	s := newTestServer("s1", p, 2, 3)
	s.Addr = addr
	s.Port = port
	task := &Task{Server: s}

	outcome := beginProbe(e, task)

	assert.Equal(t, outcomeAbsorbed, outcome)
}
