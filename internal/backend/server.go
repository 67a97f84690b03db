package backend

import (
	"container/list"
	"net/netip"
	"sync"
	"time"
)

// Server is the subject of a health check: one TCP/HTTP endpoint
// belonging to a Proxy (backend group). Once the server is registered
// with an Engine, the check engine is the only writer of the fields
// below except CurSess, which internal/frontdoor also updates per
// forwarded request; Server embeds a Mutex so those writers and the
// metrics/admin readers on other goroutines take it around every
// access.
type Server struct {
	sync.Mutex

	ID    string
	Proxy *Proxy

	// Addr is the server's real endpoint. CheckAddr, if it holds a
	// valid address, overrides Addr for probes; CheckPort always
	// overrides the port of whichever address is used.
	Addr      netip.Addr
	Port      uint16
	CheckAddr netip.Addr
	CheckPort uint16

	SourceAddr netip.Addr
	State      ServerState

	// Inter is the probe interval and, when ConnectTimeout is unset,
	// also the default connect timeout.
	Inter          time.Duration
	ConnectTimeout time.Duration
	Rise           uint32
	Fall           uint32
	Health         uint32

	Result Result
	CurFD  int

	Weight  int
	MaxConn int // 0 == unbounded

	CurSess      int
	NBPend       int
	FailedChecks uint64
	DownTrans    uint64
	Requeued     uint64

	// PendConns is this server's own queue, consulted only on DOWN
	// rescue.
	PendConns *list.List
}

// NewServer creates a server with CurFD set to NoFD and an empty
// pending queue, ready for registration with check.Engine.
func NewServer(id string, proxy *Proxy) *Server {
	return &Server{
		ID:        id,
		Proxy:     proxy,
		CurFD:     NoFD,
		PendConns: list.New(),
	}
}

// IsChecked reports whether probes are enabled for this server.
func (s *Server) IsChecked() bool {
	s.Lock()
	defer s.Unlock()
	return s.State&StateChecked != 0
}

// IsRunning reports the liveness FSM's current UP/DOWN verdict.
func (s *Server) IsRunning() bool {
	s.Lock()
	defer s.Unlock()
	return s.State&StateRunning != 0
}

// IsBackup reports whether the server is backup-role.
func (s *Server) IsBackup() bool {
	s.Lock()
	defer s.Unlock()
	return s.State&StateBackup != 0
}

// ConnectDeadline returns ConnectTimeout if set, else Inter: absent an
// explicit connect timeout, the connect deadline is fused with the
// probe interval.
func (s *Server) ConnectDeadline() time.Duration {
	if s.ConnectTimeout > 0 {
		return s.ConnectTimeout
	}
	return s.Inter
}

// DynamicMaxConn returns the effective concurrency cap used by UP-edge
// drain: MaxConn verbatim, or an effectively unbounded cap when 0.
func (s *Server) DynamicMaxConn() int {
	s.Lock()
	defer s.Unlock()
	if s.MaxConn == 0 {
		return int(^uint(0) >> 1) // unbounded, mirrors srv_dynamic_maxconn(s) with maxconn==0
	}
	return s.MaxConn
}

// Snapshot is a point-in-time copy of the fields metrics/admin surfaces
// care about, safe to read without holding the server's lock.
type Snapshot struct {
	ID           string
	Up           bool
	Backup       bool
	Health       uint32
	RiseFallSpan uint32
	FailedChecks uint64
	DownTrans    uint64
	Requeued     uint64
	NBPend       int
	CurSess      int
}

// Snapshot takes a consistent copy of the server's externally
// interesting state.
func (s *Server) Snapshot() Snapshot {
	s.Lock()
	defer s.Unlock()
	return Snapshot{
		ID:           s.ID,
		Up:           s.State&StateRunning != 0,
		Backup:       s.State&StateBackup != 0,
		Health:       s.Health,
		RiseFallSpan: s.Rise + s.Fall - 1,
		FailedChecks: s.FailedChecks,
		DownTrans:    s.DownTrans,
		Requeued:     s.Requeued,
		NBPend:       s.NBPend,
		CurSess:      s.CurSess,
	}
}
