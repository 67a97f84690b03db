package backend

import "container/list"

// SessionFlags mirrors the sticky-routing bits checks.c clears on a
// DOWN-edge rescue.
type SessionFlags uint32

const (
	// FlagDirect means the session bypassed load balancing entirely.
	FlagDirect SessionFlags = 1 << iota
	// FlagAssigned means a server has already been chosen.
	FlagAssigned
	// FlagAddrSet means the session pinned a specific server address.
	FlagAddrSet
)

// Task is the minimal interface the backend package needs from the
// request-side task it wakes on redispatch; internal/check.Task and
// internal/frontdoor's session tasks both satisfy it.
type Task interface {
	Wake()
}

// Session stands in for the real request/session object, carrying just
// enough state for DOWN-edge redispatch and UP-edge drain to be
// exercised end-to-end: which proxy it belongs to, which server (if
// any) it is pinned to, its sticky flags, and a task to wake once
// redispatched.
type Session struct {
	Proxy       *Proxy
	Server      *Server
	Flags       SessionFlags
	CookieValid bool
	Task        Task
}

// FlushCookieFlags invalidates cookie-derived routing state, the Go
// analogue of http_flush_cookie_flags(&sess->txn) in checks.c.
func (s *Session) FlushCookieFlags() {
	s.CookieValid = false
}

// PendConn is a session waiting in a queue for a server slot. It is
// queued on the backend-wide queue, a specific server's queue, or
// both, and holds non-owning handles to its session and (transiently)
// its target server — the proxy is the sole owner of the underlying
// list.List nodes.
type PendConn struct {
	Sess *Session

	proxy *Proxy
	srv   *Server

	proxyElem *list.Element
	srvElem   *list.Element
}

// NewServerPendConn creates a pending connection queued on a specific
// server's own queue (used when a session is sticky to a server that
// is momentarily full or down).
func NewServerPendConn(sess *Session, srv *Server) *PendConn {
	pc := &PendConn{Sess: sess, srv: srv, proxy: srv.Proxy}
	srv.Lock()
	pc.srvElem = srv.PendConns.PushBack(pc)
	srv.NBPend++
	srv.Unlock()
	return pc
}

// NewProxyPendConn creates a pending connection queued on the
// backend-wide queue (a session not yet pinned to any server).
func NewProxyPendConn(sess *Session, p *Proxy) *PendConn {
	pc := &PendConn{Sess: sess, proxy: p}
	p.PushPending(pc)
	return pc
}
