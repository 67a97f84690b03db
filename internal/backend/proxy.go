package backend

import (
	"container/list"
	"net/netip"
	"sync"
)

// Recalculator rebuilds a proxy's load-balancing server map whenever
// RecalcServerMap is called. internal/balancer.Router implements this,
// keeping backend free of any dependency on the balancing strategies.
type Recalculator interface {
	Recalc(p *Proxy)
}

// Proxy is a backend group: the set of interchangeable servers serving
// one frontend, plus the pre-rendered probe payload and options shared
// by all of its servers' checks.
type Proxy struct {
	sync.Mutex

	ID    string
	State ProxyState

	Servers []*Server

	// CheckReq is the pre-rendered probe payload for HTTP/SSLv3/SMTP
	// checks. Proto selects which protocol's acceptance rule applies;
	// the zero Proto value means a bare TCP connect is sufficient.
	CheckReq []byte
	Proto    CheckProto

	Options    ProxyOptions
	SourceAddr netip.Addr

	SrvAct int
	SrvBck int

	// pending is the backend-wide FIFO of sessions waiting for any
	// server; UP-edge drain pops from here.
	pending *list.List

	Recalculator Recalculator
}

// NewProxy creates an empty, active proxy.
func NewProxy(id string) *Proxy {
	return &Proxy{
		ID:      id,
		State:   ProxyActive,
		pending: list.New(),
	}
}

// AddServer appends a server to the proxy and back-links it.
func (p *Proxy) AddServer(s *Server) {
	p.Lock()
	defer p.Unlock()
	s.Proxy = p
	p.Servers = append(p.Servers, s)
}

// Stopped reports whether the proxy is administratively stopped, which
// suppresses new probes but not task ticking.
func (p *Proxy) Stopped() bool {
	p.Lock()
	defer p.Unlock()
	return p.State == ProxyStopped
}

// RecountServers recomputes SrvAct/SrvBck by scanning current server
// state: after this call, SrvAct/SrvBck equal the number of UP
// servers of each role.
func RecountServers(p *Proxy) {
	var act, bck int
	for _, s := range p.Servers {
		if !s.IsRunning() {
			continue
		}
		if s.IsBackup() {
			bck++
		} else {
			act++
		}
	}
	p.Lock()
	p.SrvAct = act
	p.SrvBck = bck
	p.Unlock()
}

// RecalcServerMap delegates to the proxy's registered Recalculator, if
// any. Kept as a free function (mirroring RecountServers) so the FSM
// reads as a direct translation of checks.c's call sequence.
func RecalcServerMap(p *Proxy) {
	p.Lock()
	r := p.Recalculator
	p.Unlock()
	if r != nil {
		r.Recalc(p)
	}
}

// PopPending pops the oldest backend-wide pending connection (FIFO),
// or nil if the queue is empty.
func (p *Proxy) PopPending() *PendConn {
	p.Lock()
	defer p.Unlock()
	front := p.pending.Front()
	if front == nil {
		return nil
	}
	p.pending.Remove(front)
	pc := front.Value.(*PendConn)
	pc.proxyElem = nil
	return pc
}

// PushPending enqueues a pending connection on the backend-wide queue
// (used by the demo front door when no server can be selected yet).
func (p *Proxy) PushPending(pc *PendConn) {
	p.Lock()
	defer p.Unlock()
	pc.proxyElem = p.pending.PushBack(pc)
}

// PendingDepth returns the current backend-wide queue length.
func (p *Proxy) PendingDepth() int {
	p.Lock()
	defer p.Unlock()
	return p.pending.Len()
}

// FreePending removes a pending connection from wherever it is queued
// (proxy-wide queue, a server's own queue, or both).
func FreePending(pc *PendConn) {
	if pc.srv != nil {
		pc.srv.Lock()
		if pc.srvElem != nil {
			pc.srv.PendConns.Remove(pc.srvElem)
			pc.srv.NBPend--
			pc.srvElem = nil
		}
		pc.srv.Unlock()
	}
	if pc.proxy != nil && pc.proxyElem != nil {
		pc.proxy.Lock()
		pc.proxy.pending.Remove(pc.proxyElem)
		pc.proxyElem = nil
		pc.proxy.Unlock()
	}
}
