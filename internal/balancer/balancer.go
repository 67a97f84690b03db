package balancer

import (
	"sync"

	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/logging"
)

// Router is the backend.Recalculator the check engine's liveness FSM
// calls into on every UP/DOWN edge to recompute the backend's
// load-balancing map. It caches the current up active and backup
// server lists so Pick never has to scan+lock every server on the hot
// path, and falls back to backup servers only when no active server
// is up.
type Router struct {
	strategy Strategy
	logger   *logging.Logger

	mu       sync.RWMutex
	active   []*backend.Server
	backup   []*backend.Server
	usingBck bool
}

// NewRouter creates a Router using strategy to choose among whichever
// role (active or backup) currently has an up server.
func NewRouter(strategy Strategy, logger *logging.Logger) *Router {
	return &Router{strategy: strategy, logger: logger}
}

// Attach registers this router as p's Recalculator and performs the
// initial recalculation, so Pick is usable immediately.
func (r *Router) Attach(p *backend.Proxy) {
	p.Lock()
	p.Recalculator = r
	p.Unlock()
	r.Recalc(p)
}

// Recalc implements backend.Recalculator: rebuild the active/backup up
// lists by scanning the proxy's current servers.
func (r *Router) Recalc(p *backend.Proxy) {
	p.Lock()
	servers := append([]*backend.Server(nil), p.Servers...)
	p.Unlock()

	active := make([]*backend.Server, 0, len(servers))
	backup := make([]*backend.Server, 0, len(servers))
	for _, s := range servers {
		if !s.IsRunning() {
			continue
		}
		if s.IsBackup() {
			backup = append(backup, s)
		} else {
			active = append(active, s)
		}
	}

	r.mu.Lock()
	r.active = active
	r.backup = backup
	wasUsingBck := r.usingBck
	r.usingBck = len(active) == 0 && len(backup) > 0
	usingBck := r.usingBck
	r.mu.Unlock()

	if r.logger != nil && usingBck != wasUsingBck {
		if usingBck {
			r.logger.Warn("routing from backup servers", "proxy", p.ID)
		} else {
			r.logger.Info("routing from active servers", "proxy", p.ID)
		}
	}
}

// Pick selects the next server, preferring active-role servers and
// only considering backup-role servers when no active server is up.
// Returns nil when the backend has no up server at all.
func (r *Router) Pick() *backend.Server {
	r.mu.RLock()
	active, backup := r.active, r.backup
	r.mu.RUnlock()

	if len(active) > 0 {
		return r.strategy.Select(active)
	}
	return r.strategy.Select(backup)
}
