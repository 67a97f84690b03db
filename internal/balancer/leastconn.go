package balancer

import (
	"math"

	"github.com/relaylb/checkengine/internal/backend"
)

// LeastConnectionsStrategy selects the candidate with fewest current
// sessions.
type LeastConnectionsStrategy struct{}

// NewLeastConnectionsStrategy creates a new least-connections strategy.
func NewLeastConnectionsStrategy() *LeastConnectionsStrategy {
	return &LeastConnectionsStrategy{}
}

// Select picks the candidate with minimum CurSess.
func (lc *LeastConnectionsStrategy) Select(candidates []*backend.Server) *backend.Server {
	var selected *backend.Server
	min := int(math.MaxInt)
	for _, s := range candidates {
		snap := s.Snapshot()
		if snap.CurSess < min {
			min = snap.CurSess
			selected = s
		}
	}
	return selected
}

// Name returns the strategy name.
func (lc *LeastConnectionsStrategy) Name() string {
	return "least-connections"
}
