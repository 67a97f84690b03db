package balancer

import (
	"sync/atomic"

	"github.com/relaylb/checkengine/internal/backend"
)

// RoundRobinStrategy distributes sessions evenly across candidates.
type RoundRobinStrategy struct {
	counter uint64
}

// NewRoundRobinStrategy creates a new round-robin strategy.
func NewRoundRobinStrategy() *RoundRobinStrategy {
	return &RoundRobinStrategy{}
}

// Select picks the next candidate in round-robin order.
func (rr *RoundRobinStrategy) Select(candidates []*backend.Server) *backend.Server {
	if len(candidates) == 0 {
		return nil
	}
	count := atomic.AddUint64(&rr.counter, 1)
	return candidates[(count-1)%uint64(len(candidates))]
}

// Name returns the strategy name.
func (rr *RoundRobinStrategy) Name() string {
	return "round-robin"
}
