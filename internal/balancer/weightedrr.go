package balancer

import (
	"math"
	"sync"

	"github.com/relaylb/checkengine/internal/backend"
)

// weightedEntry tracks the running current-weight for one server in
// the smooth weighted round-robin algorithm (the "Nginx algorithm").
type weightedEntry struct {
	weight        int
	currentWeight int
}

// WeightedRoundRobinStrategy distributes sessions in proportion to
// each server's configured Weight, using the smooth weighted
// round-robin algorithm so bursts don't cluster on the heaviest
// server.
type WeightedRoundRobinStrategy struct {
	mu      sync.Mutex
	entries map[string]*weightedEntry
}

// NewWeightedRoundRobinStrategy creates a new weighted round-robin
// strategy.
func NewWeightedRoundRobinStrategy() *WeightedRoundRobinStrategy {
	return &WeightedRoundRobinStrategy{entries: make(map[string]*weightedEntry)}
}

// Select picks a candidate using smooth weighted round-robin.
func (wrr *WeightedRoundRobinStrategy) Select(candidates []*backend.Server) *backend.Server {
	if len(candidates) == 0 {
		return nil
	}

	wrr.mu.Lock()
	defer wrr.mu.Unlock()

	seen := make(map[string]bool, len(candidates))
	byID := make(map[string]*backend.Server, len(candidates))
	for _, s := range candidates {
		s.Lock()
		weight := s.Weight
		id := s.ID
		s.Unlock()
		if weight <= 0 {
			weight = 1
		}
		seen[id] = true
		byID[id] = s
		if e, ok := wrr.entries[id]; ok {
			e.weight = weight
		} else {
			wrr.entries[id] = &weightedEntry{weight: weight}
		}
	}
	for id := range wrr.entries {
		if !seen[id] {
			delete(wrr.entries, id)
		}
	}

	total := 0
	var selectedID string
	maxCurrent := math.MinInt
	for id, e := range wrr.entries {
		e.currentWeight += e.weight
		total += e.weight
		if e.currentWeight > maxCurrent {
			maxCurrent = e.currentWeight
			selectedID = id
		}
	}
	if selectedID == "" {
		return nil
	}
	wrr.entries[selectedID].currentWeight -= total
	return byID[selectedID]
}

// Name returns the strategy name.
func (wrr *WeightedRoundRobinStrategy) Name() string {
	return "weighted-round-robin"
}
