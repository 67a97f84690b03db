package health

import (
	"sync"
	"time"

	"github.com/relaylb/checkengine/internal/logging"
)

// CircuitState represents the circuit breaker state.
type CircuitState int

const (
	// StateClosed means the circuit is healthy; requests pass through.
	StateClosed CircuitState = iota

	// StateOpen means the circuit is broken; requests fail fast.
	StateOpen

	// StateHalfOpen means the circuit is testing whether the target recovered.
	StateHalfOpen
)

func (cs CircuitState) String() string {
	switch cs {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker guards a frontdoor route against a target failing at
// the transport layer, independent of the check engine's liveness
// verdict for the same server: a server can be check-engine UP while
// individual requests still time out, and the breaker reacts to that
// on its own sliding window of recent failures.
type CircuitBreaker struct {
	name           string
	state          CircuitState
	successes      int64
	lastFailTime   time.Time
	recentFailures []time.Time
	log            *logging.Logger
	mux            sync.RWMutex

	failureThreshold int
	successThreshold int
	timeout          time.Duration
	windowSize       time.Duration
}

// NewCircuitBreaker creates a circuit breaker for the named route or server.
func NewCircuitBreaker(name string) *CircuitBreaker {
	return &CircuitBreaker{
		name:             name,
		state:            StateClosed,
		recentFailures:   make([]time.Time, 0),
		failureThreshold: 5,
		successThreshold: 2,
		timeout:          30 * time.Second,
		windowSize:       10 * time.Second,
	}
}

// WithLogger attaches a structured logger for state transitions.
func (cb *CircuitBreaker) WithLogger(log *logging.Logger) *CircuitBreaker {
	cb.log = log
	return cb
}

// AllowRequest reports whether a request should be sent to the target.
func (cb *CircuitBreaker) AllowRequest() bool {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	switch cb.state {
	case StateClosed:
		return true

	case StateOpen:
		if time.Since(cb.lastFailTime) >= cb.timeout {
			cb.transition(StateHalfOpen, "timeout elapsed")
			cb.successes = 0
			return true
		}
		return false

	case StateHalfOpen:
		return true

	default:
		return false
	}
}

// RecordSuccess records a successful request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	cb.successes++

	if cb.state == StateHalfOpen {
		if cb.successes >= int64(cb.successThreshold) {
			cb.transition(StateClosed, "half-open probe succeeded")
			cb.recentFailures = cb.recentFailures[:0]
			cb.successes = 0
		}
	} else if cb.state == StateClosed {
		cb.cleanOldFailures()
	}
}

// RecordFailure records a failed request, sliding the failure window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mux.Lock()
	defer cb.mux.Unlock()

	now := time.Now()
	cb.recentFailures = append(cb.recentFailures, now)
	cb.lastFailTime = now
	cb.cleanOldFailures()

	if cb.state == StateHalfOpen {
		cb.transition(StateOpen, "half-open probe failed")
		cb.successes = 0
	} else if cb.state == StateClosed && len(cb.recentFailures) >= cb.failureThreshold {
		cb.transition(StateOpen, "failure threshold reached")
	}
}

func (cb *CircuitBreaker) cleanOldFailures() {
	cutoff := time.Now().Add(-cb.windowSize)
	valid := cb.recentFailures[:0]
	for _, t := range cb.recentFailures {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	cb.recentFailures = valid
}

func (cb *CircuitBreaker) transition(to CircuitState, reason string) {
	from := cb.state
	cb.state = to
	if cb.log != nil {
		cb.log.Info("circuit_transition", "name", cb.name, "from", from, "to", to, "reason", reason)
	}
}

// GetState returns the current circuit state.
func (cb *CircuitBreaker) GetState() CircuitState {
	cb.mux.RLock()
	defer cb.mux.RUnlock()
	return cb.state
}
