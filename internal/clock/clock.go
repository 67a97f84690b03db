// Package clock defines the minimal time interface the check engine
// depends on. Production code never imports a fake-clock library
// directly — only the clocktest subpackage does — mirroring
// bufbuild/httplb's internal/clock.go split between a production-safe
// interface and a clockwork-backed test double.
package clock

import "time"

// Clock is the engine's sole time dependency: a monotonic wallclock
// reading. Kept to a single method because the scheduler only ever
// needs "now" to compare against task deadlines; timers/tickers are
// driven by the Reactor's poll timeout instead.
type Clock interface {
	Now() time.Time
}

// NewReal returns a Clock backed by the standard time package.
func NewReal() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }
