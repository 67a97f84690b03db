// Package clocktest adapts jonboulle/clockwork's FakeClock to our
// clock.Clock interface, for deterministic tests of the check
// scheduler's rise/fall traces and expire re-phasing. Only this
// test-support package imports clockwork; production code depends
// only on internal/clock.Clock.
package clocktest

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/relaylb/checkengine/internal/clock"
)

// FakeClock is a manually-advanceable clock.Clock.
type FakeClock interface {
	clock.Clock
	Advance(d time.Duration)
}

// New creates a FakeClock seeded at the given time.
func New(start time.Time) FakeClock {
	return fakeClock{clockwork.NewFakeClockAt(start)}
}

type fakeClock struct {
	clockwork.FakeClock
}

func (f fakeClock) Now() time.Time { return f.FakeClock.Now() }

func (f fakeClock) Advance(d time.Duration) { f.FakeClock.Advance(d) }
