package check

import (
	"time"

	"github.com/relaylb/checkengine/internal/backend"
)

// Task is the per-server scheduling unit: a stable handle to one
// server plus the deadline at which the engine should next re-enter
// it. The engine is the sole owner and mutator of Expire.
type Task struct {
	Server *backend.Server
	Expire time.Time
}

// Wake satisfies backend.Task so a Task can also be used where the
// backend package expects something it can nudge — not exercised by
// the check engine itself (which calls processCheck directly, already
// running on the engine's own goroutine) but kept so tests can plug a
// *Task in wherever a backend.Task is expected.
func (t *Task) Wake() {}

// advancePast advances expire by whole multiples of inter until it is
// strictly after now ("while expire <= now: expire += inter"),
// required for deterministic re-phasing after long pauses without
// drifting off the original phase.
func advancePast(expire *time.Time, now time.Time, inter time.Duration) {
	if inter <= 0 {
		*expire = now
		return
	}
	for !expire.After(now) {
		*expire = expire.Add(inter)
	}
}
