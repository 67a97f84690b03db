// Package balancer selects which up server should receive the next
// session, and implements backend.Recalculator so the liveness FSM's
// UP/DOWN edges (internal/check) can trigger a server-map rebuild
// without internal/backend depending on balancer's strategies.
package balancer

import "github.com/relaylb/checkengine/internal/backend"

// Strategy picks one server out of a pre-filtered candidate set.
// Callers guarantee every candidate is currently up; the active/backup
// fallback lives in Router, not here, so a Strategy never has to
// reason about role.
type Strategy interface {
	Select(candidates []*backend.Server) *backend.Server
	Name() string
}
