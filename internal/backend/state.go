// Package backend holds the data model checked and mutated by the
// active health-check engine: servers, the proxies (backend groups)
// that own them, and the pending-connection queues a liveness
// transition drains or rescues.
package backend

// ServerState is a bitmask of the server-level flags the check engine
// reads and, in the case of StateRunning, exclusively owns.
type ServerState uint32

const (
	// StateChecked means probes are enabled for this server.
	StateChecked ServerState = 1 << iota
	// StateRunning means the liveness FSM currently considers the
	// server UP. Owned by the FSM; never set from configuration.
	StateRunning
	// StateBackup marks a server as backup-role (only used when no
	// active-role server is up).
	StateBackup
	// StateBindSrc requests binding the probe socket to SourceAddr
	// before connect().
	StateBindSrc
	// StateTransparent additionally requests a transparent-proxy
	// source handshake on top of StateBindSrc. Full TPROXY is not
	// implemented, only source bind.
	StateTransparent
)

// ProxyState mirrors HAProxy's PR_STSTOPPED: a stopped proxy still
// ticks its check tasks but never launches new probes.
type ProxyState int

const (
	ProxyActive ProxyState = iota
	ProxyStopped
)

// CheckProto selects the protocol-specific handshake a probe performs
// after TCP connect completes. The zero value means a bare TCP check.
type CheckProto uint32

const (
	ProtoHTTP CheckProto = 1 << iota
	ProtoSSL3
	ProtoSMTP
)

// ProxyOptions are proxy-wide behavior flags, independent of protocol.
type ProxyOptions uint32

const (
	// OptRedispatch enables DOWN-edge rescue of queued sessions to
	// another server/the dispatcher instead of leaving them queued.
	OptRedispatch ProxyOptions = 1 << iota
	// OptBindSrc requests proxy-level source-address binding for
	// servers that don't set StateBindSrc themselves.
	OptBindSrc
	// OptTransparent is the proxy-level analogue of StateTransparent.
	OptTransparent
)

// Result is the transient per-probe outcome scalar, reset at the start
// of every probe and consumed by the FSM at task re-entry.
type Result int

const (
	ResultUnset Result = iota
	ResultSuccess
	ResultFailure
)

func (r Result) String() string {
	switch r {
	case ResultSuccess:
		return "success"
	case ResultFailure:
		return "failure"
	default:
		return "unset"
	}
}

// NoFD is the sentinel value of Server.CurFD meaning "no probe in
// flight". It doubles as the in-flight flag.
const NoFD = -1
