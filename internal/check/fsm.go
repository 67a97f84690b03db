package check

import (
	"container/list"
	"context"
	"fmt"

	"github.com/relaylb/checkengine/internal/alert"
	"github.com/relaylb/checkengine/internal/backend"
)

// applySuccess handles a successful probe result: health climbs toward
// its rise+fall-1 ceiling, and crossing from below rise to exactly
// rise fires the UP edge, which immediately clamps health to the
// ceiling so the server starts with a full fall cushion.
func (e *Engine) applySuccess(t *Task) {
	s := t.Server
	s.Lock()
	rise, fall := s.Rise, s.Fall
	ceiling := rise + fall - 1
	prevHealth := s.Health
	wasUp := s.State&backend.StateRunning != 0

	health := prevHealth + 1
	if health > ceiling {
		health = ceiling
	}
	crossedUp := !wasUp && prevHealth < rise && health >= rise
	if crossedUp {
		s.State |= backend.StateRunning
		health = ceiling
	}
	s.Health = health
	proxy := s.Proxy
	id := s.ID
	s.Unlock()

	if crossedUp {
		e.onUpEdge(proxy, s, id)
	}
}

// applyFailure handles a failed or timed-out probe result: while UP
// with cushion remaining, health simply decays; the transition to
// DOWN happens the moment health would otherwise drop below rise,
// snapping straight to zero rather than easing down.
func (e *Engine) applyFailure(t *Task) {
	s := t.Server
	s.Lock()
	rise := s.Rise
	wasUp := s.State&backend.StateRunning != 0
	var crossedDown bool
	if wasUp {
		if s.Health > rise {
			s.Health--
			s.FailedChecks++
		} else {
			crossedDown = true
			s.Health = 0
			s.State &^= backend.StateRunning
			s.DownTrans++
		}
	} else {
		s.Health = 0
	}
	proxy := s.Proxy
	id := s.ID
	s.Unlock()

	if crossedDown {
		e.onDownEdge(proxy, s, id)
	}
}

// onUpEdge handles the UP edge effects: recount, recalculate the
// load-balancing map, then drain the backend-wide pending queue into
// the newly-risen server up to its dynamic maxconn.
func (e *Engine) onUpEdge(p *backend.Proxy, s *backend.Server, id string) {
	backend.RecountServers(p)
	backend.RecalcServerMap(p)

	cap := s.DynamicMaxConn()
	drained := 0
	for drained < cap {
		pc := p.PopPending()
		if pc == nil {
			break
		}
		pc.Sess.Server = s
		backend.FreePending(pc)
		if pc.Sess.Task != nil {
			pc.Sess.Task.Wake()
		}
		s.Lock()
		s.CurSess++
		s.Requeued++
		s.Unlock()
		drained++
	}

	remaining := p.PendingDepth()
	e.emit(alert.Notice, p.ID, id, fmt.Sprintf(
		"server up, %d session(s) requeued, %d still queued%s", drained, remaining, backupAnnotation(p)))
}

// onDownEdge handles the DOWN edge effects: recount, recalculate the
// map, then — if the backend has redispatch enabled — rescue every
// session queued on this server by stripping its sticky routing state
// and waking its task so it can be reassigned elsewhere.
func (e *Engine) onDownEdge(p *backend.Proxy, s *backend.Server, id string) {
	backend.RecountServers(p)
	backend.RecalcServerMap(p)

	p.Lock()
	redispatch := p.Options&backend.OptRedispatch != 0
	p.Unlock()

	xfers := 0
	if redispatch {
		s.Lock()
		var next *list.Element
		for el := s.PendConns.Front(); el != nil; el = next {
			next = el.Next()
			pc := el.Value.(*backend.PendConn)
			sess := pc.Sess
			sess.Flags &^= backend.FlagDirect | backend.FlagAssigned | backend.FlagAddrSet
			sess.Server = nil
			sess.FlushCookieFlags()
			s.Unlock()

			backend.FreePending(pc)
			if sess.Task != nil {
				sess.Task.Wake()
			}
			xfers++
			s.Lock()
			s.Requeued++
		}
		s.Unlock()
	}

	s.Lock()
	curSess := s.CurSess
	remaining := s.NBPend
	failedChecks := s.FailedChecks
	downTrans := s.DownTrans
	s.Unlock()

	p.Lock()
	act, bck, pID := p.SrvAct, p.SrvBck, p.ID
	p.Unlock()

	e.emit(alert.Critical, pID, id, fmt.Sprintf(
		"server down, active=%d backup=%d cur_sess=%d requeued=%d remaining=%d failed_checks=%d down_trans=%d%s",
		act, bck, curSess, xfers, remaining, failedChecks, downTrans, backupAnnotation(p)))

	if act == 0 && bck == 0 {
		e.emit(alert.Emergency, pID, id, "no server available")
	}
}

// backupAnnotation appends the "Running on backup." suffix to UP/DOWN
// log lines when the backend is running exclusively off its backup
// servers.
func backupAnnotation(p *backend.Proxy) string {
	p.Lock()
	act, bck := p.SrvAct, p.SrvBck
	p.Unlock()
	if bck > 0 && act == 0 {
		return " Running on backup."
	}
	return ""
}

// emit forwards a liveness event to the engine's configured sink, if
// any. The sink's Emit runs synchronously on the loop goroutine, so
// the loop waits for it to return.
func (e *Engine) emit(level alert.Level, proxyID, serverID, msg string) {
	if e.sink == nil {
		return
	}
	e.sink.Emit(context.Background(), alert.Event{
		Level: level, Proxy: proxyID, Server: serverID, Message: msg,
	})
}
