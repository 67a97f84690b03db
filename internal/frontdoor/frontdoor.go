// Package frontdoor is the demo HTTP reverse proxy that sits in front
// of a Proxy's server set: it is the thing whose sessions actually
// exercise the check engine's UP edge (queueing on the proxy-wide
// queue while no server is up, then being drained onto a server that
// comes up) rather than a component the engine depends on. Its
// sessions never queue on a single server's queue, so the DOWN-edge
// rescue does not reach them.
package frontdoor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/balancer"
	"github.com/relaylb/checkengine/internal/health"
	"github.com/relaylb/checkengine/internal/logging"
	"github.com/relaylb/checkengine/internal/metrics"
	"github.com/relaylb/checkengine/internal/retry"
)

// waitTask adapts a channel close into the backend.Task interface so a
// session parked in a proxy's pending queue can be woken by an
// UP-edge drain.
type waitTask struct {
	woken chan struct{}
}

func newWaitTask() *waitTask { return &waitTask{woken: make(chan struct{})} }

func (t *waitTask) Wake() {
	select {
	case <-t.woken:
	default:
		close(t.woken)
	}
}

// Door proxies inbound HTTP requests to the live servers of a single
// Proxy, selected via a balancer.Router, with per-server circuit
// breakers and a shared retry budget. It is the load-bearing consumer
// of internal/retry and internal/health.CircuitBreaker, which the
// check engine itself has no reason to import.
type Door struct {
	proxy   *backend.Proxy
	router  *balancer.Router
	policy  *retry.Policy
	client  *http.Client
	log     *logging.Logger
	metrics *metrics.Collector

	breakers map[string]*health.CircuitBreaker

	queueWait time.Duration
}

// New creates a Door for proxy p, routing through router and retrying
// per policy. queueWait bounds how long a request waits in the pending
// queue for a server to come up before failing with 503.
func New(p *backend.Proxy, router *balancer.Router, policy *retry.Policy, collector *metrics.Collector, log *logging.Logger, queueWait time.Duration) *Door {
	if queueWait <= 0 {
		queueWait = 2 * time.Second
	}
	breakers := make(map[string]*health.CircuitBreaker)
	p.Lock()
	for _, s := range p.Servers {
		breakers[s.ID] = health.NewCircuitBreaker(p.ID + "/" + s.ID).WithLogger(log)
	}
	p.Unlock()

	return &Door{
		proxy:     p,
		router:    router,
		policy:    policy,
		client:    &http.Client{Timeout: 10 * time.Second},
		log:       log,
		metrics:   collector,
		breakers:  breakers,
		queueWait: queueWait,
	}
}

// ServeHTTP implements http.Handler. It picks a live server, forwards
// the request, retries per policy on a retryable failure, and — if no
// server is currently up — parks the request as a pending session
// until the queue wait elapses or a check-engine UP edge drains it.
func (d *Door) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()
	w.Header().Set("X-Request-Id", requestID)

	if d.metrics != nil {
		d.metrics.ActiveRequests.WithLabelValues(d.proxy.ID).Inc()
		defer d.metrics.ActiveRequests.WithLabelValues(d.proxy.ID).Dec()
	}

	srv := d.router.Pick()
	if srv == nil {
		srv = d.waitForServer(r.Context())
	}
	if srv == nil {
		d.recordResult(r, http.StatusServiceUnavailable, "")
		http.Error(w, "no upstream server available", http.StatusServiceUnavailable)
		return
	}

	body, _ := retry.BufferRequestBody(r)

	var lastErr error
	var lastStatus int
	for attempt := 0; ; attempt++ {
		retry.RestoreRequestBody(r, body)

		breaker := d.breakers[srv.ID]
		if breaker != nil && !breaker.AllowRequest() {
			lastErr = fmt.Errorf("circuit open for %s", srv.ID)
		} else {
			status, err := d.forward(w, r, srv, requestID)
			lastErr, lastStatus = err, status
			if err == nil {
				if breaker != nil {
					breaker.RecordSuccess()
				}
				d.recordResult(r, status, srv.ID)
				return
			}
			if breaker != nil {
				breaker.RecordFailure()
			}
			if d.metrics != nil {
				d.metrics.RetriesTotal.WithLabelValues("upstream_error").Inc()
			}
		}

		if !d.policy.ShouldRetry(r, lastErr, attempt) {
			break
		}
		next := d.router.Pick()
		if next != nil {
			srv = next
		}
	}

	d.recordResult(r, http.StatusBadGateway, srv.ID)
	if lastStatus != 0 {
		http.Error(w, "upstream error", lastStatus)
		return
	}
	http.Error(w, "upstream error", http.StatusBadGateway)
}

// forward proxies one attempt to srv and reports the upstream status
// or a transport error.
func (d *Door) forward(w http.ResponseWriter, r *http.Request, srv *backend.Server, requestID string) (int, error) {
	srv.Lock()
	addr := srv.Addr
	port := srv.Port
	srv.CurSess++
	srv.Unlock()
	defer func() {
		srv.Lock()
		srv.CurSess--
		srv.Unlock()
	}()

	url := fmt.Sprintf("http://%s:%d%s", addr.String(), port, r.URL.RequestURI())
	req, err := http.NewRequestWithContext(r.Context(), r.Method, url, r.Body)
	if err != nil {
		return 0, err
	}
	req.Header = r.Header.Clone()
	req.Header.Set("X-Request-Id", requestID)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	for k, vs := range resp.Header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = io.Copy(w, resp.Body)
	return resp.StatusCode, nil
}

// waitForServer queues the request as a backend.Session on the
// proxy-wide pending queue and blocks until either a server drains it
// (check.Engine's UP-edge rescue path), the queue wait elapses, or the
// request's own context is canceled.
func (d *Door) waitForServer(ctx context.Context) *backend.Server {
	sess := &backend.Session{Proxy: d.proxy}
	task := newWaitTask()
	sess.Task = task

	pc := backend.NewProxyPendConn(sess, d.proxy)

	timer := time.NewTimer(d.queueWait)
	defer timer.Stop()

	select {
	case <-task.woken:
		backend.FreePending(pc)
		return sess.Server
	case <-timer.C:
		backend.FreePending(pc)
		return nil
	case <-ctx.Done():
		backend.FreePending(pc)
		return nil
	}
}

func (d *Door) recordResult(r *http.Request, status int, serverID string) {
	if d.metrics == nil {
		return
	}
	label := serverID
	if label == "" {
		label = "none"
	}
	d.metrics.RequestsTotal.WithLabelValues(label, r.Method, fmt.Sprintf("%d", status)).Inc()
}
