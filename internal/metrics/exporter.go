package metrics

import (
	"context"
	"time"

	"github.com/relaylb/checkengine/internal/backend"
	"github.com/relaylb/checkengine/internal/retry"
)

// Exporter periodically snapshots the backend object graph into the
// Collector's gauges, the polling counterpart to the per-event alert
// sinks in internal/alert.
type Exporter struct {
	collector   *Collector
	proxies     []*backend.Proxy
	retryBudget *retry.Budget
	interval    time.Duration
}

// NewExporter creates a metrics exporter that samples proxies every
// interval (5s if zero).
func NewExporter(collector *Collector, proxies []*backend.Proxy, retryBudget *retry.Budget, interval time.Duration) *Exporter {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Exporter{collector: collector, proxies: proxies, retryBudget: retryBudget, interval: interval}
}

// Start runs the export loop until ctx is done.
func (e *Exporter) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.export()
		}
	}
}

func (e *Exporter) export() {
	for _, p := range e.proxies {
		p.Lock()
		servers := append([]*backend.Server(nil), p.Servers...)
		proxyID := p.ID
		p.Unlock()

		for _, s := range servers {
			snap := s.Snapshot()
			up := 0.0
			if snap.Up {
				up = 1
			}
			e.collector.Health.WithLabelValues(proxyID, snap.ID).Set(float64(snap.Health))
			e.collector.Up.WithLabelValues(proxyID, snap.ID).Set(up)
			e.collector.DownTransitions.WithLabelValues(proxyID, snap.ID).Set(float64(snap.DownTrans))
			e.collector.FailedChecks.WithLabelValues(proxyID, snap.ID).Set(float64(snap.FailedChecks))
			e.collector.RequeuedTotal.WithLabelValues(proxyID, snap.ID).Set(float64(snap.Requeued))
			e.collector.QueueDepth.WithLabelValues(proxyID, "server:"+snap.ID).Set(float64(snap.NBPend))
		}
		e.collector.QueueDepth.WithLabelValues(proxyID, "proxy").Set(float64(p.PendingDepth()))
	}

	if e.retryBudget != nil {
		e.collector.RetryBudgetTokens.Set(float64(e.retryBudget.GetAvailable()))
	}
}
