// Command checkengine runs the active health-check engine against the
// proxies/servers declared in configs/config.yaml, fronted by a demo
// HTTP reverse proxy per proxy group and an admin/metrics listener.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/relaylb/checkengine/internal/alert"
	"github.com/relaylb/checkengine/internal/balancer"
	"github.com/relaylb/checkengine/internal/check"
	"github.com/relaylb/checkengine/internal/clock"
	"github.com/relaylb/checkengine/internal/config"
	"github.com/relaylb/checkengine/internal/frontdoor"
	"github.com/relaylb/checkengine/internal/logging"
	"github.com/relaylb/checkengine/internal/metrics"
	"github.com/relaylb/checkengine/internal/retry"
)

const (
	configPath     = "configs/config.yaml"
	sourceBindPath = "configs/sourcebind.toml"
	cloudEventsURL = "" // set to a real collector endpoint to enable CloudEvents delivery
	maxAdminConns  = 256
)

func newStrategy(name string) balancer.Strategy {
	switch name {
	case "weighted-round-robin":
		return balancer.NewWeightedRoundRobinStrategy()
	case "least-connections":
		return balancer.NewLeastConnectionsStrategy()
	default:
		return balancer.NewRoundRobinStrategy()
	}
}

func main() {
	logger := logging.NewLogger("checkengine")
	logger.Info("starting_check_engine")

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Error("failed_to_load_config", "error", err.Error())
		os.Exit(1)
	}
	overrides, err := config.LoadSourceBindOverrides(sourceBindPath)
	if err != nil {
		logger.Error("failed_to_load_source_bind_overrides", "error", err.Error())
		os.Exit(1)
	}

	proxies, err := cfg.Build(overrides)
	if err != nil {
		logger.Error("failed_to_build_proxies", "error", err.Error())
		os.Exit(1)
	}

	collector := metrics.NewCollector()

	sinks := alert.MultiSink{alert.NewLogSink(logger)}
	if cloudEventsURL != "" {
		ceClient, err := cloudevents.NewClientHTTP(cloudevents.WithTarget(cloudEventsURL))
		if err != nil {
			logger.Error("failed_to_create_cloudevents_client", "error", err.Error())
		} else {
			sinks = append(sinks, alert.NewCloudEventSink("checkengine", ceClient))
		}
	}

	reactor, err := check.NewEpollReactor()
	if err != nil {
		logger.Error("failed_to_create_reactor", "error", err.Error())
		os.Exit(1)
	}
	engine := check.NewEngine(reactor, clock.NewReal(), sinks, cfg.MaxFD)

	routers := make(map[string]*balancer.Router, len(proxies))
	for i, p := range proxies {
		strategy := newStrategy(cfg.Proxies[i].Strategy)
		router := balancer.NewRouter(strategy, logger)
		router.Attach(p)
		routers[p.ID] = router

		for _, s := range p.Servers {
			engine.AddServer(s)
			logger.Info("server_registered", "proxy", p.ID, "server", s.ID, "addr", s.Addr.String(), "port", s.Port)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return engine.Run(gctx)
	})

	retryPolicy := retry.NewPolicy(2, 25)
	exporter := metrics.NewExporter(collector, proxies, retryPolicy.GetBudget(), 5*time.Second)
	g.Go(func() error {
		exporter.Start(gctx)
		return nil
	})

	watcher, err := config.NewWatcher(configPath, logger, func(newCfg *config.Config) error {
		newProxies, err := newCfg.Build(overrides)
		if err != nil {
			return err
		}
		for i, p := range newProxies {
			strategyName := newCfg.Proxies[i].Strategy
			engine.Reconcile(func(e *check.Engine) {
				router, ok := routers[p.ID]
				if !ok {
					router = balancer.NewRouter(newStrategy(strategyName), logger)
					routers[p.ID] = router
				}
				router.Attach(p)
				for _, s := range p.Servers {
					e.AddServer(s)
				}
			})
		}
		logger.Info("config_reloaded", "proxies", len(newProxies))
		return nil
	})
	if err != nil {
		logger.Error("failed_to_create_config_watcher", "error", err.Error())
	} else {
		g.Go(func() error {
			watcher.Start(gctx)
			return nil
		})
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintln(w, "ok")
	})

	for i, p := range proxies {
		router := routers[p.ID]
		policy := retry.NewPolicy(2, 25)
		door := frontdoor.New(p, router, policy, collector, logger, 2*time.Second)
		mux.Handle("/"+p.ID+"/", http.StripPrefix("/"+p.ID, door))
		logger.Info("frontdoor_mounted", "proxy", p.ID, "strategy", cfg.Proxies[i].Strategy)
	}

	adminServer := &http.Server{Addr: cfg.AdminAddr, Handler: metrics.NewMiddleware(collector, mux)}
	ln, err := net.Listen("tcp", cfg.AdminAddr)
	if err != nil {
		logger.Error("failed_to_bind_admin_listener", "error", err.Error())
		os.Exit(1)
	}
	limited := netutil.LimitListener(ln, maxAdminConns)

	g.Go(func() error {
		logger.Info("admin_server_starting", "addr", cfg.AdminAddr)
		if err := adminServer.Serve(limited); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("shutdown_signal_received")
		case <-gctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = adminServer.Shutdown(shutdownCtx)
		cancel()
	}()

	if err := g.Wait(); err != nil && err != context.Canceled {
		logger.Error("check_engine_exited_with_error", "error", err.Error())
		os.Exit(1)
	}
	logger.Info("shutdown_complete")
}
