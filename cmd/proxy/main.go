package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/proxykit/reverseproxy/config"
	"github.com/proxykit/reverseproxy/internal/admin"
	"github.com/proxykit/reverseproxy/internal/backend"
	"github.com/proxykit/reverseproxy/internal/circuitbreaker"
	"github.com/proxykit/reverseproxy/internal/healthcheck"
	"github.com/proxykit/reverseproxy/internal/httpserver"
	"github.com/proxykit/reverseproxy/internal/metrics"
	"github.com/proxykit/reverseproxy/internal/middleware"
	"github.com/proxykit/reverseproxy/internal/pool"
	"github.com/proxykit/reverseproxy/internal/proxy"
	"github.com/proxykit/reverseproxy/internal/session"
	"github.com/proxykit/reverseproxy/internal/strategy"
	"github.com/proxykit/reverseproxy/pkg/logger"
)

var errNoBackends = errors.New("no valid backends configured")

func main() {
	// .env is optional; viper picks the variables up through AutomaticEnv.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("err", err))
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, true, cfg.Server.Environment)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	collector := metrics.NewCollector(1000, log)
	collector.Start(ctx)

	breakers := circuitbreaker.NewRegistry(cfg.Breaker.Threshold, cfg.BreakerResetTimeout())

	var sessions *session.Manager
	if cfg.Sessions.Enabled {
		sessions = session.NewManager(cfg.SessionTTL(), log)
		sessions.StartCleanup(ctx)
		collector.RegisterSessionGauge(sessions.Count)
		log.Info("Sticky sessions enabled", slog.String("ttl", cfg.Sessions.TTL))
	}

	monitor := healthcheck.NewMonitor(ctx, cfg.HealthCheckInterval(), log, func(b *backend.Backend, healthy bool) {
		collector.Emit(metrics.Event{
			Type:      metrics.EventHealthChanged,
			Timestamp: time.Now(),
			Backend:   b.URL().String(),
			Healthy:   healthy,
		})

		if !healthy && sessions != nil {
			sessions.Evict(b)
		}
	})

	serverPool, err := initializePool(cfg, log, monitor.Start)
	if err != nil {
		log.Error("Failed to initialize backend pool", slog.Any("err", err))
		os.Exit(1)
	}

	strat := createStrategy(log, cfg.Strategy.Type)

	proxyHandler := proxy.NewHandler(log, serverPool, strat, sessions, breakers, collector)

	srv, err := httpserver.New(cfg.Server.Address, middleware.RequestID(proxyHandler))
	if err != nil {
		log.Error("Failed to create proxy server", slog.Any("err", err))
		os.Exit(1)
	}

	adminAPI := admin.NewAPI(log, cfg, serverPool, sessions, breakers, collector, monitor.Start, monitor.Stop)

	adminSrv, err := httpserver.New(cfg.Admin.Address, adminAPI.Routes())
	if err != nil {
		log.Error("Failed to create admin server", slog.Any("err", err))
		os.Exit(1)
	}

	srvErrCh := make(chan error, 2)

	go func() {
		log.Info("Proxy server listening", slog.String("addr", srv.Addr()))
		srvErrCh <- srv.Start()
	}()

	go func() {
		log.Info("Admin server listening", slog.String("addr", adminSrv.Addr()))
		srvErrCh <- adminSrv.Start()
	}()

	select {
	case <-ctx.Done():
		log.Info("Shutting down gracefully...")
		if err := srv.Shutdown(context.Background()); err != nil {
			log.Error("Error during proxy shutdown", slog.Any("err", err))
		}
		if err := adminSrv.Shutdown(context.Background()); err != nil {
			log.Error("Error during admin shutdown", slog.Any("err", err))
		}
	case err := <-srvErrCh:
		if err != nil {
			log.Error("Server error", slog.Any("err", err))
			os.Exit(1)
		}
	}
}

func initializePool(cfg *config.Config, log *slog.Logger, watch func(*backend.Backend)) (*pool.ServerPool, error) {
	serverPool := pool.New()

	for _, bc := range cfg.Backends {
		u, err := url.Parse(bc.URL)
		if err != nil {
			log.Error("Failed to parse backend URL",
				slog.String("url", bc.URL),
				slog.String("error", err.Error()))
			continue
		}

		b := backend.New(u, bc.Weight)
		serverPool.Add(b)
		watch(b)

		log.Info("Registered backend",
			slog.String("url", b.URL().String()),
			slog.Int("weight", b.Weight()))
	}

	if serverPool.Count() == 0 {
		return nil, errNoBackends
	}

	return serverPool, nil
}

func createStrategy(logger *slog.Logger, strategyType string) strategy.Strategy {
	switch strategyType {
	case config.StrategyRoundRobin:
		return strategy.NewRoundRobinStrategy()
	case config.StrategyWeightedRoundRobin:
		return strategy.NewWeightedRoundRobinStrategy()
	case config.StrategyRandom:
		return strategy.NewRandomStrategy()
	case config.StrategyLeastConn:
		return strategy.NewLeastConnStrategy()
	default:
		logger.Warn("Unknown strategy, defaulting to round-robin", slog.String("requested", strategyType))
		return strategy.NewRoundRobinStrategy()
	}
}
