package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/c360studio/semtag/aggregate"
	"github.com/c360studio/semtag/cache"
	"github.com/c360studio/semtag/config"
	"github.com/c360studio/semtag/service"
	"github.com/c360studio/semtag/watch"
)

func serveCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the annotation service over NATS",
		Long: `Serve loads the vocabulary and mapping tables, connects to NATS, and
answers annotation requests on the configured subject until interrupted.

With watch.enabled the hierarchy and mapping files are reloaded on change;
with cache.enabled results are cached in redis keyed on text and backend set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadAppConfig(flags)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	return cmd
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	app := NewApp(cfg, logger)

	registry := prometheus.NewRegistry()
	metrics := aggregate.NewMetrics(registry)

	// The provider hands the current aggregator to the service. Without the
	// watcher it is built once; with it, each resource generation gets its
	// own aggregator while the metrics instruments stay shared.
	provider, watcher, err := buildProvider(app, cfg, metrics, logger)
	if err != nil {
		return err
	}

	conn, err := connectNATS(cfg.NATS.URL, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	opts := []service.Option{service.WithLogger(logger)}
	if cfg.Cache.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.Addr})
		defer client.Close()
		opts = append(opts, service.WithCache(cache.New(client,
			cache.WithTTL(cfg.Cache.TTL.Std()),
			cache.WithLogger(logger))))
		logger.Info("result cache enabled", slog.String("addr", cfg.Cache.Addr))
	}

	svc, err := service.New(conn, cfg.NATS.Subject, provider, opts...)
	if err != nil {
		return err
	}

	var metricsServer *http.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = serveMetrics(cfg.Metrics.Addr, registry, logger)
		defer shutdownMetrics(metricsServer, logger)
	}

	if watcher != nil {
		go func() {
			if err := watcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("resource watcher stopped", slog.String("error", err.Error()))
			}
		}()
	}

	logger.Info("semtag serving",
		slog.String("subject", cfg.NATS.Subject),
		slog.Any("backends", cfg.Backends.Enabled))

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("semtag shutdown complete")
	return nil
}

// buildProvider loads resources and returns the aggregator provider, plus
// the watcher when hot reload is on. Startup failures are fatal.
func buildProvider(app *App, cfg *config.Config, metrics *aggregate.Metrics, logger *slog.Logger) (service.AggregatorProvider, *watch.Watcher, error) {
	if !cfg.Watch.Enabled {
		res, err := app.LoadResources()
		if err != nil {
			return nil, nil, err
		}
		agg, err := app.BuildAggregator(res, metrics)
		if err != nil {
			return nil, nil, err
		}
		return func() *aggregate.Aggregator { return agg }, nil, nil
	}

	watcher, err := watch.New(app.watchPaths(), app.LoadResources, watch.WithLogger(logger))
	if err != nil {
		return nil, nil, err
	}

	// Rebuild lazily and memoize per generation.
	var mu sync.Mutex
	var lastRes *watch.Resources
	var lastAgg *aggregate.Aggregator
	provider := func() *aggregate.Aggregator {
		mu.Lock()
		defer mu.Unlock()
		res := watcher.Current()
		if res == lastRes && lastAgg != nil {
			return lastAgg
		}
		agg, err := app.BuildAggregator(res, metrics)
		if err != nil {
			// Backend construction only fails on misconfiguration, which
			// Validate rules out; keep the previous aggregator if it somehow
			// does.
			logger.Error("aggregator rebuild failed", slog.String("error", err.Error()))
			return lastAgg
		}
		lastRes, lastAgg = res, agg
		return agg
	}

	// Prime the first generation so startup failures stay fatal.
	if provider() == nil {
		return nil, nil, fmt.Errorf("initial aggregator build failed")
	}
	return provider, watcher, nil
}

func connectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	logger.Info("connecting to NATS", slog.String("url", url))
	conn, err := nats.Connect(url,
		nats.Name(appName),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second))
	if err != nil {
		return nil, wrapNATSError(err, url)
	}
	return conn, nil
}

// wrapNATSError provides helpful guidance when NATS connection fails.
func wrapNATSError(err error, url string) error {
	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "no servers available") ||
		strings.Contains(errStr, "timeout") {
		return fmt.Errorf(`NATS connection failed: %w

NATS is not running at %s.

To start NATS:
  docker compose up -d nats

Or set nats.url in semtag.yaml to point to your NATS server.`, err, url)
	}

	return fmt.Errorf("NATS connection failed: %w", err)
}

func serveMetrics(addr string, registry *prometheus.Registry, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Info("metrics listening", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	return srv
}

func shutdownMetrics(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("metrics shutdown failed", slog.String("error", err.Error()))
	}
}
