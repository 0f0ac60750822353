// Package main runs the cart HTTP service.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "net/http/pprof"

	"github.com/abgdnv/gocart/internal/app"
	"github.com/abgdnv/gocart/internal/config"
	"github.com/abgdnv/gocart/internal/events"
	"github.com/abgdnv/gocart/internal/platform/configloader"
	"github.com/abgdnv/gocart/internal/platform/logger"
	"github.com/abgdnv/gocart/internal/platform/telemetry"
	"github.com/abgdnv/gocart/internal/store"
	"golang.org/x/sync/errgroup"
)

const serviceName = "cart"

// defaults keep the service runnable without a config file.
var defaults = map[string]any{
	"server.port":               8080,
	"server.maxHeaderBytes":     1 << 20,
	"server.timeout.read":       "10s",
	"server.timeout.write":      "15s",
	"server.timeout.idle":       "60s",
	"server.timeout.readHeader": "5s",
	"log.level":                 "info",
	"pprof.addr":                ":6060",
	"shutdown.timeout":          "5s",
	"catalog.baseurl":           "https://fakestoreapi.com",
	"storage.driver":            config.DriverSQLite,
	"storage.key":               "cart-products",
	"storage.sqlite.path":       "cart.db",
	"nats.timeout":              "5s",
	"nats.subject":              "cart.updated",
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("application run failed: %v", err)
		os.Exit(1)
	}
	log.Println("application stopped gracefully")
}

// run loads the configuration, opens the storage and starts the HTTP and pprof servers.
func run(ctx context.Context) error {
	cfg, cfgErr := configloader.Load[config.Config](serviceName, configloader.WithDefaults(defaults))
	if cfgErr != nil {
		return fmt.Errorf("failed to load configuration: %w", cfgErr)
	}
	log.Printf("Configuration loaded: %v", cfg)

	appLogger := logger.New(os.Stdout, cfg.Log.Level)
	slog.SetDefault(appLogger)

	if cfg.Telemetry.TracingEnabled() {
		tp, err := telemetry.NewTracerProvider(ctx, serviceName, cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("failed to create tracer provider: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				appLogger.Error("Failed to shutdown tracer provider", "error", err)
			}
		}()
	}
	mp, metricsHandler, err := telemetry.NewMeterProvider(serviceName)
	if err != nil {
		return fmt.Errorf("failed to create meter provider: %w", err)
	}
	defer func() {
		if err := mp.Shutdown(context.Background()); err != nil {
			appLogger.Error("Failed to shutdown meter provider", "error", err)
		}
	}()

	kv, err := store.Open(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("failed to open %s storage: %w", cfg.Storage.Driver, err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			appLogger.Error("Failed to close storage", "error", err)
		}
	}()
	appLogger.Info("Storage opened", slog.String("driver", cfg.Storage.Driver))

	publisher, closePublisher, err := newPublisher(cfg.Nats, appLogger)
	if err != nil {
		return err
	}
	defer closePublisher()

	deps := app.SetupDependencies(ctx, cfg, kv, publisher, nil, appLogger)
	deps.MetricsHandler = metricsHandler
	httpServer := app.SetupHttpServer(deps, cfg)
	pprofServer := &http.Server{
		Addr: cfg.PProf.Addr,
	}

	g, gCtx := errgroup.WithContext(ctx)

	// Start the HTTP server
	g.Go(func() error {
		appLogger.Info("HTTP server listening", slog.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	// gracefully shutdown HTTP server on context cancellation
	g.Go(func() error {
		<-gCtx.Done()
		appLogger.Info("Shutting down HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	// Start the pprof server if enabled
	if cfg.PProf.Enabled {
		g.Go(func() error {
			appLogger.Info("Pprof server listening", slog.String("addr", pprofServer.Addr))
			if err := pprofServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("pprof server failed: %w", err)
			}
			return nil
		})
		// gracefully shutdown pprof server on context cancellation
		g.Go(func() error {
			<-gCtx.Done()
			appLogger.Info("Shutting down pprof server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Shutdown.Timeout)
			defer cancel()
			return pprofServer.Shutdown(shutdownCtx)
		})
	}
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("errgroup encountered an error: %w", err)
	}
	return nil
}

// newPublisher connects to NATS when it is configured. Without a URL cart events are dropped.
func newPublisher(cfg config.NATSConfig, logger *slog.Logger) (events.Publisher, func(), error) {
	if !cfg.Enabled() {
		logger.Info("NATS is not configured, cart events are disabled")
		return events.NoopPublisher{}, func() {}, nil
	}
	nc, err := events.NewClient(cfg.Url, cfg.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := events.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("Connected to NATS", slog.String("url", nc.ConnectedUrl()), slog.String("subject", cfg.Subject))
	return events.NewNatsPublisher(js), func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", "error", err)
		}
	}, nil
}
