// Package app contains the application setup for the cart service.
package app

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/abgdnv/gocart/internal/catalog"
	"github.com/abgdnv/gocart/internal/config"
	"github.com/abgdnv/gocart/internal/events"
	"github.com/abgdnv/gocart/internal/platform/server"
	"github.com/abgdnv/gocart/internal/service"
	"github.com/abgdnv/gocart/internal/store"
	"github.com/abgdnv/gocart/internal/transport/rest"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Dependencies struct {
	CartService    service.CartService
	Storage        store.KV
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// SetupDependencies builds the cart store on top of kv and restores the persisted cart.
// httpClient is used for catalog requests; nil selects the default instrumented client.
func SetupDependencies(ctx context.Context, cfg *config.Config, kv store.KV, publisher events.Publisher, httpClient *http.Client, logger *slog.Logger) *Dependencies {
	resolver := catalog.NewClient(cfg.Catalog, httpClient, logger)
	cService := service.NewService(resolver, kv, cfg.Storage.Key, logger,
		service.WithPublisher(publisher, cfg.Nats.Subject))
	cService.Initialize(ctx)

	return &Dependencies{
		CartService: cService,
		Storage:     kv,
		Logger:      logger,
	}
}

// SetupHttpHandler initializes the routes and middleware of the cart service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger)
	rest.NewHandler(deps.CartService, deps.Storage, deps.Logger).RegisterRoutes(mux)
	if deps.MetricsHandler != nil {
		mux.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	return otelhttp.NewHandler(mux, "cart-http")
}

// SetupHttpServer creates and configures an HTTP server for the cart service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	handler := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, handler)
}
