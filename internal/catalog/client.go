// Package catalog resolves product identifiers against the remote product catalog.
package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/abgdnv/gocart/internal/cart"
	"github.com/abgdnv/gocart/internal/config"
	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StatusError reports a catalog response with a status other than 200 OK.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog responded %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Client fetches single products from the catalog with one GET per call.
// It never retries and keeps no cache; overlapping calls are independent.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*cart.LineItem]
	logger  *slog.Logger
}

// NewClient creates a catalog client. When httpClient is nil an instrumented client
// honouring cfg.Timeout is created.
func NewClient(cfg config.CatalogConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   cfg.Timeout,
		}
	}
	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger.With("component", "catalog"),
	}
	if cfg.CircuitBreaker.Enabled {
		c.breaker = newCircuitBreaker(cfg.CircuitBreaker)
	}
	return c
}

// newCircuitBreaker trips on transport errors and 5xx responses only; a product
// the catalog does not know is not a failure of the catalog.
func newCircuitBreaker(cfg config.CircuitBreakerConfig) *gobreaker.CircuitBreaker[*cart.LineItem] {
	st := gobreaker.Settings{
		Name:        "catalog-cb",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				return statusErr.StatusCode < http.StatusInternalServerError
			}
			return false
		},
	}
	return gobreaker.NewCircuitBreaker[*cart.LineItem](st)
}

// Fetch resolves the product with the given id and returns it as a line item
// carrying quantity. A non-positive id fails with ErrInvalidID without a request;
// every other failure wraps ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, id, quantity int) (*cart.LineItem, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %d", carterrors.ErrInvalidID, id)
	}
	if c.breaker == nil {
		return c.fetch(ctx, id, quantity)
	}

	item, err := c.breaker.Execute(func() (*cart.LineItem, error) {
		return c.fetch(ctx, id, quantity)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		c.logger.WarnContext(ctx, "Catalog circuit breaker rejected request", "ID", id, "state", c.breaker.State().String())
		return nil, fmt.Errorf("%w: %w", carterrors.ErrFetchFailed, carterrors.ErrCircuitOpen)
	}
	return item, err
}

func (c *Client) fetch(ctx context.Context, id, quantity int) (*cart.LineItem, error) {
	url := fmt.Sprintf("%s/products/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", carterrors.ErrFetchFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.DebugContext(ctx, "Fetching product from catalog", "ID", id, "url", url)
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.ErrorContext(ctx, "Catalog request failed", "ID", id, "error", err)
		return nil, fmt.Errorf("%w: %w", carterrors.ErrFetchFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		c.logger.WarnContext(ctx, "Catalog returned non-OK status", "ID", id, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %w", carterrors.ErrFetchFailed, &StatusError{StatusCode: resp.StatusCode})
	}

	var item cart.LineItem
	if err := json.NewDecoder(resp.Body).Decode(&item); err != nil {
		c.logger.ErrorContext(ctx, "Error decoding catalog response", "ID", id, "error", err)
		return nil, fmt.Errorf("%w: invalid product record: %w", carterrors.ErrFetchFailed, err)
	}
	if item.ID != id {
		return nil, fmt.Errorf("%w: catalog returned product %d for id %d", carterrors.ErrFetchFailed, item.ID, id)
	}
	if item.Price.IsNegative() {
		return nil, fmt.Errorf("%w: negative price %s for product %d", carterrors.ErrFetchFailed, item.Price, id)
	}

	item.Quantity = quantity
	return &item, nil
}
