// Package e2e provides end-to-end tests for the cart service.
// The suite starts a PostgreSQL container with testcontainers-go and runs the
// real application handler in an httptest.Server, persisting the cart through
// the postgres KV backend. The product catalog is a local fake server.
//
// Each test starts from an empty cart: the KV table is truncated and the
// application is rebuilt, so it restores its state from storage like a fresh
// process would.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/abgdnv/gocart/internal/app"
	"github.com/abgdnv/gocart/internal/config"
	"github.com/abgdnv/gocart/internal/events"
	"github.com/abgdnv/gocart/internal/service"
	"github.com/abgdnv/gocart/internal/store"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// skipE2ETests is the environment variable that can be set to skip E2E tests.
const skipE2ETests = "CART_SKIP_E2E_TESTS"

const cartURL = "/api/v1/cart"

var products = map[string]string{
	"/products/1": `{"id":1,"title":"Fjallraven Backpack","price":109.95,"description":"Your perfect pack","category":"men's clothing","image":"https://fakestoreapi.com/img/1.jpg","rating":{"rate":3.9,"count":120}}`,
	"/products/2": `{"id":2,"title":"Slim Fit T-Shirt","price":22.3,"description":"Slim-fitting style","category":"men's clothing","image":"https://fakestoreapi.com/img/2.jpg"}`,
	"/products/3": `{"id":3,"title":"Cotton Jacket","price":55.99,"description":"Great outerwear","category":"men's clothing","image":"https://fakestoreapi.com/img/3.jpg"}`,
}

// CartServiceE2ESuite is a test suite for end-to-end tests of the cart service.
type CartServiceE2ESuite struct {
	suite.Suite
	pgContainer *postgres.PostgresContainer
	dbPool      *pgxpool.Pool
	kv          store.KV
	catalog     *httptest.Server
	server      *httptest.Server
	appCfg      *config.Config
	logger      *slog.Logger
	ctx         context.Context
}

// testConfig creates a configuration for the cart service pointing at the fake catalog.
func testConfig(catalogURL, dbURL string) *config.Config {
	var cfg config.Config

	cfg.HTTPServer.Port = 0 // httptest.Server will assign a random port
	cfg.HTTPServer.MaxHeaderBytes = 1 << 20
	cfg.HTTPServer.Timeout.Read = 10 * time.Minute
	cfg.HTTPServer.Timeout.Write = 10 * time.Minute
	cfg.HTTPServer.Timeout.Idle = 60 * time.Minute
	cfg.HTTPServer.Timeout.ReadHeader = 5 * time.Minute

	cfg.Catalog.BaseURL = catalogURL
	cfg.Catalog.Timeout = 5 * time.Second
	cfg.Storage.Driver = config.DriverPostgres
	cfg.Storage.Key = "cart-products"
	cfg.Storage.DB.URL = dbURL
	cfg.Storage.DB.Timeout = 30 * time.Second
	return &cfg
}

// SetupSuite starts the PostgreSQL container and the fake catalog, and opens the store.
func (s *CartServiceE2ESuite) SetupSuite() {
	s.ctx = context.Background()
	var err error
	s.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))

	// 1. Start a PostgreSQL container. Wait for the container to be ready.
	s.pgContainer, err = postgres.Run(s.ctx,
		"postgres:17.5-alpine",
		postgres.WithDatabase("cart_db"),
		postgres.WithUsername("user"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(5*time.Minute),
		),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("5432/tcp"),
		),
	)
	require.NoError(s.T(), err, "Failed to run PostgreSQL container")

	connStr, err := s.pgContainer.ConnectionString(s.ctx, "sslmode=disable")
	require.NoError(s.T(), err, "Failed to get connection string from container")

	// 2. Fake product catalog
	s.catalog = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := products[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, body)
	}))

	// 3. Open the store the way the service does; migrations are applied on open.
	s.appCfg = testConfig(s.catalog.URL, connStr)
	s.kv, err = store.Open(s.ctx, s.appCfg.Storage)
	require.NoError(s.T(), err, "Failed to open postgres store")

	s.dbPool, err = pgxpool.New(s.ctx, connStr)
	require.NoError(s.T(), err, "Failed to create pgx pool")
}

// TearDownSuite cleans up resources after all tests in the suite have run.
func (s *CartServiceE2ESuite) TearDownSuite() {
	if s.server != nil {
		s.server.Close()
	}
	if s.catalog != nil {
		s.catalog.Close()
	}
	if s.kv != nil {
		_ = s.kv.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
	if s.pgContainer != nil {
		if err := s.pgContainer.Terminate(s.ctx); err != nil {
			s.logger.Warn("Failed to terminate E2E PostgreSQL container", "error", err)
		}
	}
}

// SetupTest empties the storage and starts a fresh application.
func (s *CartServiceE2ESuite) SetupTest() {
	_, err := s.dbPool.Exec(s.ctx, "TRUNCATE TABLE cart_kv")
	require.NoError(s.T(), err, "Failed to truncate cart_kv table")
	s.restart()
}

// restart replaces the running application with a new one built on the same storage.
func (s *CartServiceE2ESuite) restart() {
	if s.server != nil {
		s.server.Close()
	}
	deps := app.SetupDependencies(s.ctx, s.appCfg, s.kv, events.NoopPublisher{}, s.catalog.Client(), s.logger)
	s.server = httptest.NewServer(app.SetupHttpHandler(deps))
}

func TestCartServiceE2E(t *testing.T) {
	if os.Getenv(skipE2ETests) == "1" {
		t.Skip("Skipping E2E tests based on " + skipE2ETests + " env var")
	}
	suite.Run(t, new(CartServiceE2ESuite))
}

// --------------------------------------------------------------------------
// ---------- Helper methods for E2E tests -----------------------------------
// --------------------------------------------------------------------------

func (s *CartServiceE2ESuite) do(method, path, body string) (int, []byte) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.server.URL+path, reader)
	require.NoError(s.T(), err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := s.server.Client().Do(req)
	require.NoError(s.T(), err)
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	require.NoError(s.T(), err)
	return resp.StatusCode, data
}

func (s *CartServiceE2ESuite) add(id, quantity int) service.CartDto {
	code, body := s.do(http.MethodPost, cartURL+"/items", fmt.Sprintf(`{"productId":%d,"quantity":%d}`, id, quantity))
	require.Equal(s.T(), http.StatusOK, code, string(body))
	var cart service.CartDto
	require.NoError(s.T(), json.NewDecoder(bytes.NewReader(body)).Decode(&cart))
	return cart
}

func (s *CartServiceE2ESuite) getCart() service.CartDto {
	code, body := s.do(http.MethodGet, cartURL, "")
	require.Equal(s.T(), http.StatusOK, code)
	var cart service.CartDto
	require.NoError(s.T(), json.Unmarshal(body, &cart))
	return cart
}

func ids(cart service.CartDto) []int {
	out := make([]int, 0, len(cart.Items))
	for _, item := range cart.Items {
		out = append(out, item.ID)
	}
	return out
}

// --------------------------------------------------------------------------
// ---------- Tests ----------------------------------------------------------
// --------------------------------------------------------------------------

func (s *CartServiceE2ESuite) TestAddMergesAndPersists() {
	// when
	s.add(1, 2)
	s.add(2, 1)
	cart := s.add(1, 3)

	// then
	s.Equal([]int{1, 2}, ids(cart))
	s.Equal(5, cart.Items[0].Quantity)
	s.Equal("572.05", cart.Total)

	// and the cart survives a restart
	s.restart()
	restored := s.getCart()
	s.Equal([]int{1, 2}, ids(restored))
	s.Equal(5, restored.Items[0].Quantity)
	s.Equal("Fjallraven Backpack", restored.Items[0].Title)
	s.Equal("572.05", restored.Total)
}

func (s *CartServiceE2ESuite) TestUnknownProduct() {
	s.add(1, 1)

	code, body := s.do(http.MethodPost, cartURL+"/items", `{"productId":9999,"quantity":1}`)

	s.Equal(http.StatusBadGateway, code)
	s.Contains(string(body), "404")
	cart := s.getCart()
	s.Equal([]int{1}, ids(cart))
	s.False(cart.Loading)
	s.Contains(cart.Error, "404")
}

func (s *CartServiceE2ESuite) TestInvalidInput() {
	testCases := []struct {
		name string
		body string
	}{
		{name: "zero quantity", body: `{"productId":1,"quantity":0}`},
		{name: "missing product", body: `{"quantity":1}`},
		{name: "quantity above limit", body: `{"productId":1,"quantity":101}`},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			code, body := s.do(http.MethodPost, cartURL+"/items", tc.body)

			s.Equal(http.StatusBadRequest, code)
			s.Contains(string(body), "validation_errors")
			s.Empty(s.getCart().Items)
		})
	}
}

func (s *CartServiceE2ESuite) TestUpdateDeleteClear() {
	s.add(1, 1)
	s.add(2, 1)
	s.add(3, 1)

	code, _ := s.do(http.MethodPut, cartURL+"/items/2", `{"quantity":4}`)
	s.Equal(http.StatusOK, code)
	code, _ = s.do(http.MethodPut, cartURL+"/items/9", `{"quantity":4}`)
	s.Equal(http.StatusNotFound, code)

	code, _ = s.do(http.MethodDelete, cartURL+"/items/1", "")
	s.Equal(http.StatusNoContent, code)
	code, _ = s.do(http.MethodDelete, cartURL+"/items/1", "")
	s.Equal(http.StatusNoContent, code, "deleting an absent product succeeds")

	code, body := s.do(http.MethodGet, cartURL+"/total", "")
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"total":"145.19"}`, string(body))

	code, _ = s.do(http.MethodDelete, cartURL, "")
	s.Equal(http.StatusNoContent, code)

	s.restart()
	cart := s.getCart()
	s.Empty(cart.Items)
	s.Equal("0.00", cart.Total)
}

func (s *CartServiceE2ESuite) TestCorruptStorage() {
	// given a value that is not a JSON array
	_, err := s.dbPool.Exec(s.ctx, "INSERT INTO cart_kv (key, value) VALUES ($1, $2)", "cart-products", `{"id":1,`)
	require.NoError(s.T(), err)

	// when
	s.restart()

	// then
	cart := s.getCart()
	s.Empty(cart.Items)
	s.Equal("0.00", cart.Total)
	s.add(1, 1)
}

func (s *CartServiceE2ESuite) TestHealthCheck() {
	code, _ := s.do(http.MethodGet, "/healthz", "")
	s.Equal(http.StatusOK, code)
}
