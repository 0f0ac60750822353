package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abgdnv/gocart/internal/config"
	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const backpack = `{"id":1,"title":"Fjallraven Backpack","price":109.95,"description":"Your perfect pack","category":"men's clothing","image":"https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg","rating":{"rate":3.9,"count":120}}`

// fakeCatalog serves a fixed response per path and counts requests.
type fakeCatalog struct {
	calls     atomic.Int32
	responses map[string]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeCatalog) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.calls.Add(1)
	resp, ok := f.responses[r.URL.Path]
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.status)
	_, _ = io.WriteString(w, resp.body)
}

func newTestClient(t *testing.T, handler http.Handler, cfg config.CatalogConfig) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL + "/"
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	return NewClient(cfg, srv.Client(), logger)
}

func Test_Client_Fetch(t *testing.T) {
	fake := &fakeCatalog{responses: map[string]fakeResponse{
		"/products/1": {status: http.StatusOK, body: backpack},
		"/products/2": {status: http.StatusOK, body: ""},
		"/products/3": {status: http.StatusOK, body: `{"id":3,"title":`},
		"/products/4": {status: http.StatusOK, body: backpack},
		"/products/5": {status: http.StatusInternalServerError, body: `{}`},
		"/products/6": {status: http.StatusOK, body: `{"id":6,"title":"bad","price":-1}`},
		"/products/7": {status: http.StatusCreated, body: `{"id":7}`},
	}}
	client := newTestClient(t, fake, config.CatalogConfig{})

	testCases := []struct {
		name       string
		id         int
		wantErr    error
		wantStatus int
	}{
		{name: "success", id: 1},
		{name: "empty body", id: 2, wantErr: carterrors.ErrFetchFailed},
		{name: "malformed body", id: 3, wantErr: carterrors.ErrFetchFailed},
		{name: "mismatched id", id: 4, wantErr: carterrors.ErrFetchFailed},
		{name: "server error", id: 5, wantErr: carterrors.ErrFetchFailed, wantStatus: http.StatusInternalServerError},
		{name: "negative price", id: 6, wantErr: carterrors.ErrFetchFailed},
		{name: "non-200 success status", id: 7, wantErr: carterrors.ErrFetchFailed, wantStatus: http.StatusCreated},
		{name: "not found", id: 9999, wantErr: carterrors.ErrFetchFailed, wantStatus: http.StatusNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// when
			item, err := client.Fetch(context.Background(), tc.id, 3)

			// then
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, item)
				if tc.wantStatus != 0 {
					var statusErr *StatusError
					require.ErrorAs(t, err, &statusErr)
					assert.Equal(t, tc.wantStatus, statusErr.StatusCode)
				}
				return
			}
			require.NoError(t, err)
			require.NotNil(t, item)
			assert.Equal(t, 1, item.ID)
			assert.Equal(t, "Fjallraven Backpack", item.Title)
			assert.True(t, decimal.RequireFromString("109.95").Equal(item.Price))
			assert.Equal(t, "men's clothing", item.Category)
			assert.Equal(t, "https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg", item.ImageURL)
			assert.Equal(t, 3, item.Quantity, "quantity should come from the caller")
		})
	}
}

func Test_Client_Fetch_InvalidIDSkipsRequest(t *testing.T) {
	fake := &fakeCatalog{}
	client := newTestClient(t, fake, config.CatalogConfig{})

	for _, id := range []int{0, -1} {
		_, err := client.Fetch(context.Background(), id, 1)
		assert.ErrorIs(t, err, carterrors.ErrInvalidID)
	}
	assert.Zero(t, fake.calls.Load(), "no request should reach the catalog")
}

func Test_Client_Fetch_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	client := NewClient(config.CatalogConfig{BaseURL: baseURL}, nil, logger)

	_, err := client.Fetch(context.Background(), 1, 1)

	assert.ErrorIs(t, err, carterrors.ErrFetchFailed)
}

func Test_Client_Fetch_ContextCanceled(t *testing.T) {
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}), config.CatalogConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Fetch(ctx, 1, 1)

	require.ErrorIs(t, err, carterrors.ErrFetchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func Test_Client_CircuitBreaker(t *testing.T) {
	// given
	fake := &fakeCatalog{responses: map[string]fakeResponse{
		"/products/1": {status: http.StatusServiceUnavailable},
	}}
	client := newTestClient(t, fake, config.CatalogConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, ConsecutiveFailures: 2, OpenTimeout: time.Minute},
	})
	ctx := context.Background()

	// when the catalog keeps failing
	for range 2 {
		_, err := client.Fetch(ctx, 1, 1)
		require.ErrorIs(t, err, carterrors.ErrFetchFailed)
		require.NotErrorIs(t, err, carterrors.ErrCircuitOpen)
	}
	_, err := client.Fetch(ctx, 1, 1)

	// then the breaker opens and stops calling the catalog
	assert.ErrorIs(t, err, carterrors.ErrFetchFailed)
	assert.ErrorIs(t, err, carterrors.ErrCircuitOpen)
	assert.EqualValues(t, 2, fake.calls.Load())
}

func Test_Client_CircuitBreaker_NotFoundDoesNotTrip(t *testing.T) {
	fake := &fakeCatalog{}
	client := newTestClient(t, fake, config.CatalogConfig{
		CircuitBreaker: config.CircuitBreakerConfig{Enabled: true, ConsecutiveFailures: 1, OpenTimeout: time.Minute},
	})

	for range 3 {
		_, err := client.Fetch(context.Background(), 9999, 1)
		require.ErrorIs(t, err, carterrors.ErrFetchFailed)
		require.NotErrorIs(t, err, carterrors.ErrCircuitOpen)
	}
	assert.EqualValues(t, 3, fake.calls.Load())
}
