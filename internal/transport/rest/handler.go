// Package rest provides HTTP handlers for cart operations.
package rest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/abgdnv/gocart/internal/platform/web"
	"github.com/abgdnv/gocart/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// QuantityDto is the body of a quantity update.
type QuantityDto struct {
	Quantity *int `json:"quantity" validate:"required,gte=0,lte=100"`
}

// TotalDto is the body of the total endpoint.
type TotalDto struct {
	Total string `json:"total"`
}

type Handler struct {
	service  service.CartService
	storage  Pinger
	validate *validator.Validate
	logger   *slog.Logger
}

// NewHandler creates a new cart API. storage is pinged by the health check and may be nil.
func NewHandler(service service.CartService, storage Pinger, logger *slog.Logger) *Handler {
	return &Handler{
		service:  service,
		storage:  storage,
		validate: validator.New(),
		logger:   logger.With("component", "rest"),
	}
}

// RegisterRoutes registers the HTTP routes of the cart.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1/cart", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Clear)
		r.Get("/total", h.Total)

		r.Route("/items", func(r chi.Router) {
			r.Post("/", h.Add)
			r.Put("/{id}", h.UpdateQuantity)
			r.Delete("/{id}", h.DeleteItem)
		})
	})
	r.Get("/healthz", h.HealthCheck)
}

// Get returns the cart with its total and fetch status.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	cart := h.service.Cart()
	mLogger.DebugContext(r.Context(), "Successfully retrieved cart", "lines", len(cart.Items))
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// Add adds a product to the cart, fetching it from the catalog if it is not there yet.
func (h *Handler) Add(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	var form service.FormValues
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}

	mLogger.DebugContext(r.Context(), "Received request to add product", "ID", form.ProductID, "quantity", form.Quantity)
	cart, err := h.service.AddOrIncrement(r.Context(), form)
	if err != nil {
		if errors.Is(err, carterrors.ErrInvalidInput) {
			if !web.RespondValidationErrors(w, mLogger, err) {
				web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
			}
			return
		} else if errors.Is(err, carterrors.ErrFetchFailed) {
			mLogger.WarnContext(r.Context(), "Product could not be loaded", "ID", form.ProductID, "error", err)
			web.RespondError(w, mLogger, http.StatusBadGateway, fmt.Sprintf("Failed to load product %d: %v", form.ProductID, err))
			return
		}
		mLogger.ErrorContext(r.Context(), "Error adding product", "ID", form.ProductID, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, "Failed to add product")
		return
	}
	mLogger.InfoContext(r.Context(), "Product added to cart", "ID", form.ProductID)
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// UpdateQuantity sets the quantity of a line in the cart.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	var dto QuantityDto
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		mLogger.ErrorContext(r.Context(), "Error decoding request body", "error", err)
		web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validate.Struct(dto); err != nil {
		if !web.RespondValidationErrors(w, mLogger, err) {
			mLogger.ErrorContext(r.Context(), "Error validating request body", "error", err)
			web.RespondError(w, mLogger, http.StatusBadRequest, "Invalid request body")
		}
		return
	}

	cart, err := h.service.UpdateQuantity(r.Context(), id, *dto.Quantity)
	if err != nil {
		if errors.Is(err, carterrors.ErrItemNotFound) {
			mLogger.WarnContext(r.Context(), "Cart item not found for update", "ID", id)
			web.RespondError(w, mLogger, http.StatusNotFound, fmt.Sprintf("Product with ID %d is not in the cart", id))
			return
		} else if errors.Is(err, carterrors.ErrInvalidInput) {
			web.RespondError(w, mLogger, http.StatusBadRequest, err.Error())
			return
		}
		mLogger.ErrorContext(r.Context(), "Error updating cart item", "ID", id, "error", err)
		web.RespondError(w, mLogger, http.StatusInternalServerError, fmt.Sprintf("Failed to update product with ID %d", id))
		return
	}
	mLogger.InfoContext(r.Context(), "Cart item updated", "ID", id, "quantity", *dto.Quantity)
	web.RespondJSON(w, mLogger, http.StatusOK, cart)
}

// DeleteItem removes a line from the cart. Deleting a product that is not in the cart succeeds.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	id, ok := web.ParseID(w, r, mLogger)
	if !ok {
		return
	}
	h.service.DeleteItem(r.Context(), id)
	mLogger.InfoContext(r.Context(), "Cart item deleted", "ID", id)
	w.WriteHeader(http.StatusNoContent)
}

// Clear empties the cart.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	h.service.Clear(r.Context())
	mLogger.InfoContext(r.Context(), "Cart cleared")
	w.WriteHeader(http.StatusNoContent)
}

// Total returns the cart total rounded to two decimals.
func (h *Handler) Total(w http.ResponseWriter, r *http.Request) {
	mLogger := h.loggerWithReqID(r)
	web.RespondJSON(w, mLogger, http.StatusOK, TotalDto{Total: h.service.TotalPrice().StringFixed(2)})
}

// HealthCheck reports 200 when the storage is reachable.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			mLogger := h.loggerWithReqID(r)
			mLogger.ErrorContext(r.Context(), "Storage is not reachable", "error", err)
			web.RespondError(w, mLogger, http.StatusServiceUnavailable, "storage unavailable")
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// loggerWithReqID creates a logger with the request ID from the context.
func (h *Handler) loggerWithReqID(r *http.Request) *slog.Logger {
	reqID := middleware.GetReqID(r.Context())
	return h.logger.With("request_id", reqID)
}
