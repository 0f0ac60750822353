// Package service provides the cart store: the in-memory cart of the session,
// kept in sync with the key-value storage on every change.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/abgdnv/gocart/internal/cart"
	carterrors "github.com/abgdnv/gocart/internal/errors"
	"github.com/abgdnv/gocart/internal/events"
	"github.com/abgdnv/gocart/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// CartService defines the operations on the cart.
type CartService interface {
	// Initialize restores the cart from storage. A missing, unreadable or
	// corrupt value leaves the cart empty; it is never fatal.
	Initialize(ctx context.Context)

	// AddOrIncrement increases the quantity of the line with form.ProductID, or
	// resolves the product from the catalog and appends it.
	// Returns ErrInvalidInput for bad form values and ErrFetchFailed when the
	// product cannot be resolved. In both cases the cart is unchanged.
	AddOrIncrement(ctx context.Context, form FormValues) (*CartDto, error)

	// UpdateQuantity sets the quantity of an existing line.
	// Returns ErrItemNotFound if the cart has no line with the given id.
	UpdateQuantity(ctx context.Context, id, quantity int) (*CartDto, error)

	// DeleteItem removes the line with the given id. An absent id is a no-op.
	DeleteItem(ctx context.Context, id int)

	// Clear empties the cart.
	Clear(ctx context.Context)

	// TotalPrice returns the sum of price × quantity over all lines.
	TotalPrice() decimal.Decimal

	// Cart returns a snapshot of the cart with its total and status.
	Cart() *CartDto

	Items() []cart.LineItem
	Status() Status
}

// Resolver resolves a product id to a line item carrying quantity.
type Resolver interface {
	Fetch(ctx context.Context, id, quantity int) (*cart.LineItem, error)
}

// FormValues is the input of an add.
type FormValues struct {
	ProductID int `json:"productId" validate:"required,gt=0"`
	Quantity  int `json:"quantity" validate:"required,gt=0,lte=100"`
}

// Status is what the caller sees of catalog fetches: whether one is in flight
// and the message of the last failure.
type Status struct {
	Loading bool   `json:"loading"`
	Error   string `json:"error,omitempty"`
}

// CartDto represents the cart as returned to callers.
type CartDto struct {
	Items   []cart.LineItem `json:"items"`
	Total   string          `json:"total"`
	Loading bool            `json:"loading"`
	Error   string          `json:"error,omitempty"`
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithPublisher publishes a CartUpdatedEvent on subject after every change.
// A nil publisher keeps events disabled.
func WithPublisher(publisher events.Publisher, subject string) Option {
	return func(s *Service) {
		if publisher == nil {
			return
		}
		s.publisher = publisher
		s.subject = subject
	}
}

var _ CartService = (*Service)(nil)

// Service implements CartService.
type Service struct {
	resolver  Resolver
	kv        store.KV
	key       string
	publisher events.Publisher
	subject   string
	validate  *validator.Validate
	logger    *slog.Logger

	itemsAdded      metric.Int64Counter
	fetchFailures   metric.Int64Counter
	persistFailures metric.Int64Counter

	mu       sync.Mutex
	items    []cart.LineItem
	inFlight int
	lastErr  string
}

// NewService creates a cart store persisting under key in kv. The cart is
// empty until Initialize is called.
func NewService(resolver Resolver, kv store.KV, key string, logger *slog.Logger, opts ...Option) *Service {
	meter := otel.Meter("cart-service")
	s := &Service{
		resolver:        resolver,
		kv:              kv,
		key:             key,
		publisher:       events.NoopPublisher{},
		validate:        validator.New(),
		logger:          logger.With("component", "cart"),
		itemsAdded:      mustCounter(meter, "cart_items_added", "Total number of successful adds to the cart"),
		fetchFailures:   mustCounter(meter, "cart_fetch_failures", "Total number of failed catalog fetches"),
		persistFailures: mustCounter(meter, "cart_persist_failures", "Total number of failed cart writes to storage"),
		items:           []cart.LineItem{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func mustCounter(meter metric.Meter, name, description string) metric.Int64Counter {
	counter, err := meter.Int64Counter(name, metric.WithDescription(description))
	if err != nil {
		panic(fmt.Sprintf("failed to create %s counter: %v", name, err))
	}
	return counter
}

func (s *Service) Initialize(ctx context.Context) {
	items, err := s.load(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to restore cart, starting with an empty cart", "key", s.key, "error", err)
		items = []cart.LineItem{}
	}

	s.mu.Lock()
	s.items = items
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "Cart restored", "key", s.key, "lines", len(items))
}

func (s *Service) load(ctx context.Context) ([]cart.LineItem, error) {
	raw, err := s.kv.Get(ctx, s.key)
	if errors.Is(err, carterrors.ErrKeyNotFound) {
		return []cart.LineItem{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read: %w", carterrors.ErrPersistenceFailed, err)
	}

	var items []cart.LineItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", carterrors.ErrPersistenceFailed, err)
	}
	return cart.Normalize(items), nil
}

func (s *Service) AddOrIncrement(ctx context.Context, form FormValues) (*CartDto, error) {
	if err := s.validate.Struct(form); err != nil {
		return nil, fmt.Errorf("%w: %w", carterrors.ErrInvalidInput, err)
	}

	var action cart.Action
	items, changed := s.commit(ctx, func(items []cart.LineItem) ([]cart.LineItem, bool) {
		action = cart.Plan(items, form.ProductID)
		if action == cart.ActionFetch {
			return items, false
		}
		return cart.Increment(items, form.ProductID, form.Quantity)
	})
	if changed {
		s.added(ctx, events.ActionIncreased, form.ProductID, items, action)
		return s.toDto(items), nil
	}

	item, err := s.fetch(ctx, form.ProductID, form.Quantity)
	if err != nil {
		return nil, err
	}
	// Another add may have appended the same product while the fetch was in
	// flight; Add merges into that line instead of appending a second one.
	items, _ = s.commit(ctx, func(items []cart.LineItem) ([]cart.LineItem, bool) {
		return cart.Add(items, *item), true
	})
	s.added(ctx, events.ActionAdded, form.ProductID, items, action)
	return s.toDto(items), nil
}

// fetch resolves the product while tracking the loading state and last error.
// The lock is not held during the round trip.
func (s *Service) fetch(ctx context.Context, id, quantity int) (*cart.LineItem, error) {
	s.mu.Lock()
	s.inFlight++
	s.lastErr = ""
	s.mu.Unlock()

	item, err := s.resolver.Fetch(ctx, id, quantity)

	s.mu.Lock()
	s.inFlight--
	if err != nil {
		s.lastErr = err.Error()
	}
	s.mu.Unlock()

	if err != nil {
		s.fetchFailures.Add(ctx, 1)
		s.logger.WarnContext(ctx, "Failed to resolve product", "ID", id, "error", err)
		return nil, err
	}
	return item, nil
}

func (s *Service) added(ctx context.Context, eventAction string, id int, items []cart.LineItem, action cart.Action) {
	s.itemsAdded.Add(ctx, 1, metric.WithAttributes(attribute.String("action", action.String())))
	s.logger.InfoContext(ctx, "Product added to cart", "ID", id, "action", action.String())
	s.publish(ctx, eventAction, id, items)
}

func (s *Service) UpdateQuantity(ctx context.Context, id, quantity int) (*CartDto, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: %w: %d", carterrors.ErrInvalidInput, carterrors.ErrInvalidID, id)
	}
	if quantity < 0 || quantity > cart.MaxQuantity {
		return nil, fmt.Errorf("%w: quantity must be between 0 and %d, got %d", carterrors.ErrInvalidInput, cart.MaxQuantity, quantity)
	}

	items, found := s.commit(ctx, func(items []cart.LineItem) ([]cart.LineItem, bool) {
		return cart.SetQuantity(items, id, quantity)
	})
	if !found {
		return nil, fmt.Errorf("%w: %d", carterrors.ErrItemNotFound, id)
	}
	s.publish(ctx, events.ActionUpdated, id, items)
	return s.toDto(items), nil
}

func (s *Service) DeleteItem(ctx context.Context, id int) {
	items, removed := s.commit(ctx, func(items []cart.LineItem) ([]cart.LineItem, bool) {
		return cart.Remove(items, id)
	})
	if removed {
		s.publish(ctx, events.ActionDeleted, id, items)
	}
}

func (s *Service) Clear(ctx context.Context) {
	items, _ := s.commit(ctx, func([]cart.LineItem) ([]cart.LineItem, bool) {
		return []cart.LineItem{}, true
	})
	s.publish(ctx, events.ActionCleared, 0, items)
}

func (s *Service) TotalPrice() decimal.Decimal {
	return cart.Total(s.Items())
}

func (s *Service) Items() []cart.LineItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.items)
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Status{Loading: s.inFlight > 0, Error: s.lastErr}
}

func (s *Service) Cart() *CartDto {
	return s.toDto(s.Items())
}

// commit is the only place the cart is replaced. change receives the current
// cart and returns the next one; when it reports false nothing is replaced or
// written. The new cart is persisted before the lock is released, so writes
// reach storage in the order the changes were applied.
func (s *Service) commit(ctx context.Context, change func([]cart.LineItem) ([]cart.LineItem, bool)) ([]cart.LineItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, changed := change(s.items)
	if !changed {
		return slices.Clone(s.items), false
	}
	s.items = next
	s.persist(ctx, next)
	return slices.Clone(next), true
}

// persist writes the whole cart under the storage key. A failure is logged and
// counted; the in-memory cart stays as it is.
func (s *Service) persist(ctx context.Context, items []cart.LineItem) {
	// the change is already applied, a canceled request must not drop the write
	ctx = context.WithoutCancel(ctx)

	data, err := json.Marshal(items)
	if err == nil {
		err = s.kv.Set(ctx, s.key, string(data))
	}
	if err != nil {
		s.persistFailures.Add(ctx, 1)
		s.logger.ErrorContext(ctx, "Failed to persist cart", "key", s.key,
			"error", fmt.Errorf("%w: %w", carterrors.ErrPersistenceFailed, err))
	}
}

func (s *Service) publish(ctx context.Context, action string, id int, items []cart.LineItem) {
	event := events.NewCartUpdatedEvent(s.subject, action, id, len(items), cart.FormatTotal(cart.Total(items)))
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish CartUpdatedEvent", "action", action, "error", err)
	}
}

// toDto converts a cart snapshot to a CartDto carrying the current status.
func (s *Service) toDto(items []cart.LineItem) *CartDto {
	status := s.Status()
	return &CartDto{
		Items:   items,
		Total:   cart.FormatTotal(cart.Total(items)),
		Loading: status.Loading,
		Error:   status.Error,
	}
}
