// Package events publishes cart change notifications.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// Cart actions carried by CartUpdatedEvent.
const (
	ActionAdded     = "added"
	ActionIncreased = "increased"
	ActionUpdated   = "updated"
	ActionDeleted   = "deleted"
	ActionCleared   = "cleared"
)

// CartUpdatedEvent is emitted after every change of the cart contents.
type CartUpdatedEvent struct {
	subject    string
	EventID    uuid.UUID `json:"event_id"`
	Action     string    `json:"action"`
	ProductID  int       `json:"product_id,omitempty"`
	ItemCount  int       `json:"item_count"`
	Total      string    `json:"total"`
	OccurredAt time.Time `json:"occurred_at"`
}

// NewCartUpdatedEvent creates an event published on subject.
func NewCartUpdatedEvent(subject, action string, productID, itemCount int, total string) CartUpdatedEvent {
	return CartUpdatedEvent{
		subject:    subject,
		EventID:    uuid.New(),
		Action:     action,
		ProductID:  productID,
		ItemCount:  itemCount,
		Total:      total,
		OccurredAt: time.Now().UTC(),
	}
}

func (e CartUpdatedEvent) Subject() string {
	return e.subject
}

func (e CartUpdatedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// NoopPublisher drops every event. Used when no broker is configured.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, Event) error {
	return nil
}
