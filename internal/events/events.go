package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	EventBookingRequested      = "booking_requested"
	EventBookingAccepted       = "booking_accepted"
	EventBookingRejected       = "booking_rejected"
	EventBookingCounterOffered = "booking_counter_offered"
	EventBookingCancelled      = "booking_cancelled"
	EventBookingPaid           = "booking_paid"
	EventBookingConfirmed      = "booking_confirmed"

	EventFundsHeld     = "funds_held"
	EventFundsReleased = "funds_released"
	EventFundsRefunded = "funds_refunded"
	EventWithdrawal    = "wallet_withdrawal"
)

// BookingEventPayload describes the minimal booking snapshot for event consumers.
type BookingEventPayload struct {
	BookingID      int64  `json:"booking_id"`
	ItemID         int64  `json:"item_id"`
	RenterID       int64  `json:"renter_id"`
	OwnerID        int64  `json:"owner_id"`
	Status         string `json:"status"`
	PreviousStatus string `json:"previous_status,omitempty"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	DailyPrice     string `json:"daily_price"`
	TotalPrice     string `json:"total_price"`
	ActorID        int64  `json:"actor_id,omitempty"`
}

// EscrowEventPayload describes a money movement in an owner's wallet.
type EscrowEventPayload struct {
	BookingID int64  `json:"booking_id,omitempty"`
	WalletID  int64  `json:"wallet_id"`
	OwnerID   int64  `json:"owner_id"`
	Amount    string `json:"amount"`
	Status    string `json:"status,omitempty"`
}

// Event represents a lightweight domain event.
type Event struct {
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// Decode unmarshals the JSON payload into v.
func (e *Event) Decode(v interface{}) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.Type, err)
	}
	return nil
}

// EventHandler reacts to an event.
type EventHandler func(ctx context.Context, event *Event) error

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
}

// NewEventBus constructs an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subscribers: make(map[string][]EventHandler)}
}

// Subscribe registers a handler for a given event type.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// Publish runs every subscriber of the event type in registration order and
// returns their joined errors. A failing handler does not stop the others.
func (b *EventBus) Publish(ctx context.Context, event *Event) error {
	b.mu.RLock()
	handlers := append([]EventHandler(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	var errs []error
	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("%s handler: %w", event.Type, err))
		}
	}
	return errors.Join(errs...)
}

// PublishJSON serializes the payload and publishes an event.
func (b *EventBus) PublishJSON(ctx context.Context, eventType string, payload interface{}) error {
	if b == nil {
		return nil
	}

	event, err := NewJSONEvent(eventType, payload)
	if err != nil {
		return err
	}
	return b.Publish(ctx, &event)
}

// NewJSONEvent builds an Event with JSON payload for manual publishing.
func NewJSONEvent(eventType string, payload interface{}) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}

	return Event{Type: eventType, Payload: raw, CreatedAt: time.Now()}, nil
}
