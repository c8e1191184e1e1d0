package event

import (
	"context"
	"sync/atomic"

	"github.com/dshills/keystorm/internal/event/topic"
)

// Priority determines handler execution order for one event; lower
// values execute first.
type Priority int

const (
	// PriorityHigh is for handlers that must see an event first.
	PriorityHigh Priority = 100

	// PriorityNormal is the default priority.
	PriorityNormal Priority = 200

	// PriorityLow is for metrics and logging handlers that run last.
	PriorityLow Priority = 300
)

// DeliveryMode specifies how a subscription's handler is invoked.
type DeliveryMode int

const (
	// DeliverySync executes the handler in the publisher's goroutine.
	DeliverySync DeliveryMode = iota

	// DeliveryAsync queues the event for the bus worker goroutine.
	DeliveryAsync
)

// HandlerFunc handles a published event. The value is the published
// Event[T]; use ToEnvelope or a type assertion to unwrap the payload.
type HandlerFunc func(ctx context.Context, event any) error

// Subscription is an active registration on the bus.
type Subscription interface {
	// ID returns the unique subscription identifier.
	ID() uint64

	// Topic returns the subscribed topic pattern.
	Topic() topic.Topic

	// Cancel permanently stops event delivery to this subscription.
	Cancel()
}

// SubscriptionOption configures a subscription.
type SubscriptionOption func(*subscription)

// WithPriority sets the subscription priority.
func WithPriority(p Priority) SubscriptionOption {
	return func(s *subscription) {
		s.priority = p
	}
}

// WithDeliveryMode sets the delivery mode.
func WithDeliveryMode(m DeliveryMode) SubscriptionOption {
	return func(s *subscription) {
		s.mode = m
	}
}

// subscription is the bus's internal subscription record.
type subscription struct {
	id       uint64
	pattern  topic.Topic
	handler  HandlerFunc
	priority Priority
	mode     DeliveryMode

	cancelled atomic.Bool
	bus       *bus
}

func (s *subscription) ID() uint64 {
	return s.id
}

func (s *subscription) Topic() topic.Topic {
	return s.pattern
}

func (s *subscription) Cancel() {
	if s.cancelled.CompareAndSwap(false, true) && s.bus != nil {
		s.bus.remove(s.id)
	}
}
