package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus.
//
// - Type-based fan-out: handlers subscribe by Event.Type().
// - Topics scope subscriptions; the default topic is "".
// - Delivery is synchronous, in subscription order, in the publisher's goroutine.
// - Handler errors are joined and returned from Publish.
type EventBus interface {
	// Publish delivers the event to the subscribers of event.Type() in the
	// default topic.
	Publish(event Event) error
	// PublishToTopic delivers the event within a topic.
	PublishToTopic(topic string, event Event) error
	// PublishWithFilters drops the event silently if any filter rejects it.
	PublishWithFilters(event Event, filters ...EventFilter) error

	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	SubscribeTopic(topic, eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the subscription. A nil subscription is ignored.
	Unsubscribe(Subscription) error

	// Topics returns the topics that currently have subscribers, sorted.
	Topics() []string
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	// EventHandler is invoked per delivered event.
	EventHandler func(event Event) error
	// EventFilter decides whether an event should be delivered.
	EventFilter func(event Event) bool
)

// Subscription is a registered handler bound to an event type.
type Subscription interface {
	ID() string
	Topic() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}
