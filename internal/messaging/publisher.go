package messaging

import (
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Publish emits one typed event. Callers on the request path treat a
// returned error as log-and-continue; serving the request never depends on
// the analytics stream.
type Publish[T any] func(event *T) error

// NewPublishFunc binds a topic to an event type, marshaling each event into
// a uuid-stamped message.
func NewPublishFunc[T any](publisher message.Publisher, topic string) Publish[T] {
	return func(event *T) error {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}

		msg := message.NewMessage(uuid.NewString(), payload)

		return publisher.Publish(topic, msg)
	}
}

// NoopPublish returns a publish function that drops events. It is used in
// local single-instance mode, where no message transport is configured.
func NoopPublish[T any]() Publish[T] {
	return func(_ *T) error { return nil }
}

// PublisherGroup manages the underlying publisher lifecycle.
type PublisherGroup struct {
	publisher message.Publisher
}

// NewPublisherGroup creates a new publisher group.
func NewPublisherGroup(publisher message.Publisher) *PublisherGroup {
	return &PublisherGroup{publisher: publisher}
}

// Publisher returns the underlying message publisher for creating typed publish functions.
func (g *PublisherGroup) Publisher() message.Publisher {
	return g.publisher
}

// Shutdown closes the underlying publisher.
func (g *PublisherGroup) Shutdown() error {
	if g == nil {
		return nil
	}

	return g.publisher.Close()
}
