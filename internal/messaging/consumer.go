package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"
)

// Handler persists one decoded event. A returned error nacks the message so
// the stream redelivers it.
type Handler[T any] func(ctx context.Context, event *T) error

// Consumer drains a single topic, decoding each message into T before
// handing it to the handler. One consumer per topic keeps the decode type
// unambiguous; the analytics pipeline runs one for served requests and one
// for quota denials.
type Consumer[T any] struct {
	subscriber message.Subscriber
	topic      string
	handler    Handler[T]
	logger     *zap.Logger
	stop       context.CancelFunc
	drained    chan struct{}
}

// NewConsumer creates a consumer binding one topic to one handler.
func NewConsumer[T any](
	subscriber message.Subscriber,
	topic string,
	handler Handler[T],
	logger *zap.Logger,
) *Consumer[T] {
	return &Consumer[T]{
		subscriber: subscriber,
		topic:      topic,
		handler:    handler,
		logger:     logger,
		drained:    make(chan struct{}),
	}
}

// Topic returns the topic this consumer drains.
func (c *Consumer[T]) Topic() string {
	return c.topic
}

// Start subscribes and begins draining in the background. The subscription
// only goes live on success, so Shutdown after a failed Start is a no-op.
func (c *Consumer[T]) Start(ctx context.Context) error {
	runCtx, stop := context.WithCancel(ctx)

	msgs, err := c.subscriber.Subscribe(runCtx, c.topic)
	if err != nil {
		stop()

		return fmt.Errorf("subscribe %s: %w", c.topic, err)
	}

	c.stop = stop

	go c.drain(runCtx, msgs)

	return nil
}

func (c *Consumer[T]) drain(ctx context.Context, msgs <-chan *message.Message) {
	defer close(c.drained)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}

			if err := c.process(ctx, msg); err != nil {
				c.logger.Error("event not processed",
					zap.String("topic", c.topic),
					zap.String("messageId", msg.UUID),
					zap.Error(err),
				)
				msg.Nack()

				continue
			}

			msg.Ack()
		}
	}
}

func (c *Consumer[T]) process(ctx context.Context, msg *message.Message) error {
	var event T
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode %s event: %w", c.topic, err)
	}

	return c.handler(ctx, &event)
}

// Shutdown cancels the subscription and waits for the drain loop to exit.
func (c *Consumer[T]) Shutdown() error {
	if c.stop == nil {
		return nil
	}

	c.stop()
	<-c.drained

	return nil
}
