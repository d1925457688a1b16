package analytics

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/rates-proxy-go/internal/messaging"
	"go.uber.org/zap"
)

// NewConsumerGroup wires one consumer per proxy topic: served requests and
// quota denials each land in their own store call.
func NewConsumerGroup(subscriber message.Subscriber, store Store, logger *zap.Logger) *messaging.ConsumerGroup {
	group := messaging.NewConsumerGroup(subscriber, logger)
	group.Add(messaging.NewConsumer(subscriber, TopicRequestServed, store.SaveRequestServed, logger))
	group.Add(messaging.NewConsumer(subscriber, TopicQuotaDenied, store.SaveQuotaDenied, logger))

	return group
}
