package messaging_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/serroba/rates-proxy-go/internal/analytics"
	"github.com/serroba/rates-proxy-go/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubRunnable struct {
	topic       string
	started     bool
	shutdown    bool
	startErr    error
	shutdownErr error
}

func (r *stubRunnable) Topic() string {
	return r.topic
}

func (r *stubRunnable) Start(_ context.Context) error {
	if r.startErr != nil {
		return r.startErr
	}

	r.started = true

	return nil
}

func (r *stubRunnable) Shutdown() error {
	r.shutdown = true

	return r.shutdownErr
}

func TestConsumerGroup_Start(t *testing.T) {
	t.Run("routes each topic to its own consumer", func(t *testing.T) {
		sub := newStubSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())

		var (
			mu     sync.Mutex
			served []string
			denied []string
		)

		group.Add(messaging.NewConsumer(sub, analytics.TopicRequestServed,
			func(_ context.Context, event *analytics.RequestServedEvent) error {
				mu.Lock()
				defer mu.Unlock()
				served = append(served, event.RequestID)

				return nil
			}, zap.NewNop()))
		group.Add(messaging.NewConsumer(sub, analytics.TopicQuotaDenied,
			func(_ context.Context, event *analytics.QuotaDeniedEvent) error {
				mu.Lock()
				defer mu.Unlock()
				denied = append(denied, event.RequestID)

				return nil
			}, zap.NewNop()))

		require.NoError(t, group.Start(context.Background()))
		assert.ElementsMatch(t,
			[]string{analytics.TopicRequestServed, analytics.TopicQuotaDenied},
			sub.topics(),
		)

		servedMsg := sub.emit(t, analytics.TopicRequestServed,
			servedPayload(t, &analytics.RequestServedEvent{RequestID: "req-ok"}))
		deniedMsg := sub.emit(t, analytics.TopicQuotaDenied,
			[]byte(`{"requestId":"req-denied","reason":"month"}`))

		for _, msg := range []*message.Message{servedMsg, deniedMsg} {
			select {
			case <-msg.Acked():
			case <-time.After(time.Second):
				t.Fatal("timeout waiting for ack")
			}
		}

		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, []string{"req-ok"}, served)
		assert.Equal(t, []string{"req-denied"}, denied)

		require.NoError(t, group.Shutdown())
	})

	t.Run("stops started consumers when one fails to start", func(t *testing.T) {
		sub := newStubSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		healthy := &stubRunnable{topic: analytics.TopicRequestServed}
		broken := &stubRunnable{topic: analytics.TopicQuotaDenied, startErr: errors.New("start error")}

		group.Add(healthy)
		group.Add(broken)

		err := group.Start(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), analytics.TopicQuotaDenied)
		assert.True(t, healthy.started)
		assert.True(t, healthy.shutdown)
		assert.False(t, broken.started)
	})
}

func TestConsumerGroup_Shutdown(t *testing.T) {
	t.Run("stops every consumer and closes the subscriber", func(t *testing.T) {
		sub := newStubSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		first := &stubRunnable{topic: analytics.TopicRequestServed}
		second := &stubRunnable{topic: analytics.TopicQuotaDenied}

		group.Add(first)
		group.Add(second)
		require.NoError(t, group.Start(context.Background()))

		require.NoError(t, group.Shutdown())
		assert.True(t, first.shutdown)
		assert.True(t, second.shutdown)
		assert.True(t, sub.closed)
	})

	t.Run("attempts every shutdown and joins the errors", func(t *testing.T) {
		sub := newStubSubscriber()
		group := messaging.NewConsumerGroup(sub, zap.NewNop())
		first := &stubRunnable{topic: analytics.TopicRequestServed, shutdownErr: errors.New("shutdown error 1")}
		second := &stubRunnable{topic: analytics.TopicQuotaDenied, shutdownErr: errors.New("shutdown error 2")}

		group.Add(first)
		group.Add(second)
		require.NoError(t, group.Start(context.Background()))

		err := group.Shutdown()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "shutdown error 1")
		assert.Contains(t, err.Error(), "shutdown error 2")
		assert.True(t, first.shutdown)
		assert.True(t, second.shutdown)
	})
}
