// Package pubsub implements the stub queue on top of Google Cloud Pub/Sub.
package pubsub

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"

	"github.com/JakeFAU/cidades-pipeline/internal/crawler"
)

// Queue publishes stub messages to a topic and pulls them from a subscription.
type Queue struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	logger *zap.Logger
}

// New wraps the topic and subscription handles. Either may be nil when the
// process only produces or only consumes.
func New(topic *pubsub.Topic, sub *pubsub.Subscription, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{topic: topic, sub: sub, logger: logger}
}

// Enqueue publishes body and waits for the server to acknowledge it.
func (q *Queue) Enqueue(ctx context.Context, body []byte) error {
	if q.topic == nil {
		return errors.New("pubsub queue: topic is not configured")
	}
	result := q.topic.Publish(ctx, &pubsub.Message{Data: body})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("%w: publish stub: %w", crawler.ErrTransport, err)
	}
	q.logger.Debug("Stub enqueued", zap.String("message_id", id))
	return nil
}

// Receive delivers each pulled message to handler. Messages are acked when
// the handler succeeds and nacked otherwise, so the subscription redelivers
// them. Receive blocks until ctx ends.
func (q *Queue) Receive(ctx context.Context, handler crawler.MessageHandler) error {
	if q.sub == nil {
		return errors.New("pubsub queue: subscription is not configured")
	}
	err := q.sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, msg.Data); err != nil {
			q.logger.Warn("Message handling failed; nacking",
				zap.String("message_id", msg.ID),
				zap.Int("delivery_attempt", deliveryAttempt(msg)),
				zap.Error(err))
			msg.Nack()
			return
		}
		msg.Ack()
	})
	if err != nil {
		return fmt.Errorf("%w: receive: %w", crawler.ErrTransport, err)
	}
	return nil
}

// Close flushes pending publishes.
func (q *Queue) Close() {
	if q.topic != nil {
		q.topic.Stop()
	}
}

func deliveryAttempt(msg *pubsub.Message) int {
	if msg.DeliveryAttempt == nil {
		return 0
	}
	return *msg.DeliveryAttempt
}
