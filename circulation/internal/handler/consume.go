package handler

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

type recordActivity func(ctx context.Context, event kafka.CirculationEvent) error

const (
	defaultRecordBackoff    = 100 * time.Millisecond
	defaultMaxRecordBackoff = 10 * time.Second
)

// Consumer writes circulation events into the activity log.
// Offsets are marked in order, a failed write blocks the partition until it succeeds.
type Consumer struct {
	record     recordActivity
	log        *zap.Logger
	backoff    time.Duration
	maxBackoff time.Duration
}

type ConsumerOption func(*Consumer)

func WithRecordBackoff(base, maxDelay time.Duration) ConsumerOption {
	return func(c *Consumer) {
		c.backoff = base
		c.maxBackoff = maxDelay
	}
}

func NewConsumer(record recordActivity, log *zap.Logger, opts ...ConsumerOption) *Consumer {
	c := &Consumer{
		record:     record,
		log:        log.Named("consumer"),
		backoff:    defaultRecordBackoff,
		maxBackoff: defaultMaxRecordBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (consumer *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (consumer *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok {
				consumer.log.Warn("message channel was closed")
				return nil
			}
			var event kafka.CirculationEvent
			if err := json.Unmarshal(message.Value, &event); err != nil {
				// poison message, skip it
				consumer.log.Error("unmarshal event", zap.Error(err), zap.ByteString("value", message.Value))
				session.MarkMessage(message, "")
				continue
			}
			if !consumer.recordWithRetry(session.Context(), event) {
				// session is over, the message stays unmarked
				return nil
			}
			consumer.log.Debug("message claimed",
				zap.String("event_uid", event.EventUid),
				zap.Time("timestamp", message.Timestamp),
				zap.String("topic", message.Topic))
			session.MarkMessage(message, "")
		case <-session.Context().Done():
			return nil
		}
	}
}

// recordWithRetry keeps retrying until the event is stored or ctx is done.
func (consumer *Consumer) recordWithRetry(ctx context.Context, event kafka.CirculationEvent) bool {
	delay := consumer.backoff
	for attempt := 1; ; attempt++ {
		err := consumer.record(ctx, event)
		if err == nil {
			return true
		}
		consumer.log.Error("record activity",
			zap.Error(err),
			zap.String("event_uid", event.EventUid),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay))

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-timer.C:
		}
		if delay *= 2; delay > consumer.maxBackoff {
			delay = consumer.maxBackoff
		}
	}
}
