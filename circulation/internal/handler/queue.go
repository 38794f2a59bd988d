package handler

import (
	"context"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/pkg/circuit_breaker"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Enqueuer publishes circulation events for downstream consumers.
type Enqueuer interface {
	Enqueue(ctx context.Context, event kafka.CirculationEvent) error
}

func NewEnqueuer(producer sarama.SyncProducer, log *zap.Logger) Enqueuer {
	return &enqueuerImpl{
		producer: producer,
		topic:    kafka.CirculationTopic,
		cb:       circuit_breaker.New(20, 5*time.Second, 0.5, 2),
		log:      log.Named("enqueuer"),
	}
}

type enqueuerImpl struct {
	producer sarama.SyncProducer
	topic    string
	cb       circuit_breaker.CircuitBreaker
	log      *zap.Logger
}

// Enqueue keys messages by book so events of one book stay ordered within a partition.
func (q *enqueuerImpl) Enqueue(_ context.Context, event kafka.CirculationEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	msg := &sarama.ProducerMessage{
		Topic: q.topic,
		Key:   sarama.StringEncoder(strconv.Itoa(event.BookID)),
		Value: sarama.ByteEncoder(data),
	}
	return q.cb.Call(func() error {
		partition, offset, err := q.producer.SendMessage(msg)
		if err != nil {
			return err
		}
		q.log.Debug("event sent",
			zap.String("type", string(event.EventType)),
			zap.Int32("partition", partition),
			zap.Int64("offset", offset))
		return nil
	})
}

// NewNopEnqueuer drops events, used when kafka is disabled.
func NewNopEnqueuer(log *zap.Logger) Enqueuer {
	return nopEnqueuer{log: log.Named("enqueuer")}
}

type nopEnqueuer struct {
	log *zap.Logger
}

func (q nopEnqueuer) Enqueue(_ context.Context, event kafka.CirculationEvent) error {
	q.log.Debug("event dropped", zap.String("type", string(event.EventType)), zap.String("event_uid", event.EventUid))
	return nil
}
