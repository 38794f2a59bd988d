package kafka

import (
	"context"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	CirculationTopic      = "circulation"
	ActivityConsumerGroup = "circulation-activity"
)

type Config struct {
	Addrs   []string `yaml:"addrs" envconfig:"KAFKA_ADDRS"`
	Enabled bool     `yaml:"enabled" envconfig:"KAFKA_ENABLED" default:"true"`
}

func NewProducer(cfg Config) (sarama.SyncProducer, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Producer.RequiredAcks = sarama.WaitForAll
	defaultCfg.Producer.Return.Successes = true
	defaultCfg.Producer.Retry.Max = 3

	return sarama.NewSyncProducer(cfg.Addrs, defaultCfg)
}

func NewConsumer(cfg Config, group string) (sarama.ConsumerGroup, error) {
	defaultCfg := sarama.NewConfig()

	defaultCfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	defaultCfg.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}

	return sarama.NewConsumerGroup(cfg.Addrs, group, defaultCfg)
}

// Consume blocks until ctx is done, re-joining the group after every rebalance.
func Consume(ctx context.Context, group sarama.ConsumerGroup, handler sarama.ConsumerGroupHandler, log *zap.Logger, topics ...string) error {
	for {
		if err := group.Consume(ctx, topics, handler); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) {
				return nil
			}
			log.Error("kafka consume", zap.Error(err), zap.Strings("topics", topics))
			select {
			case <-time.After(time.Second):
			case <-ctx.Done():
				return group.Close()
			}
		}
		if ctx.Err() != nil {
			return group.Close()
		}
	}
}

type EventType string

const (
	EventLoanCreated          EventType = "LOAN_CREATED"
	EventLoanReturned         EventType = "LOAN_RETURNED"
	EventReservationCreated   EventType = "RESERVATION_CREATED"
	EventReservationReady     EventType = "RESERVATION_READY"
	EventReservationCancelled EventType = "RESERVATION_CANCELLED"
	EventReservationFulfilled EventType = "RESERVATION_FULFILLED"
)

// CirculationEvent is the message published on CirculationTopic.
type CirculationEvent struct {
	EventUid      string    `json:"eventUid"`
	EventType     EventType `json:"eventType"`
	Timestamp     time.Time `json:"timestamp"`
	UserID        int       `json:"userId"`
	BookID        int       `json:"bookId"`
	LoanID        int       `json:"loanId,omitempty"`
	ReservationID int       `json:"reservationId,omitempty"`
	Message       string    `json:"message,omitempty"`
}
