package handler_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Astemirdum/library-circulation/circulation/internal/handler"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
)

type fakeSession struct {
	sarama.ConsumerGroupSession
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *fakeSession) Context() context.Context { return s.ctx }

func (s *fakeSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

type fakeClaim struct {
	sarama.ConsumerGroupClaim
	messages chan *sarama.ConsumerMessage
}

func (c *fakeClaim) Messages() <-chan *sarama.ConsumerMessage { return c.messages }

func TestConsumer_ConsumeClaim(t *testing.T) {
	t.Parallel()
	var (
		recorded []kafka.CirculationEvent
		attempts int
	)
	consumer := handler.NewConsumer(func(_ context.Context, event kafka.CirculationEvent) error {
		if event.EventUid == "flaky" {
			if attempts++; attempts < 3 {
				return errors.New("db down")
			}
		}
		recorded = append(recorded, event)
		return nil
	}, zap.NewNop(), handler.WithRecordBackoff(time.Millisecond, 2*time.Millisecond))

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 4)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 1,
		Value: []byte(`{"eventUid":"a1","eventType":"LOAN_CREATED","userId":7,"bookId":2,"loanId":11}`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 2, Value: []byte(`{not json`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 3,
		Value: []byte(`{"eventUid":"flaky","eventType":"LOAN_RETURNED"}`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 4,
		Value: []byte(`{"eventUid":"a4","eventType":"RESERVATION_CREATED"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: context.Background()}
	require.NoError(t, consumer.Setup(session))
	require.NoError(t, consumer.ConsumeClaim(session, claim))
	require.NoError(t, consumer.Cleanup(session))

	require.Equal(t, 3, attempts)
	require.Len(t, recorded, 3)
	require.Equal(t, kafka.EventLoanCreated, recorded[0].EventType)
	require.Equal(t, 11, recorded[0].LoanID)
	require.Equal(t, "flaky", recorded[1].EventUid)
	require.Equal(t, "a4", recorded[2].EventUid)
	require.Equal(t, []int64{1, 2, 3, 4}, session.marked)
}

func TestConsumer_failedRecordBlocksLaterOffsets(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		recorded []string
		failures int
	)
	consumer := handler.NewConsumer(func(_ context.Context, event kafka.CirculationEvent) error {
		if event.EventUid == "broken" {
			if failures++; failures == 3 {
				cancel()
			}
			return errors.New("db down")
		}
		recorded = append(recorded, event.EventUid)
		return nil
	}, zap.NewNop(), handler.WithRecordBackoff(time.Millisecond, time.Millisecond))

	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage, 3)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 1,
		Value: []byte(`{"eventUid":"a1","eventType":"LOAN_CREATED"}`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 2,
		Value: []byte(`{"eventUid":"broken","eventType":"LOAN_RETURNED"}`)}
	claim.messages <- &sarama.ConsumerMessage{Topic: kafka.CirculationTopic, Offset: 3,
		Value: []byte(`{"eventUid":"a3","eventType":"LOAN_CREATED"}`)}
	close(claim.messages)

	session := &fakeSession{ctx: ctx}
	require.NoError(t, consumer.ConsumeClaim(session, claim))

	require.GreaterOrEqual(t, failures, 3)
	require.Equal(t, []string{"a1"}, recorded)
	require.Equal(t, []int64{1}, session.marked)
}

func TestConsumer_stopsOnSessionEnd(t *testing.T) {
	t.Parallel()
	consumer := handler.NewConsumer(func(context.Context, kafka.CirculationEvent) error { return nil }, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	session := &fakeSession{ctx: ctx}
	claim := &fakeClaim{messages: make(chan *sarama.ConsumerMessage)}
	require.NoError(t, consumer.ConsumeClaim(session, claim))
	require.Empty(t, session.marked)
}
