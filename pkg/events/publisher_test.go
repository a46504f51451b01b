package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaPublisherSendsKeyedMessage(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "transcript.status" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "req-1" {
			return errors.New("unexpected key " + string(key))
		}
		value, err := msg.Value.Encode()
		if err != nil {
			return err
		}
		var event StatusChanged
		if err := json.Unmarshal(value, &event); err != nil {
			return err
		}
		if event.ToStatus != "PAID" || event.OccurredAt.IsZero() {
			return errors.New("unexpected payload")
		}
		return nil
	})

	publisher := NewKafkaPublisherWithProducer(producer, "", nil)
	err := publisher.PublishStatusChanged(context.Background(), StatusChanged{RequestID: "req-1", FromStatus: "PAYMENT_PENDING", ToStatus: "PAID"})
	require.NoError(t, err)
	require.NoError(t, publisher.Close())
}

func TestKafkaPublisherSurfacesFailures(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	publisher := NewKafkaPublisherWithProducer(producer, "custom", nil)
	err := publisher.PublishStatusChanged(context.Background(), StatusChanged{RequestID: "req-1", ToStatus: "SENT"})
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, publisher.Close())
}

func TestNewWithoutBrokersIsNoop(t *testing.T) {
	publisher, err := New(nil, "", nil)
	require.NoError(t, err)
	assert.IsType(t, NoopPublisher{}, publisher)
	assert.NoError(t, publisher.PublishStatusChanged(context.Background(), StatusChanged{}))
}
