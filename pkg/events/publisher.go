package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"
)

// DefaultTopic receives lifecycle transitions.
const DefaultTopic = "transcript.status"

// StatusChanged is emitted after a transcript request transition commits.
type StatusChanged struct {
	RequestID  string    `json:"request_id"`
	MatricNo   string    `json:"matric_no,omitempty"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Note       string    `json:"note,omitempty"`
	Source     string    `json:"source,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher delivers lifecycle events to downstream consumers.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, event StatusChanged) error
	Close() error
}

// KafkaPublisher writes events to a Kafka topic keyed by request id so that
// per-request ordering is preserved within a partition.
type KafkaPublisher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaProducerConfig returns the producer settings used in production.
func NewKafkaProducerConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.ClientID = "transcript-api"
	cfg.Producer.Return.Successes = true
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Version = sarama.V2_8_0_0
	return cfg
}

// NewKafkaPublisher dials brokers and returns a publisher.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	producer, err := sarama.NewSyncProducer(brokers, NewKafkaProducerConfig())
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return NewKafkaPublisherWithProducer(producer, topic, logger), nil
}

// NewKafkaPublisherWithProducer wraps an existing producer.
func NewKafkaPublisherWithProducer(producer sarama.SyncProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// PublishStatusChanged sends the event synchronously.
func (p *KafkaPublisher) PublishStatusChanged(ctx context.Context, event StatusChanged) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal status event: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(event.RequestID),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte("status_changed")},
		},
	}
	partition, offset, err := p.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("publish status event: %w", err)
	}
	p.logger.Debug("status event published",
		zap.String("request_id", event.RequestID),
		zap.String("to_status", event.ToStatus),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset),
	)
	return nil
}

// Close flushes and closes the producer.
func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher drops every event. Used when no brokers are configured.
type NoopPublisher struct{}

// PublishStatusChanged implements Publisher.
func (NoopPublisher) PublishStatusChanged(context.Context, StatusChanged) error { return nil }

// Close implements Publisher.
func (NoopPublisher) Close() error { return nil }

// New picks a Kafka publisher when brokers are present, otherwise a NoopPublisher.
func New(brokers []string, topic string, logger *zap.Logger) (Publisher, error) {
	if len(brokers) == 0 {
		return NoopPublisher{}, nil
	}
	return NewKafkaPublisher(brokers, topic, logger)
}
