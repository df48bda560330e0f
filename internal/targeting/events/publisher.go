package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	"screening/internal/targeting/models"
)

const (
	headerEventType = "event_type"
	headerMessageID = "message_id"
)

// KafkaPublisher produces synchronously to one topic.
type KafkaPublisher struct {
	client *kgo.Client
	topic  string
}

func NewKafkaPublisher(client *kgo.Client, topic string) (*KafkaPublisher, error) {
	if client == nil {
		return nil, errors.New("kafka client is required")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}
	return &KafkaPublisher{client: client, topic: topic}, nil
}

// PublishBatch encodes and produces one committed batch.
func (p *KafkaPublisher) PublishBatch(ctx context.Context, event models.BatchCommittedEvent) error {
	msg, err := NewBatchMessage(event)
	if err != nil {
		return err
	}
	return p.Publish(ctx, msg)
}

// Publish blocks until the broker acknowledges msg.
func (p *KafkaPublisher) Publish(ctx context.Context, msg Message) error {
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(msg.Key),
		Value: msg.Payload,
		Headers: []kgo.RecordHeader{
			{Key: headerEventType, Value: []byte(msg.EventType)},
			{Key: headerMessageID, Value: []byte(msg.ID)},
		},
	}
	if !msg.CreatedAt.IsZero() {
		record.Timestamp = msg.CreatedAt
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce %s to %s: %w", msg.EventType, p.topic, err)
	}
	return nil
}
