// Package events publishes invitation batch events to Kafka, either
// directly or through a Postgres outbox relayed by a background worker.
package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screening/internal/targeting/models"
)

const aggregateClinic = "clinic"

// Message is one event on its way to the broker.
type Message struct {
	ID        string
	Key       string
	EventType string
	Payload   []byte
	CreatedAt time.Time
}

// NewBatchMessage encodes a committed batch keyed by clinic, so events for
// one clinic stay ordered on a partition.
func NewBatchMessage(event models.BatchCommittedEvent) (Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return Message{}, fmt.Errorf("marshal batch event %s: %w", event.BatchID, err)
	}
	return Message{
		ID:        uuid.NewString(),
		Key:       event.ClinicID,
		EventType: models.EventTypeBatchCommitted,
		Payload:   payload,
		CreatedAt: event.CommittedAt,
	}, nil
}
