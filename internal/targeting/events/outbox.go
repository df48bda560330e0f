package events

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"screening/internal/targeting/models"
	txcontext "screening/pkg/platform/tx"
)

// OutboxStore writes events to the outbox table. When the caller's context
// carries a transaction the event commits or rolls back with it.
type OutboxStore struct {
	db *sqlx.DB
}

func NewOutboxStore(db *sqlx.DB) *OutboxStore {
	return &OutboxStore{db: db}
}

// PublishBatch appends a committed batch to the outbox.
func (s *OutboxStore) PublishBatch(ctx context.Context, event models.BatchCommittedEvent) error {
	msg, err := NewBatchMessage(event)
	if err != nil {
		return err
	}
	return s.Append(ctx, msg)
}

func (s *OutboxStore) Append(ctx context.Context, msg Message) error {
	const query = `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	createdAt := msg.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := txcontext.Pick(ctx, s.db).ExecContext(ctx, query,
		msg.ID,
		aggregateClinic,
		msg.Key,
		msg.EventType,
		string(msg.Payload),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

// Pending returns up to limit unprocessed entries, oldest first.
func (s *OutboxStore) Pending(ctx context.Context, limit int) ([]Message, error) {
	const query = `
		SELECT id, aggregate_id, event_type, payload, created_at
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1
	`
	type outboxRow struct {
		ID          string    `db:"id"`
		AggregateID string    `db:"aggregate_id"`
		EventType   string    `db:"event_type"`
		Payload     []byte    `db:"payload"`
		CreatedAt   time.Time `db:"created_at"`
	}
	var rows []outboxRow
	if err := s.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("select pending outbox entries: %w", err)
	}
	out := make([]Message, len(rows))
	for i, r := range rows {
		out[i] = Message{
			ID:        r.ID,
			Key:       r.AggregateID,
			EventType: r.EventType,
			Payload:   r.Payload,
			CreatedAt: r.CreatedAt,
		}
	}
	return out, nil
}

func (s *OutboxStore) MarkProcessed(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	const query = `UPDATE outbox SET processed_at = $2 WHERE id = ANY($1::uuid[])`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(ids), at); err != nil {
		return fmt.Errorf("mark outbox entries processed: %w", err)
	}
	return nil
}
