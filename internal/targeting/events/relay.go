package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	DefaultRelayInterval  = 2 * time.Second
	DefaultRelayBatchSize = 100
)

// PendingSource is the outbox as seen by the relay.
type PendingSource interface {
	Pending(ctx context.Context, limit int) ([]Message, error)
	MarkProcessed(ctx context.Context, ids []string, at time.Time) error
}

// Sink delivers one message to the broker.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
}

// Relay drains the outbox into a Sink. Delivery is at least once: a crash
// between Publish and MarkProcessed republishes the message.
type Relay struct {
	source    PendingSource
	sink      Sink
	interval  time.Duration
	batchSize int
	now       func() time.Time
	logger    *slog.Logger
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithRelayLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithRelayClock(now func() time.Time) RelayOption {
	return func(r *Relay) {
		if now != nil {
			r.now = now
		}
	}
}

func NewRelay(source PendingSource, sink Sink, opts ...RelayOption) (*Relay, error) {
	if source == nil {
		return nil, errors.New("outbox source is required")
	}
	if sink == nil {
		return nil, errors.New("sink is required")
	}
	r := &Relay{
		source:    source,
		sink:      sink,
		interval:  DefaultRelayInterval,
		batchSize: DefaultRelayBatchSize,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Run polls until ctx is cancelled. Flush errors are logged and retried on
// the next tick.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			n, err := r.Flush(ctx)
			if err != nil && ctx.Err() == nil {
				r.logger.WarnContext(ctx, "outbox relay flush failed", "published", n, "error", err)
			}
		}
	}
}

// Flush publishes pending messages in order, stopping at the first
// failure so later events never overtake earlier ones. It returns how many
// messages were published and marked.
func (r *Relay) Flush(ctx context.Context) (int, error) {
	pending, err := r.source.Pending(ctx, r.batchSize)
	if err != nil {
		return 0, err
	}
	published := make([]string, 0, len(pending))
	var publishErr error
	for _, msg := range pending {
		if err := r.sink.Publish(ctx, msg); err != nil {
			publishErr = fmt.Errorf("publish outbox entry %s: %w", msg.ID, err)
			break
		}
		published = append(published, msg.ID)
	}
	if len(published) == 0 {
		return 0, publishErr
	}
	if err := r.source.MarkProcessed(ctx, published, r.now()); err != nil {
		return 0, errors.Join(publishErr, err)
	}
	return len(published), publishErr
}
