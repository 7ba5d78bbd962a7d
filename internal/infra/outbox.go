package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/attaboy/settlement/internal/repository"
)

// OutboxRelay polls the event_outbox table and publishes events to Kafka.
type OutboxRelay struct {
	db        repository.DBTX
	outbox    repository.OutboxRepository
	publisher Publisher
	logger    *slog.Logger
	interval  time.Duration
	batchSize int
}

// NewOutboxRelay creates a new outbox relay.
func NewOutboxRelay(db repository.DBTX, outbox repository.OutboxRepository, publisher Publisher, interval time.Duration, batchSize int, logger *slog.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &OutboxRelay{
		db:        db,
		outbox:    outbox,
		publisher: publisher,
		logger:    logger,
		interval:  interval,
		batchSize: batchSize,
	}
}

// Run polls until ctx is cancelled.
func (r *OutboxRelay) Run(ctx context.Context) {
	r.logger.Info("outbox relay started", "interval", r.interval, "batch_size", r.batchSize)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return
		case <-ticker.C:
			if _, err := r.RelayOnce(ctx); err != nil {
				r.logger.Error("outbox relay error", "error", err)
			}
		}
	}
}

// outboxMessage is the Kafka value of a relayed event.
type outboxMessage struct {
	EventID       string          `json:"event_id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

// RelayOnce publishes one batch and returns how many events were marked
// published. The batch stops at the first publish failure so events keep
// their order; the rest are retried on the next tick.
func (r *OutboxRelay) RelayOnce(ctx context.Context) (int, error) {
	events, err := r.outbox.FetchUnpublished(ctx, r.db, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(events) == 0 {
		return 0, nil
	}

	published := make([]int64, 0, len(events))
	var publishErr error
	for _, e := range events {
		if err := r.publish(ctx, e); err != nil {
			publishErr = fmt.Errorf("publish event %s: %w", e.EventID, err)
			break
		}
		published = append(published, e.SeqID)
	}

	if err := r.outbox.MarkPublished(ctx, r.db, published); err != nil {
		return 0, err
	}

	r.logger.Debug("outbox relay batch", "fetched", len(events), "published", len(published))
	return len(published), publishErr
}

func (r *OutboxRelay) publish(ctx context.Context, e domain.OutboxRow) error {
	msg, err := json.Marshal(outboxMessage{
		EventID:       e.EventID.String(),
		AggregateType: string(e.AggregateType),
		AggregateID:   e.AggregateID,
		EventType:     string(e.EventType),
		Payload:       e.Payload,
		OccurredAt:    e.OccurredAt,
	})
	if err != nil {
		return err
	}
	return r.publisher.Publish(ctx, e.Topic(), []byte(e.PartitionKey), msg)
}
