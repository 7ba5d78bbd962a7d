package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType enumerates all domain event types.
type EventType string

const (
	EventBetSettled    EventType = "bets.bet.settled"
	EventPassCompleted EventType = "bets.settlement.pass.completed"
)

// AggregateType enumerates the aggregate root types for outbox events.
type AggregateType string

const (
	AggregateBet        AggregateType = "bet"
	AggregateSettlement AggregateType = "settlement"
)

// OutboxDraft is the payload written to the event_outbox table.
type OutboxDraft struct {
	EventID       uuid.UUID       `json:"eventId"`
	AggregateType AggregateType   `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	EventType     EventType       `json:"eventType"`
	PartitionKey  string          `json:"partitionKey"`
	Headers       json.RawMessage `json:"headers"`
	Payload       json.RawMessage `json:"payload"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// OutboxRow is an outbox record read back by the relay, with its sequence id.
type OutboxRow struct {
	SeqID int64
	OutboxDraft
}

// Topic returns the Kafka topic the relay publishes this event to.
func (d OutboxDraft) Topic() string {
	return "settlement." + string(d.AggregateType) + "." + string(d.EventType)
}
