package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// BetSettledPayload is the body of a bet settled event.
type BetSettledPayload struct {
	BetID      uuid.UUID `json:"bet_id"`
	UserID     uuid.UUID `json:"user_id"`
	EventName  string    `json:"event_name"`
	Market     Market    `json:"market"`
	Selection  string    `json:"selection"`
	Odds       int       `json:"odds"`
	Outcome    Outcome   `json:"outcome"`
	GameID     string    `json:"game_id,omitempty"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// NewBetSettledEvent creates the outbox event written alongside a bet status change.
// Events are partitioned by user so a consumer sees one user's settlements in order.
func NewBetSettledEvent(bet Bet, outcome Outcome, gameID string, resolvedAt time.Time) OutboxDraft {
	payload, _ := json.Marshal(BetSettledPayload{
		BetID:      bet.ID,
		UserID:     bet.UserID,
		EventName:  bet.EventName,
		Market:     bet.Market,
		Selection:  bet.Selection,
		Odds:       bet.Odds,
		Outcome:    outcome,
		GameID:     gameID,
		ResolvedAt: resolvedAt,
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateBet,
		AggregateID:   bet.ID.String(),
		EventType:     EventBetSettled,
		PartitionKey:  bet.UserID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    resolvedAt,
	}
}

// NewPassCompletedEvent records the aggregate counts of one settlement pass.
func NewPassCompletedEvent(passID uuid.UUID, result PassResult, finishedAt time.Time) OutboxDraft {
	payload, _ := json.Marshal(map[string]interface{}{
		"pass_id":       passID.String(),
		"settled":       result.Settled,
		"total_pending": result.TotalPending,
		"won":           result.Won,
		"lost":          result.Lost,
		"pushed":        result.Pushed,
		"duration_ms":   result.Duration.Milliseconds(),
	})
	return OutboxDraft{
		EventID:       uuid.New(),
		AggregateType: AggregateSettlement,
		AggregateID:   passID.String(),
		EventType:     EventPassCompleted,
		PartitionKey:  passID.String(),
		Headers:       json.RawMessage(`{}`),
		Payload:       payload,
		OccurredAt:    finishedAt,
	}
}
