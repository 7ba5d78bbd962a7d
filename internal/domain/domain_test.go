package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Bet Tests ---

func TestBetStatus_IsTerminal(t *testing.T) {
	assert.False(t, BetStatusPending.IsTerminal())
	assert.True(t, BetStatusWin.IsTerminal())
	assert.True(t, BetStatusLoss.IsTerminal())
	assert.True(t, BetStatusPush.IsTerminal())
	assert.False(t, BetStatus("void").IsTerminal())
}

func TestMarket_Settleable(t *testing.T) {
	tests := []struct {
		market Market
		want   bool
	}{
		{MarketSpread, true},
		{MarketMoneyline, true},
		{MarketTotal, true},
		{Market("Player Prop"), false},
		{Market("Parlay"), false},
		{Market("spread"), false},
		{Market(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.market), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.market.Settleable())
		})
	}
}

func TestOutcome_Status(t *testing.T) {
	assert.Equal(t, BetStatusWin, OutcomeWin.Status())
	assert.Equal(t, BetStatusLoss, OutcomeLoss.Status())
	assert.Equal(t, BetStatusPush, OutcomePush.Status())
	assert.True(t, OutcomePush.Status().IsTerminal())
}

func TestVerdict(t *testing.T) {
	v := Settle(OutcomeLoss)
	assert.True(t, v.Settled)
	assert.Equal(t, OutcomeLoss, v.Outcome)
	assert.Empty(t, v.Reason)

	u := Unsettled("unparseable_line")
	assert.False(t, u.Settled)
	assert.Empty(t, u.Outcome)
	assert.Equal(t, "unparseable_line", u.Reason)
}

func TestGameResult_Total(t *testing.T) {
	g := GameResult{HomeScore: decimal.NewFromInt(110), AwayScore: decimal.RequireFromString("100.5")}
	assert.True(t, g.Total().Equal(decimal.RequireFromString("210.5")))
}

// --- AppError Tests ---

func TestAppError_Error(t *testing.T) {
	t.Run("without cause", func(t *testing.T) {
		err := ErrNotFound("bet", "abc-123")
		assert.Equal(t, "NOT_FOUND: bet abc-123 not found", err.Error())
	})

	t.Run("with cause", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := ErrInternal("load pending bets", cause)
		assert.Contains(t, err.Error(), "INTERNAL_ERROR")
		assert.Contains(t, err.Error(), "connection refused")
	})
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := ErrInternal("wrapped", cause)
	assert.Equal(t, cause, errors.Unwrap(err))

	cfgErr := ErrConfig(cause)
	assert.ErrorIs(t, cfgErr, cause)
	assert.NotContains(t, cfgErr.Message, "root cause")
}

func TestErrorFactories(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		wantCode   string
		wantStatus int
	}{
		{"ErrNotFound", ErrNotFound("bet", "123"), "NOT_FOUND", 404},
		{"ErrConflict", ErrConflict("already settled"), "CONFLICT", 409},
		{"ErrValidation", ErrValidation("bad input"), "VALIDATION_ERROR", 400},
		{"ErrUnauthorized", ErrUnauthorized("no token"), "UNAUTHORIZED", 401},
		{"ErrForbidden", ErrForbidden("not allowed"), "FORBIDDEN", 403},
		{"ErrRateLimited", ErrRateLimited("slow down"), "RATE_LIMITED", 429},
		{"ErrConfig", ErrConfig(errors.New("missing ODDS_API_KEY")), "CONFIG_ERROR", 500},
		{"ErrInternal", ErrInternal("oops", nil), "INTERNAL_ERROR", 500},
		{"ErrPassInProgress", ErrPassInProgress, "PASS_IN_PROGRESS", 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantCode, tt.err.Code)
			assert.Equal(t, tt.wantStatus, tt.err.Status)
			assert.NotEmpty(t, tt.err.Message)
		})
	}
}

// --- Event Tests ---

func TestNewBetSettledEvent(t *testing.T) {
	userID := uuid.New()
	bet := Bet{
		ID:        uuid.New(),
		UserID:    userID,
		EventName: "Boston Celtics @ Los Angeles Lakers",
		Market:    MarketSpread,
		Selection: "Los Angeles Lakers -5.5",
		Odds:      -110,
		Status:    BetStatusPending,
	}
	at := time.Date(2026, 10, 15, 4, 0, 0, 0, time.UTC)

	event := NewBetSettledEvent(bet, OutcomeWin, "g1", at)

	assert.NotEqual(t, uuid.Nil, event.EventID)
	assert.Equal(t, AggregateBet, event.AggregateType)
	assert.Equal(t, bet.ID.String(), event.AggregateID)
	assert.Equal(t, EventBetSettled, event.EventType)
	assert.Equal(t, userID.String(), event.PartitionKey)
	assert.Equal(t, at, event.OccurredAt)
	assert.Equal(t, "settlement.bet.bets.bet.settled", event.Topic())

	var payload BetSettledPayload
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, bet.ID, payload.BetID)
	assert.Equal(t, OutcomeWin, payload.Outcome)
	assert.Equal(t, "g1", payload.GameID)
	assert.Equal(t, -110, payload.Odds)
}

func TestNewPassCompletedEvent(t *testing.T) {
	passID := uuid.New()
	result := PassResult{Settled: 3, TotalPending: 5, Won: 1, Lost: 1, Pushed: 1, Duration: 1500 * time.Millisecond}

	event := NewPassCompletedEvent(passID, result, time.Now().UTC())

	assert.Equal(t, AggregateSettlement, event.AggregateType)
	assert.Equal(t, passID.String(), event.AggregateID)
	assert.Equal(t, passID.String(), event.PartitionKey)
	assert.Equal(t, EventPassCompleted, event.EventType)
	assert.JSONEq(t, `{}`, string(event.Headers))

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(event.Payload, &payload))
	assert.Equal(t, float64(3), payload["settled"])
	assert.Equal(t, float64(5), payload["total_pending"])
	assert.Equal(t, float64(1500), payload["duration_ms"])
}
