//go:build integration

package testutil

import (
	"context"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/google/uuid"
)

// InsertBet seeds a pending bet and returns its ID.
func (env *TestEnv) InsertBet(eventName string, market domain.Market, selection string) uuid.UUID {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id := uuid.New()
	_, err := env.Pool.Exec(ctx, `
		INSERT INTO bets (id, user_id, event_name, market, selection, odds, status, created_at)
		VALUES ($1, $2, $3, $4, $5, -110, 'pending', now())`,
		id, uuid.New(), eventName, string(market), selection)
	if err != nil {
		env.t.Fatalf("InsertBet: %v", err)
	}
	return id
}

// GetBet loads a bet by ID.
func (env *TestEnv) GetBet(id uuid.UUID) domain.Bet {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var b domain.Bet
	err := env.Pool.QueryRow(ctx, `
		SELECT id, user_id, event_name, market, selection, odds, status, resolved_at, created_at
		FROM bets WHERE id = $1`, id).
		Scan(&b.ID, &b.UserID, &b.EventName, &b.Market, &b.Selection, &b.Odds, &b.Status, &b.ResolvedAt, &b.CreatedAt)
	if err != nil {
		env.t.Fatalf("GetBet: %v", err)
	}
	return b
}

// CountOutbox counts outbox rows of an event type.
func (env *TestEnv) CountOutbox(eventType domain.EventType) int {
	env.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var n int
	err := env.Pool.QueryRow(ctx, `SELECT count(*) FROM event_outbox WHERE "eventType" = $1`, string(eventType)).Scan(&n)
	if err != nil {
		env.t.Fatalf("CountOutbox: %v", err)
	}
	return n
}
