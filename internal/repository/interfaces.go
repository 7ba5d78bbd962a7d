package repository

import (
	"context"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxBeginner starts a transaction. Satisfied by *pgxpool.Pool.
type TxBeginner interface {
	DBTX
	Begin(ctx context.Context) (pgx.Tx, error)
}

// BetRepository provides access to bets.
type BetRepository interface {
	// ListPending returns every bet still in status pending, oldest first.
	ListPending(ctx context.Context, db DBTX) ([]domain.Bet, error)

	// Resolve moves a pending bet to a terminal status and stamps resolved_at.
	// Returns false when the bet was no longer pending (already settled elsewhere).
	Resolve(ctx context.Context, db DBTX, id uuid.UUID, outcome domain.Outcome, at time.Time) (bool, error)

	// FindByID returns a bet by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Bet, error)
}

// OutboxRepository provides access to the event_outbox table.
type OutboxRepository interface {
	// Insert writes an outbox event (within the same transaction as the bet update).
	Insert(ctx context.Context, db DBTX, draft domain.OutboxDraft) error

	// FetchUnpublished returns unpublished events for the relay, oldest first.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]domain.OutboxRow, error)

	// MarkPublished stamps publishedAt on the given rows.
	MarkPublished(ctx context.Context, db DBTX, ids []int64) error
}
