package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/attaboy/settlement/internal/domain"
)

// SettlementStore is the bet store as seen by a settlement pass: the pending
// loader plus a writer that pairs every status change with its outbox event.
type SettlementStore struct {
	db     TxBeginner
	bets   BetRepository
	outbox OutboxRepository
}

// NewSettlementStore creates a SettlementStore over a pool.
func NewSettlementStore(db TxBeginner, bets BetRepository, outbox OutboxRepository) *SettlementStore {
	return &SettlementStore{db: db, bets: bets, outbox: outbox}
}

// ListPending returns all pending bets.
func (s *SettlementStore) ListPending(ctx context.Context) ([]domain.Bet, error) {
	return s.bets.ListPending(ctx, s.db)
}

// ApplyOutcome writes one bet's outcome and its bets.bet.settled event in a
// single transaction. Returns false without error if the bet had already left
// pending, in which case nothing is written.
func (s *SettlementStore) ApplyOutcome(ctx context.Context, bet domain.Bet, outcome domain.Outcome, gameID string, at time.Time) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	changed, err := s.bets.Resolve(ctx, tx, bet.ID, outcome, at)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, nil
	}

	if err := s.outbox.Insert(ctx, tx, domain.NewBetSettledEvent(bet, outcome, gameID, at)); err != nil {
		return false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit settle tx: %w", err)
	}
	return true, nil
}

// RecordPass stores the pass summary event.
func (s *SettlementStore) RecordPass(ctx context.Context, draft domain.OutboxDraft) error {
	return s.outbox.Insert(ctx, s.db, draft)
}
