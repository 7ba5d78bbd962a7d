package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type betRepo struct{}

// NewBetRepository returns a pgx-backed BetRepository.
func NewBetRepository() BetRepository {
	return &betRepo{}
}

const betColumns = `id, user_id, event_name, market, selection, odds, status, resolved_at, created_at`

func scanBet(row pgx.Row) (*domain.Bet, error) {
	var b domain.Bet
	err := row.Scan(&b.ID, &b.UserID, &b.EventName, &b.Market, &b.Selection,
		&b.Odds, &b.Status, &b.ResolvedAt, &b.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *betRepo) ListPending(ctx context.Context, db DBTX) ([]domain.Bet, error) {
	rows, err := db.Query(ctx, `
		SELECT `+betColumns+`
		FROM bets
		WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query pending bets: %w", err)
	}
	defer rows.Close()

	var bets []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan bet: %w", err)
		}
		bets = append(bets, *b)
	}
	return bets, rows.Err()
}

// Resolve only touches rows still pending, so two overlapping passes cannot
// both move the same bet.
func (r *betRepo) Resolve(ctx context.Context, db DBTX, id uuid.UUID, outcome domain.Outcome, at time.Time) (bool, error) {
	tag, err := db.Exec(ctx, `
		UPDATE bets SET status = $2, resolved_at = $3
		WHERE id = $1 AND status = 'pending'`,
		id, string(outcome.Status()), at)
	if err != nil {
		return false, fmt.Errorf("resolve bet %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *betRepo) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Bet, error) {
	b, err := scanBet(db.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find bet %s: %w", id, err)
	}
	return b, nil
}
