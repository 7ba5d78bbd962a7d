package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// GameResult is a completed game reported by the scores provider.
// It is fetched fresh on every pass and never persisted.
type GameResult struct {
	ID           string          `json:"id"`
	League       string          `json:"league" validate:"required"`
	HomeTeam     string          `json:"home_team" validate:"required"`
	AwayTeam     string          `json:"away_team" validate:"required"`
	Completed    bool            `json:"completed"`
	HomeScore    decimal.Decimal `json:"home_score"`
	AwayScore    decimal.Decimal `json:"away_score"`
	CommenceTime time.Time       `json:"commence_time"`
}

// Total returns the combined score of both sides.
func (g GameResult) Total() decimal.Decimal {
	return g.HomeScore.Add(g.AwayScore)
}
