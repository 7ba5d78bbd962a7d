package domain

import (
	"time"

	"github.com/google/uuid"
)

// BetStatus tracks the lifecycle of a logged bet.
// A bet leaves BetStatusPending exactly once and is never revisited.
type BetStatus string

const (
	BetStatusPending BetStatus = "pending"
	BetStatusWin     BetStatus = "win"
	BetStatusLoss    BetStatus = "loss"
	BetStatusPush    BetStatus = "push"
)

// IsTerminal reports whether the status is a settled outcome.
func (s BetStatus) IsTerminal() bool {
	switch s {
	case BetStatusWin, BetStatusLoss, BetStatusPush:
		return true
	}
	return false
}

// Market is the bet type. Only Spread, Moneyline and Total can be settled
// automatically; every other value (props, parlays, futures) stays pending.
type Market string

const (
	MarketSpread    Market = "Spread"
	MarketMoneyline Market = "Moneyline"
	MarketTotal     Market = "Total"
)

// Settleable reports whether the market has an automatic resolver.
func (m Market) Settleable() bool {
	switch m {
	case MarketSpread, MarketMoneyline, MarketTotal:
		return true
	}
	return false
}

// Bet represents a bets row.
type Bet struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	EventName  string     `json:"event_name"`
	Market     Market     `json:"market"`
	Selection  string     `json:"selection"`
	Odds       int        `json:"odds"` // American format, display only
	Status     BetStatus  `json:"status"`
	ResolvedAt *time.Time `json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Outcome is a terminal settlement result.
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomePush Outcome = "push"
)

// Status maps an outcome to the bet status it produces.
func (o Outcome) Status() BetStatus {
	return BetStatus(o)
}

// Verdict is what a resolver decided for one bet. Settled=false leaves the bet pending.
type Verdict struct {
	Outcome Outcome `json:"outcome,omitempty"`
	Settled bool    `json:"settled"`
	Reason  string  `json:"reason,omitempty"`
}

// Settle returns a settled verdict with the given outcome.
func Settle(o Outcome) Verdict {
	return Verdict{Outcome: o, Settled: true}
}

// Unsettled returns a verdict that keeps the bet pending.
func Unsettled(reason string) Verdict {
	return Verdict{Reason: reason}
}

// PassResult summarises one settlement pass.
type PassResult struct {
	Settled      int           `json:"settled"`
	TotalPending int           `json:"total_pending"`
	Won          int           `json:"won"`
	Lost         int           `json:"lost"`
	Pushed       int           `json:"pushed"`
	Unmatched    int           `json:"unmatched"`
	Unsupported  int           `json:"unsupported"`
	Unparseable  int           `json:"unparseable"`
	WriteFailed  int           `json:"write_failed"`
	GamesFetched int           `json:"games_fetched"`
	Duration     time.Duration `json:"-"`
}
