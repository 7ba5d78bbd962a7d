package settlement

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/attaboy/settlement/internal/guard"
	"github.com/attaboy/settlement/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Store is the bet store used by a pass.
type Store interface {
	ListPending(ctx context.Context) ([]domain.Bet, error)
	// ApplyOutcome reports false when the bet was no longer pending.
	ApplyOutcome(ctx context.Context, bet domain.Bet, outcome domain.Outcome, gameID string, at time.Time) (bool, error)
	RecordPass(ctx context.Context, draft domain.OutboxDraft) error
}

// ResultSource supplies completed games. It never fails as a whole; sources
// that lose part of their data return what they have.
type ResultSource interface {
	FetchCompleted(ctx context.Context) []domain.GameResult
}

// EngineConfig tunes an Engine.
type EngineConfig struct {
	Options
	WriteConcurrency int
}

// Engine runs settlement passes.
type Engine struct {
	store            Store
	source           ResultSource
	lease            guard.Lease
	opts             Options
	writeConcurrency int
	now              func() time.Time
	logger           *slog.Logger
}

// NewEngine creates an Engine. A nil lease falls back to an in-process lease.
func NewEngine(store Store, source ResultSource, lease guard.Lease, cfg EngineConfig, logger *slog.Logger) *Engine {
	if lease == nil {
		lease = guard.NewLocalLease()
	}
	if cfg.WriteConcurrency <= 0 {
		cfg.WriteConcurrency = 1
	}
	return &Engine{
		store:            store,
		source:           source,
		lease:            lease,
		opts:             cfg.Options,
		writeConcurrency: cfg.WriteConcurrency,
		now:              func() time.Time { return time.Now().UTC() },
		logger:           logger,
	}
}

// plan is the decision for one pending bet.
type plan struct {
	bet     domain.Bet
	game    domain.GameResult
	outcome domain.Outcome
}

// RunPass settles every pending bet whose game has completed. Only a failure
// to load pending bets (or to take the lease) fails the pass; everything
// after that is handled per bet.
func (e *Engine) RunPass(ctx context.Context) (*domain.PassResult, error) {
	start := time.Now()

	release, ok, err := e.lease.TryAcquire(ctx)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		return nil, domain.ErrInternal("acquire settlement lease", err)
	}
	if !ok {
		metrics.PassesTotal.WithLabelValues("skipped").Inc()
		e.logger.Info("settlement pass skipped, lease held elsewhere")
		return nil, domain.ErrPassInProgress
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			e.logger.Error("release settlement lease", "error", err)
		}
	}()

	pending, err := e.store.ListPending(ctx)
	if err != nil {
		metrics.PassesTotal.WithLabelValues("failed").Inc()
		e.logger.Error("load pending bets", "error", err)
		return nil, domain.ErrInternal("load pending bets", err)
	}
	metrics.PendingBets.Set(float64(len(pending)))

	result := &domain.PassResult{TotalPending: len(pending)}
	if len(pending) == 0 {
		result.Duration = time.Since(start)
		e.finish(ctx, result)
		return result, nil
	}

	games := e.source.FetchCompleted(ctx)
	result.GamesFetched = len(games)

	plans := e.plan(pending, games, result)
	e.apply(ctx, plans, result)

	result.Duration = time.Since(start)
	e.finish(ctx, result)
	return result, nil
}

// plan matches and resolves each bet. Bets that cannot be settled are counted
// and dropped; they stay pending.
func (e *Engine) plan(pending []domain.Bet, games []domain.GameResult, result *domain.PassResult) []plan {
	plans := make([]plan, 0, len(pending))
	for _, bet := range pending {
		if !bet.Market.Settleable() {
			result.Unsupported++
			metrics.BetsSkippedTotal.WithLabelValues(ReasonUnsupportedMarket).Inc()
			continue
		}

		game, found := FindGame(bet.EventName, games)
		if !found {
			result.Unmatched++
			metrics.BetsSkippedTotal.WithLabelValues("unmatched").Inc()
			e.logUnmatched(bet, games)
			continue
		}

		verdict := Resolve(bet, game, e.opts)
		if !verdict.Settled {
			switch verdict.Reason {
			case ReasonUnparseableLine:
				result.Unparseable++
			case ReasonUnsupportedMarket:
				result.Unsupported++
			}
			metrics.BetsSkippedTotal.WithLabelValues(verdict.Reason).Inc()
			e.logger.Warn("bet left pending", "bet_id", bet.ID, "market", bet.Market,
				"selection", bet.Selection, "reason", verdict.Reason)
			continue
		}

		if bet.Market != domain.MarketTotal {
			team := strings.TrimSpace(bet.Selection)
			if bet.Market == domain.MarketSpread {
				_, team, _ = ParseLine(bet.Selection)
			}
			if !IsKnownSide(team, game) {
				e.logger.Debug("selection names neither team, settled as away",
					"bet_id", bet.ID, "selection", bet.Selection, "game_id", game.ID)
			}
		}

		plans = append(plans, plan{bet: bet, game: game, outcome: verdict.Outcome})
	}
	return plans
}

// apply writes every planned outcome. Writes are independent: a failed write
// is logged and its bet stays pending for the next pass.
func (e *Engine) apply(ctx context.Context, plans []plan, result *domain.PassResult) {
	var settled, won, lost, pushed, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.writeConcurrency)
	for _, p := range plans {
		g.Go(func() error {
			changed, err := e.store.ApplyOutcome(gctx, p.bet, p.outcome, p.game.ID, e.now())
			if err != nil {
				failed.Add(1)
				metrics.BetWriteFailuresTotal.Inc()
				e.logger.Error("write bet outcome", "bet_id", p.bet.ID, "outcome", p.outcome, "error", err)
				return nil
			}
			if !changed {
				e.logger.Info("bet already settled", "bet_id", p.bet.ID)
				return nil
			}

			settled.Add(1)
			metrics.BetsSettledTotal.WithLabelValues(string(p.outcome)).Inc()
			switch p.outcome {
			case domain.OutcomeWin:
				won.Add(1)
			case domain.OutcomeLoss:
				lost.Add(1)
			case domain.OutcomePush:
				pushed.Add(1)
			}
			e.logger.Debug("bet settled", "bet_id", p.bet.ID, "game_id", p.game.ID, "outcome", p.outcome)
			return nil
		})
	}
	_ = g.Wait()

	result.Settled = int(settled.Load())
	result.Won = int(won.Load())
	result.Lost = int(lost.Load())
	result.Pushed = int(pushed.Load())
	result.WriteFailed = int(failed.Load())
}

func (e *Engine) logUnmatched(bet domain.Bet, games []domain.GameResult) {
	if !e.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	nearest, dist, ok := Nearest(bet.EventName, games)
	if !ok {
		e.logger.Debug("no completed game for bet", "bet_id", bet.ID, "event_name", bet.EventName)
		return
	}
	e.logger.Debug("no completed game for bet", "bet_id", bet.ID, "event_name", bet.EventName,
		"nearest_home", nearest.HomeTeam, "nearest_away", nearest.AwayTeam, "distance", dist)
}

func (e *Engine) finish(ctx context.Context, result *domain.PassResult) {
	metrics.PassesTotal.WithLabelValues("ok").Inc()
	metrics.PassDuration.Observe(result.Duration.Seconds())

	if result.Settled > 0 {
		draft := domain.NewPassCompletedEvent(uuid.New(), *result, e.now())
		if err := e.store.RecordPass(ctx, draft); err != nil {
			e.logger.Error("record settlement pass", "error", err)
		}
	}

	e.logger.Info("settlement pass complete",
		"settled", result.Settled,
		"total_pending", result.TotalPending,
		"won", result.Won,
		"lost", result.Lost,
		"pushed", result.Pushed,
		"unmatched", result.Unmatched,
		"unsupported", result.Unsupported,
		"unparseable", result.Unparseable,
		"write_failed", result.WriteFailed,
		"games_fetched", result.GamesFetched,
		"duration_ms", result.Duration.Milliseconds(),
	)
}
