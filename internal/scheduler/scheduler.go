// Package scheduler runs settlement passes on a cron schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/robfig/cron/v3"
)

// PassRunner runs one settlement pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*domain.PassResult, error)
}

// Scheduler fires settlement passes on a cron expression. Ticks that arrive
// while a pass is still running are skipped.
type Scheduler struct {
	cron        *cron.Cron
	runner      PassRunner
	logger      *slog.Logger
	mu          sync.RWMutex
	isRunning   bool
	jobIDs      []cron.EntryID
	passTimeout time.Duration
}

// New creates a scheduler. passTimeout bounds each scheduled pass; zero means none.
func New(runner PassRunner, passTimeout time.Duration, logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(time.UTC),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner:      runner,
		logger:      logger,
		passTimeout: passTimeout,
	}
}

// ScheduleSettlement registers the settlement pass under a cron expression
// such as "@every 15m" or "*/10 * * * *".
func (s *Scheduler) ScheduleSettlement(expr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("cannot schedule job while scheduler is running")
	}

	entryID, err := s.cron.AddFunc(expr, s.runPass)
	if err != nil {
		return fmt.Errorf("add settlement job %q: %w", expr, err)
	}

	s.jobIDs = append(s.jobIDs, entryID)
	s.logger.Info("settlement pass scheduled", "schedule", expr)
	return nil
}

func (s *Scheduler) runPass() {
	ctx := context.Background()
	if s.passTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.passTimeout)
		defer cancel()
	}

	result, err := s.runner.RunPass(ctx)
	switch {
	case errors.Is(err, domain.ErrPassInProgress):
		s.logger.Info("scheduled pass skipped, another pass is running")
	case err != nil:
		s.logger.Error("scheduled settlement pass failed", "error", err)
	default:
		s.logger.Info("scheduled settlement pass done", "settled", result.Settled, "total_pending", result.TotalPending)
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}
	if len(s.jobIDs) == 0 {
		return fmt.Errorf("no jobs scheduled")
	}

	s.cron.Start()
	s.isRunning = true
	s.logger.Info("scheduler started", "jobs", len(s.jobIDs))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}
	s.isRunning = false

	select {
	case <-s.cron.Stop().Done():
		s.logger.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler stop: %w", ctx.Err())
	}
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns the time of the next scheduled pass, or zero when stopped.
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return time.Time{}
	}

	var next time.Time
	for _, id := range s.jobIDs {
		entry := s.cron.Entry(id)
		if entry.Valid() && (next.IsZero() || entry.Next.Before(next)) {
			next = entry.Next
		}
	}
	return next
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
