// Package app wires configuration into a runnable settlement service.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/attaboy/settlement/internal/auth"
	"github.com/attaboy/settlement/internal/guard"
	"github.com/attaboy/settlement/internal/infra"
	"github.com/attaboy/settlement/internal/provider"
	"github.com/attaboy/settlement/internal/repository"
	"github.com/attaboy/settlement/internal/settlement"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const passLeaseKey = "settlement:pass:lease"

// App owns the long-lived resources of the settlement service.
type App struct {
	Config *infra.Config
	Pool   *pgxpool.Pool
	Redis  *redis.Client
	Engine *settlement.Engine
	// ConfigErr is set when required settings are missing. Engine is nil then.
	ConfigErr error

	logger *slog.Logger
}

// New connects to the configured stores and builds the settlement engine.
// Missing configuration is not an error here: it is kept in ConfigErr so a
// server can still start and report it per request.
func New(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, logger: logger}

	if err := cfg.Validate(); err != nil {
		logger.Error("settlement disabled", "error", err)
		a.ConfigErr = err
		return a, nil
	}

	pool, err := infra.NewPostgresPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Pool = pool

	if cfg.RunMigrationsOnUp {
		if err := infra.RunMigrations(cfg.DSN(), logger); err != nil {
			a.Close()
			return nil, err
		}
	}

	var lease guard.Lease
	if cfg.RedisURL != "" {
		rdb, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
		lease = guard.NewRedisLease(rdb, passLeaseKey, cfg.LeaseTTL)
		logger.Info("pass lease: redis", "ttl", cfg.LeaseTTL)
	} else {
		lease = guard.NewPGAdvisoryLease(pool, guard.PassLockKey)
		logger.Info("pass lease: postgres advisory lock")
	}

	scores := provider.NewScoresClient(provider.ScoresConfig{
		BaseURL:      cfg.OddsAPIBaseURL,
		APIKey:       cfg.OddsAPIKey,
		Leagues:      cfg.Leagues,
		LookbackDays: cfg.LookbackDays,
		Concurrency:  cfg.ScoresConcurrency,
		RatePerSec:   cfg.ScoresRatePerSec,
		Timeout:      cfg.ScoresHTTPTimeout,
	}, logger)

	store := repository.NewSettlementStore(pool, repository.NewBetRepository(), repository.NewOutboxRepository())

	a.Engine = settlement.NewEngine(store, scores, lease, settlement.EngineConfig{
		Options:          settlement.Options{StrictLines: cfg.StrictLines},
		WriteConcurrency: cfg.WriteConcurrency,
	}, logger)

	logger.Info("settlement engine ready",
		"leagues", cfg.Leagues,
		"lookback_days", cfg.LookbackDays,
		"strict_lines", cfg.StrictLines,
	)
	return a, nil
}

// Router returns the HTTP surface: /settle, /health and /metrics.
func (a *App) Router() chi.Router {
	deps := RouterDeps{
		ConfigErr:      a.ConfigErr,
		TriggerLimiter: guard.NewRateLimiter(a.Config.TriggerRateLimit, time.Minute),
		Logger:         a.logger,
	}
	if a.Pool != nil {
		deps.Health = a.Pool
	}
	if a.Engine != nil {
		deps.Runner = a.Engine
	}
	if a.Config.TriggerJWTSecret != "" {
		deps.JWTMgr = a.JWTManager()
	}
	return NewRouter(deps)
}

// JWTManager returns a token manager for the trigger secret.
func (a *App) JWTManager() *auth.JWTManager {
	return auth.NewJWTManager(a.Config.TriggerJWTSecret, 365*24*time.Hour, 12*time.Hour)
}

// Close releases every connection the App opened.
func (a *App) Close() {
	if a.Redis != nil {
		a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
