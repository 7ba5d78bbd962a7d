package app

import (
	"log/slog"

	"github.com/attaboy/settlement/internal/auth"
	"github.com/attaboy/settlement/internal/guard"
	"github.com/attaboy/settlement/internal/handler"
	"github.com/attaboy/settlement/internal/infra"
	"github.com/attaboy/settlement/internal/metrics"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	// Health is nil when no database is configured.
	Health infra.Pinger
	Runner handler.PassRunner
	// ConfigErr, when set, makes every trigger answer 500.
	ConfigErr error
	// JWTMgr enables trigger authentication when non-nil.
	JWTMgr         *auth.JWTManager
	TriggerLimiter *guard.RateLimiter
	Logger         *slog.Logger
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	settleHandler := handler.NewSettlementHandler(deps.Runner, deps.ConfigErr, deps.TriggerLimiter, logger)

	r := chi.NewRouter()

	// Global middleware
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(handler.JSONContentType)

		r.Get("/health", handler.HealthHandler(deps.Health))

		r.Group(func(r chi.Router) {
			if deps.JWTMgr != nil {
				r.Use(auth.AuthenticateTrigger(deps.JWTMgr))
			}
			// Any method starts a pass.
			r.HandleFunc("/settle", settleHandler.Trigger)
		})
	})

	return r
}
