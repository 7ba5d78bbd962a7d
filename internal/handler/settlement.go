package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/attaboy/settlement/internal/auth"
	"github.com/attaboy/settlement/internal/domain"
	"github.com/attaboy/settlement/internal/guard"
)

// PassRunner runs one settlement pass.
type PassRunner interface {
	RunPass(ctx context.Context) (*domain.PassResult, error)
}

// SettleResponse is the body of a successful trigger.
type SettleResponse struct {
	Message      string `json:"message"`
	Settled      int    `json:"settled"`
	TotalPending int    `json:"total_pending"`
}

// SettlementHandler exposes the settlement trigger.
type SettlementHandler struct {
	runner    PassRunner
	configErr error
	limiter   *guard.RateLimiter
	logger    *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler. When configErr is non-nil
// every trigger fails with 500 before any work starts. limiter may be nil.
func NewSettlementHandler(runner PassRunner, configErr error, limiter *guard.RateLimiter, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{runner: runner, configErr: configErr, limiter: limiter, logger: logger}
}

// Trigger handles /settle for any method. The request body is ignored.
// Cancelling the request does not cancel the pass.
func (h *SettlementHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.configErr != nil || h.runner == nil {
		h.logger.Error("settlement trigger rejected", "error", h.configErr, "request_id", GetRequestID(r.Context()))
		RespondError(w, domain.ErrConfig(h.configErr))
		return
	}

	if h.limiter != nil {
		key := auth.SubjectFromContext(r.Context())
		if key == "" {
			key = ClientIP(r)
		}
		if res := h.limiter.Check(r.Context(), key); !res.Allowed {
			RespondError(w, domain.ErrRateLimited(res.Reason))
			return
		}
	}

	// A pass runs to completion even if the caller goes away.
	result, err := h.runner.RunPass(context.WithoutCancel(r.Context()))
	if err != nil {
		h.logger.Error("settlement pass failed", "error", err, "request_id", GetRequestID(r.Context()))
		RespondError(w, err)
		return
	}

	RespondJSON(w, http.StatusOK, SettleResponse{
		Message:      fmt.Sprintf("Settled %d of %d pending bets", result.Settled, result.TotalPending),
		Settled:      result.Settled,
		TotalPending: result.TotalPending,
	})
}
