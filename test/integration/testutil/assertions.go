//go:build integration

package testutil

import (
	"testing"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/google/uuid"
)

// AssertStatus checks a bet's stored status and that resolved_at agrees with it.
func AssertStatus(t *testing.T, env *TestEnv, id uuid.UUID, want domain.BetStatus) {
	t.Helper()
	b := env.GetBet(id)
	if b.Status != want {
		t.Errorf("bet %s: expected status %s, got %s", id, want, b.Status)
	}
	if want == domain.BetStatusPending && b.ResolvedAt != nil {
		t.Errorf("bet %s: pending bet has resolved_at %s", id, b.ResolvedAt)
	}
	if want != domain.BetStatusPending && b.ResolvedAt == nil {
		t.Errorf("bet %s: settled bet has no resolved_at", id)
	}
}
