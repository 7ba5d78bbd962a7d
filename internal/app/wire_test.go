package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/attaboy/settlement/internal/auth"
	"github.com/attaboy/settlement/internal/domain"
	"github.com/attaboy/settlement/internal/infra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct{ calls int }

func (s *stubRunner) RunPass(context.Context) (*domain.PassResult, error) {
	s.calls++
	return &domain.PassResult{Settled: 1, TotalPending: 2}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRouter_SettleAcceptsAnyMethod(t *testing.T) {
	runner := &stubRunner{}
	srv := httptest.NewServer(NewRouter(RouterDeps{Health: okPinger{}, Runner: runner, Logger: testLogger()}))
	defer srv.Close()

	for _, method := range []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete} {
		req, err := http.NewRequest(method, srv.URL+"/settle", nil)
		require.NoError(t, err)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, method)
		assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
		assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
		assert.EqualValues(t, 1, body["settled"])
		assert.EqualValues(t, 2, body["total_pending"])
	}
	assert.Equal(t, 4, runner.calls)
}

func TestRouter_ConfigErrorStillServesHealthAndMetrics(t *testing.T) {
	srv := httptest.NewServer(NewRouter(RouterDeps{
		ConfigErr: errors.New("missing required configuration: ODDS_API_KEY"),
		Logger:    testLogger(),
	}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/settle", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_TriggerAuth(t *testing.T) {
	mgr := auth.NewJWTManager("s3cret", time.Hour, time.Hour)
	runner := &stubRunner{}
	srv := httptest.NewServer(NewRouter(RouterDeps{Runner: runner, JWTMgr: mgr, Logger: testLogger()}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/settle", "", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, 0, runner.calls)

	token, err := mgr.GenerateToken(auth.RealmService, "cron", "")
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/settle", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, runner.calls)

	// Health stays open.
	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestNew_MissingConfigKeepsServing(t *testing.T) {
	cfg := &infra.Config{LookbackDays: 3, TriggerRateLimit: 30}
	a, err := New(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	defer a.Close()

	assert.Error(t, a.ConfigErr)
	assert.Nil(t, a.Engine)
	assert.Nil(t, a.Pool)

	srv := httptest.NewServer(a.Router())
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/settle")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "settlement is not configured", body["error"])
}
