package provider

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const nbaScores = `[
  {"id":"g1","sport_key":"basketball_nba","completed":true,"commence_time":"2026-10-14T23:10:00Z",
   "home_team":"Los Angeles Lakers","away_team":"Boston Celtics",
   "scores":[{"name":"Boston Celtics","score":"100"},{"name":"Los Angeles Lakers","score":"110"}]},
  {"id":"g2","sport_key":"basketball_nba","completed":false,
   "home_team":"Miami Heat","away_team":"New York Knicks","scores":null},
  {"id":"g3","sport_key":"basketball_nba","completed":true,
   "home_team":"Chicago Bulls","away_team":"Detroit Pistons",
   "scores":[{"name":"Chicago Bulls","score":"99"},{"name":"Detroit Pistons","score":"101"}]}
]`

const nflScores = `[
  {"id":"f1","sport_key":"americanfootball_nfl","completed":true,
   "home_team":"Kansas City Chiefs","away_team":"Buffalo Bills",
   "scores":[{"name":"Kansas City Chiefs","score":"20"},{"name":"Buffalo Bills","score":"20"}]}
]`

func newScoresServer(t *testing.T, handlers map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.URL.Query().Get("apiKey"))
		assert.Equal(t, "3", r.URL.Query().Get("daysFrom"))
		// /v4/sports/{league}/scores/
		parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
		if !assert.Len(t, parts, 4) {
			http.NotFound(w, r)
			return
		}
		h, ok := handlers[parts[2]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func jsonBody(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("x-requests-remaining", "480")
		fmt.Fprint(w, body)
	}
}

func newTestClient(baseURL string, leagues ...string) *ScoresClient {
	return NewScoresClient(ScoresConfig{
		BaseURL:      baseURL,
		APIKey:       "test-key",
		Leagues:      leagues,
		LookbackDays: 3,
		Concurrency:  4,
	}, testLogger())
}

func TestFetchLeague_OnlyCompletedGames(t *testing.T) {
	srv := newScoresServer(t, map[string]http.HandlerFunc{"basketball_nba": jsonBody(nbaScores)})
	client := newTestClient(srv.URL, "basketball_nba")

	games, err := client.FetchLeague(context.Background(), "basketball_nba")
	require.NoError(t, err)
	require.Len(t, games, 2)

	assert.Equal(t, "g1", games[0].ID)
	assert.Equal(t, "basketball_nba", games[0].League)
	assert.True(t, games[0].Completed)
	assert.False(t, games[0].CommenceTime.IsZero())
	assert.Equal(t, "g3", games[1].ID)
}

func TestFetchLeague_ScoresAssignedByName(t *testing.T) {
	srv := newScoresServer(t, map[string]http.HandlerFunc{"basketball_nba": jsonBody(nbaScores)})
	client := newTestClient(srv.URL, "basketball_nba")

	games, err := client.FetchLeague(context.Background(), "basketball_nba")
	require.NoError(t, err)

	// g1 lists the away team first; names win over position.
	assert.True(t, games[0].HomeScore.Equal(decimal.NewFromInt(110)))
	assert.True(t, games[0].AwayScore.Equal(decimal.NewFromInt(100)))
}

func TestFetchLeague_QuotaExceeded(t *testing.T) {
	srv := newScoresServer(t, map[string]http.HandlerFunc{
		"basketball_nba": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		},
	})
	client := newTestClient(srv.URL, "basketball_nba")

	_, err := client.FetchLeague(context.Background(), "basketball_nba")
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestFetchLeague_BadJSON(t *testing.T) {
	srv := newScoresServer(t, map[string]http.HandlerFunc{"basketball_nba": jsonBody(`{not json`)})
	client := newTestClient(srv.URL, "basketball_nba")

	_, err := client.FetchLeague(context.Background(), "basketball_nba")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode scores")
}

func TestFetchLeague_DropsInvalidGames(t *testing.T) {
	body := `[
	  {"id":"x1","completed":true,"home_team":"","away_team":"Bills",
	   "scores":[{"name":"","score":"1"},{"name":"Bills","score":"2"}]},
	  {"id":"x2","completed":true,"home_team":"Jets","away_team":"Bills",
	   "scores":[{"name":"Jets","score":"n/a"},{"name":"Bills","score":"2"}]},
	  {"id":"x3","completed":true,"home_team":"Jets","away_team":"Bills","scores":[]}
	]`
	srv := newScoresServer(t, map[string]http.HandlerFunc{"americanfootball_nfl": jsonBody(body)})
	client := newTestClient(srv.URL, "americanfootball_nfl")

	games, err := client.FetchLeague(context.Background(), "americanfootball_nfl")
	require.NoError(t, err)
	assert.Empty(t, games)
}

func TestFetchCompleted_PartialLeagueFailure(t *testing.T) {
	srv := newScoresServer(t, map[string]http.HandlerFunc{
		"basketball_nba": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "upstream down", http.StatusBadGateway)
		},
		"americanfootball_nfl": jsonBody(nflScores),
	})
	client := newTestClient(srv.URL, "basketball_nba", "americanfootball_nfl", "icehockey_nhl")

	games := client.FetchCompleted(context.Background())
	require.Len(t, games, 1)
	assert.Equal(t, "f1", games[0].ID)
	assert.Equal(t, "americanfootball_nfl", games[0].League)
}

func TestFetchCompleted_DeterministicLeagueOrder(t *testing.T) {
	var calls atomic.Int32
	counting := func(body string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			jsonBody(body)(w, r)
		}
	}
	srv := newScoresServer(t, map[string]http.HandlerFunc{
		"basketball_nba":       counting(nbaScores),
		"americanfootball_nfl": counting(nflScores),
	})
	client := newTestClient(srv.URL, "americanfootball_nfl", "basketball_nba")

	for i := 0; i < 5; i++ {
		games := client.FetchCompleted(context.Background())
		require.Len(t, games, 3)
		assert.Equal(t, []string{"f1", "g1", "g3"}, []string{games[0].ID, games[1].ID, games[2].ID})
	}
	assert.Equal(t, int32(10), calls.Load())
}

func TestAssignScores(t *testing.T) {
	tests := []struct {
		name           string
		entries        []oddsScoreEntry
		wantHome       int64
		wantAway       int64
		wantPositional bool
		wantErr        bool
	}{
		{
			name:     "names in home-away order",
			entries:  []oddsScoreEntry{{"Lakers", "110"}, {"Celtics", "100"}},
			wantHome: 110, wantAway: 100,
		},
		{
			name:     "names reversed",
			entries:  []oddsScoreEntry{{"Celtics", "100"}, {"Lakers", "110"}},
			wantHome: 110, wantAway: 100,
		},
		{
			name:     "case-insensitive names",
			entries:  []oddsScoreEntry{{"CELTICS", "100"}, {"lakers", "110"}},
			wantHome: 110, wantAway: 100,
		},
		{
			name:           "unknown names fall back to position",
			entries:        []oddsScoreEntry{{"LAL", "110"}, {"BOS", "100"}},
			wantHome:       110,
			wantAway:       100,
			wantPositional: true,
		},
		{
			name:    "single entry",
			entries: []oddsScoreEntry{{"Lakers", "110"}},
			wantErr: true,
		},
		{
			name:    "non-numeric score",
			entries: []oddsScoreEntry{{"Lakers", "W"}, {"Celtics", "100"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			home, away, positional, err := assignScores("Lakers", "Celtics", tt.entries)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, home.Equal(decimal.NewFromInt(tt.wantHome)), "home = %s", home)
			assert.True(t, away.Equal(decimal.NewFromInt(tt.wantAway)), "away = %s", away)
			assert.Equal(t, tt.wantPositional, positional)
		})
	}
}

func TestNewScoresClient_Defaults(t *testing.T) {
	c := NewScoresClient(ScoresConfig{APIKey: "k", Leagues: []string{"basketball_nba"}}, testLogger())
	assert.Equal(t, "https://api.the-odds-api.com", c.baseURL)
	assert.Equal(t, 3, c.daysFrom)
	assert.Equal(t, 1, c.concurrency)
	assert.Equal(t, []string{"basketball_nba"}, c.Leagues())
}
