package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/attaboy/settlement/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// ── Odds API Types ──

type oddsScoreEvent struct {
	ID           string           `json:"id"`
	SportKey     string           `json:"sport_key"`
	SportTitle   string           `json:"sport_title"`
	CommenceTime string           `json:"commence_time"`
	Completed    bool             `json:"completed"`
	HomeTeam     string           `json:"home_team"`
	AwayTeam     string           `json:"away_team"`
	Scores       []oddsScoreEntry `json:"scores"`
	LastUpdate   *string          `json:"last_update"`
}

type oddsScoreEntry struct {
	Name  string `json:"name"`
	Score string `json:"score"`
}

// ErrQuotaExceeded is returned when the provider answers 429.
var ErrQuotaExceeded = errors.New("odds api quota exceeded")

// ScoresConfig configures a ScoresClient.
type ScoresConfig struct {
	BaseURL      string
	APIKey       string
	Leagues      []string
	LookbackDays int
	Concurrency  int
	RatePerSec   float64
	Timeout      time.Duration
}

// ── ScoresClient ──

// ScoresClient fetches completed game results from The Odds API.
type ScoresClient struct {
	baseURL     string
	apiKey      string
	leagues     []string
	daysFrom    int
	concurrency int
	limiter     *rate.Limiter
	client      *http.Client
	validate    *validator.Validate
	logger      *slog.Logger
}

// NewScoresClient creates a scores client for the configured leagues.
func NewScoresClient(cfg ScoresConfig, logger *slog.Logger) *ScoresClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.the-odds-api.com"
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 3
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	limit := rate.Inf
	if cfg.RatePerSec > 0 {
		limit = rate.Limit(cfg.RatePerSec)
	}
	return &ScoresClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		leagues:     cfg.Leagues,
		daysFrom:    cfg.LookbackDays,
		concurrency: cfg.Concurrency,
		limiter:     rate.NewLimiter(limit, 1),
		client:      &http.Client{Timeout: cfg.Timeout},
		validate:    validator.New(),
		logger:      logger,
	}
}

// Leagues returns the configured league keys in fetch order.
func (c *ScoresClient) Leagues() []string {
	return append([]string(nil), c.leagues...)
}

// FetchCompleted returns the completed games of every configured league.
// A failing league is logged and contributes nothing; it never fails the call.
// The result is ordered by league (as configured), then by provider order.
func (c *ScoresClient) FetchCompleted(ctx context.Context) []domain.GameResult {
	perLeague := make([][]domain.GameResult, len(c.leagues))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, league := range c.leagues {
		g.Go(func() error {
			games, err := c.FetchLeague(gctx, league)
			if err != nil {
				metrics.LeagueFetchFailuresTotal.WithLabelValues(league).Inc()
				c.logger.Error("scores fetch failed", "league", league, "error", err)
				return nil
			}
			metrics.GamesFetched.WithLabelValues(league).Set(float64(len(games)))
			perLeague[i] = games
			return nil
		})
	}
	_ = g.Wait()

	var all []domain.GameResult
	for _, games := range perLeague {
		all = append(all, games...)
	}
	c.logger.Info("scores fetch complete", "leagues", len(c.leagues), "completed_games", len(all))
	return all
}

// FetchLeague returns the completed games for one league.
func (c *ScoresClient) FetchLeague(ctx context.Context, league string) ([]domain.GameResult, error) {
	path := fmt.Sprintf("/v4/sports/%s/scores/?daysFrom=%d&dateFormat=iso", url.PathEscape(league), c.daysFrom)
	body, err := c.oddsGet(ctx, path)
	if err != nil {
		return nil, err
	}

	var events []oddsScoreEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}

	games := make([]domain.GameResult, 0, len(events))
	for _, ev := range events {
		if !ev.Completed {
			continue
		}
		game, err := c.toGameResult(league, ev)
		if err != nil {
			c.logger.Warn("dropping completed game", "league", league, "game_id", ev.ID, "error", err)
			continue
		}
		games = append(games, game)
	}
	return games, nil
}

// ── HTTP helper ──

func (c *ScoresClient) oddsGet(ctx context.Context, path string) ([]byte, error) {
	u := c.baseURL + path
	if strings.Contains(path, "?") {
		u += "&apiKey=" + url.QueryEscape(c.apiKey)
	} else {
		u += "?apiKey=" + url.QueryEscape(c.apiKey)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	c.logger.Debug("odds api request", "path", path, "status", resp.StatusCode,
		"remaining", resp.Header.Get("x-requests-remaining"))

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrQuotaExceeded
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("odds api returned %d: %s", resp.StatusCode, string(body[:min(200, len(body))]))
	}

	return body, nil
}

// ── Conversion ──

func (c *ScoresClient) toGameResult(league string, ev oddsScoreEvent) (domain.GameResult, error) {
	game := domain.GameResult{
		ID:        ev.ID,
		League:    league,
		HomeTeam:  strings.TrimSpace(ev.HomeTeam),
		AwayTeam:  strings.TrimSpace(ev.AwayTeam),
		Completed: true,
	}
	if err := c.validate.Struct(game); err != nil {
		return domain.GameResult{}, fmt.Errorf("invalid game: %w", err)
	}
	if ev.CommenceTime != "" {
		if t, err := time.Parse(time.RFC3339, ev.CommenceTime); err == nil {
			game.CommenceTime = t
		}
	}

	home, away, positional, err := assignScores(game.HomeTeam, game.AwayTeam, ev.Scores)
	if err != nil {
		return domain.GameResult{}, err
	}
	if positional {
		c.logger.Warn("score names do not match teams, using positional scores",
			"league", league, "game_id", ev.ID, "home_team", game.HomeTeam, "away_team", game.AwayTeam)
	}
	game.HomeScore = home
	game.AwayScore = away
	return game, nil
}

// assignScores maps score entries to home/away by team name. When the names
// cannot be paired it falls back to [0]=home, [1]=away and reports positional=true.
func assignScores(homeTeam, awayTeam string, entries []oddsScoreEntry) (home, away decimal.Decimal, positional bool, err error) {
	if len(entries) < 2 {
		return home, away, false, fmt.Errorf("expected 2 score entries, got %d", len(entries))
	}

	homeIdx, awayIdx := -1, -1
	for i, e := range entries {
		name := strings.TrimSpace(e.Name)
		switch {
		case homeIdx < 0 && strings.EqualFold(name, homeTeam):
			homeIdx = i
		case awayIdx < 0 && strings.EqualFold(name, awayTeam):
			awayIdx = i
		}
	}
	if homeIdx < 0 || awayIdx < 0 {
		homeIdx, awayIdx, positional = 0, 1, true
	}

	home, err = decimal.NewFromString(strings.TrimSpace(entries[homeIdx].Score))
	if err != nil {
		return home, away, positional, fmt.Errorf("parse home score %q: %w", entries[homeIdx].Score, err)
	}
	away, err = decimal.NewFromString(strings.TrimSpace(entries[awayIdx].Score))
	if err != nil {
		return home, away, positional, fmt.Errorf("parse away score %q: %w", entries[awayIdx].Score, err)
	}
	return home, away, positional, nil
}
