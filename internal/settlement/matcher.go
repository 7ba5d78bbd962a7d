package settlement

import (
	"strings"

	"github.com/agnivade/levenshtein"
	"github.com/attaboy/settlement/internal/domain"
)

// Normalize lowercases s, collapses whitespace runs to one space and trims.
// Punctuation and team aliases are left alone.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Candidates returns the four normalized event names a game can be logged as.
func Candidates(g domain.GameResult) [4]string {
	home, away := Normalize(g.HomeTeam), Normalize(g.AwayTeam)
	return [4]string{
		home + " vs " + away,
		away + " vs " + home,
		home + " " + away,
		away + " " + home,
	}
}

// Matches reports whether a bet's event name refers to game g: either an exact
// candidate match or both team names appearing in the normalized event name.
func Matches(eventName string, g domain.GameResult) bool {
	return matchesNormalized(Normalize(eventName), g)
}

func matchesNormalized(event string, g domain.GameResult) bool {
	if event == "" {
		return false
	}
	for _, c := range Candidates(g) {
		if event == c {
			return true
		}
	}
	home, away := Normalize(g.HomeTeam), Normalize(g.AwayTeam)
	if home == "" || away == "" {
		return false
	}
	return strings.Contains(event, home) && strings.Contains(event, away)
}

// FindGame returns the first completed game in slice order matching eventName.
// Ties go to the earlier game, so callers must pass games in a stable order.
func FindGame(eventName string, games []domain.GameResult) (domain.GameResult, bool) {
	event := Normalize(eventName)
	for _, g := range games {
		if !g.Completed {
			continue
		}
		if matchesNormalized(event, g) {
			return g, true
		}
	}
	return domain.GameResult{}, false
}

// Nearest returns the completed game whose candidate names are closest to
// eventName by edit distance. It only feeds diagnostics for unmatched bets.
func Nearest(eventName string, games []domain.GameResult) (domain.GameResult, int, bool) {
	event := Normalize(eventName)
	best, bestDist, found := domain.GameResult{}, 0, false
	for _, g := range games {
		if !g.Completed {
			continue
		}
		for _, c := range Candidates(g) {
			d := levenshtein.ComputeDistance(event, c)
			if !found || d < bestDist {
				best, bestDist, found = g, d, true
			}
		}
	}
	return best, bestDist, found
}
