package settlement

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/attaboy/settlement/internal/domain"
	"github.com/shopspring/decimal"
)

// Options tunes how resolvers treat malformed selections.
type Options struct {
	// StrictLines leaves Spread/Total bets pending when no numeric line can be
	// read from the selection, instead of settling against a line of 0.
	StrictLines bool
}

// ResolverFunc computes the verdict of one bet against its matched game.
type ResolverFunc func(bet domain.Bet, game domain.GameResult, opts Options) domain.Verdict

var resolvers = map[domain.Market]ResolverFunc{
	domain.MarketSpread:    ResolveSpread,
	domain.MarketMoneyline: ResolveMoneyline,
	domain.MarketTotal:     ResolveTotal,
}

// Unsettled reasons.
const (
	ReasonUnsupportedMarket = "unsupported_market"
	ReasonUnparseableLine   = "unparseable_line"
)

// Resolve dispatches to the resolver for the bet's market. Markets without a
// resolver always come back unsettled.
func Resolve(bet domain.Bet, game domain.GameResult, opts Options) domain.Verdict {
	fn, ok := resolvers[bet.Market]
	if !ok {
		return domain.Unsettled(ReasonUnsupportedMarket)
	}
	return fn(bet, game, opts)
}

var lineToken = regexp.MustCompile(`[-+]?\d*\.?\d+`)

// ParseLine extracts the line from a selection: the first signed decimal that
// is not part of a word, so "Philadelphia 76ers -3.5" reads -3.5 and "Team4 -3"
// reads -3. A token touching a letter on either side is skipped; an explicit
// sign is allowed directly after a letter ("Lakers-2").
// rest is the selection with that token removed and trimmed. When no number
// is present line is zero and ok is false.
func ParseLine(selection string) (line decimal.Decimal, rest string, ok bool) {
	var loc []int
	for _, m := range lineToken.FindAllStringIndex(selection, -1) {
		if inWord(selection, m[0], m[1]) {
			continue
		}
		loc = m
		break
	}
	if loc == nil {
		return decimal.Zero, strings.TrimSpace(selection), false
	}
	line, err := decimal.NewFromString(strings.TrimPrefix(selection[loc[0]:loc[1]], "+"))
	if err != nil {
		return decimal.Zero, strings.TrimSpace(selection), false
	}
	rest = strings.TrimSpace(selection[:loc[0]] + selection[loc[1]:])
	return line, rest, true
}

func inWord(s string, start, end int) bool {
	if next, _ := utf8.DecodeRuneInString(s[end:]); unicode.IsLetter(next) {
		return true
	}
	if s[start] == '-' || s[start] == '+' {
		return false
	}
	prev, _ := utf8.DecodeLastRuneInString(s[:start])
	return unicode.IsLetter(prev)
}

// sides returns the chosen team's score and the opponent's. A team that is
// neither the home nor the away name is treated as the away side.
func sides(team string, game domain.GameResult) (chosen, opponent decimal.Decimal) {
	if team == game.HomeTeam {
		return game.HomeScore, game.AwayScore
	}
	return game.AwayScore, game.HomeScore
}

// IsKnownSide reports whether team exactly names one side of the game.
func IsKnownSide(team string, game domain.GameResult) bool {
	return team == game.HomeTeam || team == game.AwayTeam
}

func compare(a, b decimal.Decimal) domain.Outcome {
	switch a.Cmp(b) {
	case 1:
		return domain.OutcomeWin
	case -1:
		return domain.OutcomeLoss
	default:
		return domain.OutcomePush
	}
}

// ResolveSpread adds the spread to the chosen team's score and compares it
// with the opponent's raw score.
func ResolveSpread(bet domain.Bet, game domain.GameResult, opts Options) domain.Verdict {
	spread, team, ok := ParseLine(bet.Selection)
	if !ok && opts.StrictLines {
		return domain.Unsettled(ReasonUnparseableLine)
	}
	chosen, opponent := sides(team, game)
	return domain.Settle(compare(chosen.Add(spread), opponent))
}

// ResolveMoneyline compares raw scores; the selection is the team name.
func ResolveMoneyline(bet domain.Bet, game domain.GameResult, _ Options) domain.Verdict {
	chosen, opponent := sides(strings.TrimSpace(bet.Selection), game)
	return domain.Settle(compare(chosen, opponent))
}

// ResolveTotal compares the combined score with the line. Any selection not
// containing "over" is an under bet.
func ResolveTotal(bet domain.Bet, game domain.GameResult, opts Options) domain.Verdict {
	line, _, ok := ParseLine(bet.Selection)
	if !ok && opts.StrictLines {
		return domain.Unsettled(ReasonUnparseableLine)
	}
	total := game.Total()
	if strings.Contains(strings.ToLower(bet.Selection), "over") {
		return domain.Settle(compare(total, line))
	}
	return domain.Settle(compare(line, total))
}
