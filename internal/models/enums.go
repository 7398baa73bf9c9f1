package models

import "strings"

// Sport identifies a supported league.
type Sport string

const (
	SportNBA   Sport = "NBA"
	SportNFL   Sport = "NFL"
	SportMLB   Sport = "MLB"
	SportNHL   Sport = "NHL"
	SportNCAAB Sport = "NCAAB"
)

// AllSports lists every supported league in display order.
var AllSports = []Sport{SportNBA, SportNFL, SportMLB, SportNHL, SportNCAAB}

// ParseSport normalizes a sport string, returning false for unknown leagues.
func ParseSport(s string) (Sport, bool) {
	sp := Sport(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range AllSports {
		if sp == known {
			return sp, true
		}
	}
	return "", false
}

// Market identifies a bet market. Player-prop markets use the PLAYER_ prefix
// with the stat name appended, e.g. PLAYER_POINTS.
type Market string

const (
	MarketSpread    Market = "SPREAD"
	MarketMoneyline Market = "MONEYLINE"
	MarketTotal     Market = "TOTAL"
	// MarketSharp is a legacy market still present in old prediction logs.
	// It grades as a moneyline.
	MarketSharp Market = "SHARP"

	playerPrefix = "PLAYER_"
)

// IsPlayerProp reports whether the market is a player-prop market.
func (m Market) IsPlayerProp() bool {
	return strings.HasPrefix(string(m), playerPrefix)
}

// IsGameMarket reports whether the market is a game-level market.
func (m Market) IsGameMarket() bool {
	return !m.IsPlayerProp()
}

// PropStat returns the stat portion of a player-prop market ("POINTS" for
// PLAYER_POINTS). Empty for game markets.
func (m Market) PropStat() string {
	if !m.IsPlayerProp() {
		return ""
	}
	return strings.TrimPrefix(string(m), playerPrefix)
}

// PlayerMarket builds a player-prop market for a stat name.
func PlayerMarket(stat string) Market {
	return Market(playerPrefix + strings.ToUpper(stat))
}

// Tier is the pick confidence ladder. MONITOR and PASS are internal workflow
// states and are never emitted to consumers.
type Tier string

const (
	TierTitaniumSmash Tier = "TITANIUM_SMASH"
	TierGoldStar      Tier = "GOLD_STAR"
	TierEdgeLean      Tier = "EDGE_LEAN"
	TierMonitor       Tier = "MONITOR"
	TierPass          Tier = "PASS"
)

// Rank orders tiers for deterministic output sorting. Higher is better.
func (t Tier) Rank() int {
	switch t {
	case TierTitaniumSmash:
		return 4
	case TierGoldStar:
		return 3
	case TierEdgeLean:
		return 2
	case TierMonitor:
		return 1
	default:
		return 0
	}
}

// Hidden reports whether the tier is internal-only.
func (t Tier) Hidden() bool {
	return t == TierMonitor || t == TierPass
}

// Result is a graded pick outcome.
type Result string

const (
	ResultWin  Result = "WIN"
	ResultLoss Result = "LOSS"
	ResultPush Result = "PUSH"
	ResultVoid Result = "VOID"
)

// GameStatus tracks event lifecycle from the live feed.
type GameStatus string

const (
	StatusScheduled GameStatus = "SCHEDULED"
	StatusLive      GameStatus = "LIVE"
	StatusFinal     GameStatus = "FINAL"
)

// Side constants for totals and player props. Spread and moneyline sides are
// team names.
const (
	SideOver  = "Over"
	SideUnder = "Under"
)

// bookPreference orders sportsbooks; lower index wins dedup ties.
var bookPreference = []string{
	"draftkings",
	"fanduel",
	"betmgm",
	"caesars",
	"pinnacle",
	"bet365",
	"pointsbet",
}

// BookRank returns the preference rank for a sportsbook. Unknown books rank
// after every known book.
func BookRank(book string) int {
	b := strings.ToLower(strings.TrimSpace(book))
	for i, known := range bookPreference {
		if b == known {
			return i
		}
	}
	return len(bookPreference)
}
