// Package upstream defines the interfaces the core consumes from market,
// results and splits providers, plus the guard plumbing (rate limits, circuit
// breakers, deadlines) every vendor adapter is wrapped in. Business logic
// never sees a vendor identity, only these interfaces.
package upstream

import (
	"context"
	"time"

	"github.com/sharpedge/pickengine/internal/models"
)

// MarketDataSource provides events, player props and per-book odds.
// FetchEvents may return a multi-day forward window; the slate builder owns
// the ET day gate.
type MarketDataSource interface {
	FetchEvents(ctx context.Context, sport models.Sport) ([]models.Event, error)
	FetchProps(ctx context.Context, sport models.Sport) ([]models.Candidate, error)
	GetOddsSnapshot(ctx context.Context, sport models.Sport) (*OddsSnapshot, error)
}

// ResultsSource provides final scores and player stat lines after games
// complete. Both return ErrNotFound for games that have not been settled.
type ResultsSource interface {
	FetchFinalScore(ctx context.Context, eventID string) (*FinalScore, error)
	FetchPlayerStat(ctx context.Context, playerID, eventID, stat string) (float64, error)
}

// SplitsSource provides ticket/money splits; the sole input to the sharp
// signal. Unavailability maps to sharp strength NONE, never to inference
// from line data.
type SplitsSource interface {
	FetchSplits(ctx context.Context, eventID string) (*Splits, error)
}

// IntelSource is the optional external-intelligence (SERP-like) provider.
// Boosts are pre-fetched per slate, never per candidate.
type IntelSource interface {
	FetchEventIntel(ctx context.Context, sport models.Sport, eventIDs []string) (map[string]EventIntel, error)
}

// OddsSnapshot is a point-in-time view of per-book lines for one sport.
type OddsSnapshot struct {
	Sport     models.Sport `json:"sport"`
	FetchedAt time.Time    `json:"fetched_at"`
	Lines     []BookLine   `json:"lines"`
}

// BookLine is one book's price on one side of one market.
type BookLine struct {
	EventID      string        `json:"event_id"`
	Market       models.Market `json:"market"`
	Side         string        `json:"side"`
	Line         float64       `json:"line"`
	OddsAmerican int           `json:"odds_american"`
	Book         string        `json:"book"`
}

// LinesFor filters the snapshot to one event+market+side across books.
func (s *OddsSnapshot) LinesFor(eventID string, market models.Market, side string) []BookLine {
	var out []BookLine
	for _, l := range s.Lines {
		if l.EventID == eventID && l.Market == market && l.Side == side {
			out = append(out, l)
		}
	}
	return out
}

// FinalScore is a completed game result.
type FinalScore struct {
	EventID string `json:"event_id"`
	Home    int    `json:"home"`
	Away    int    `json:"away"`
	// Status distinguishes clean finals from ties and no-contests.
	Status FinalStatus `json:"status"`
}

// FinalStatus qualifies a final score.
type FinalStatus string

const (
	FinalStatusCompleted FinalStatus = "COMPLETED"
	FinalStatusTie       FinalStatus = "TIE"
	FinalStatusNoContest FinalStatus = "NO_CONTEST"
)

// Splits is the ticket/money breakdown for one event.
type Splits struct {
	TicketPct float64 `json:"ticket_pct"`
	MoneyPct  float64 `json:"money_pct"`
	SharpSide string  `json:"sharp_side"`
}

// EventIntel is pre-fetched external intelligence for one event.
type EventIntel struct {
	Boost   float64  `json:"boost"`
	Reasons []string `json:"reasons"`
}
