package models

import "time"

// Event is a scheduled game as reported by the market data upstream.
// StartTime is always stored in UTC; rendering to ET happens at the edges.
type Event struct {
	EventID   string     `json:"event_id"`
	Sport     Sport      `json:"sport"`
	Home      string     `json:"home"`
	Away      string     `json:"away"`
	StartTime time.Time  `json:"start_time"`
	Status    GameStatus `json:"status,omitempty"`
}

// Candidate is a (event, market, side, line) tuple considered for scoring.
type Candidate struct {
	Event  Event  `json:"event"`
	Market Market `json:"market"`
	Side   string `json:"side"`
	Line   float64 `json:"line"`

	// OddsAmerican is nil when the book published no price; odds are never
	// fabricated downstream.
	OddsAmerican *int   `json:"odds_american"`
	Book         string `json:"book"`

	PlayerID   string `json:"player_id,omitempty"`
	PlayerName string `json:"player_name,omitempty"`
}

// PickID returns the deterministic fingerprint identifying this candidate.
func (c Candidate) PickID() string {
	return Fingerprint(c.Event.Sport, c.Event.EventID, c.Market, c.Side, c.Line, c.PlayerID)
}
