package upstream

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
)

// statusMessage is the wire format of the scoreboard feed: one JSON object
// per event transition.
type statusMessage struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Home    int    `json:"home,omitempty"`
	Away    int    `json:"away,omitempty"`
}

// LiveFeed maintains an in-memory game-status table from the scoreboard
// websocket. The live adjustment only applies while a game is LIVE, and the
// grader skips events the feed has not yet marked FINAL, so the table is
// read on both paths. Everything degrades to SCHEDULED when the feed is
// down; the feed is an accelerant, not a source of record.
type LiveFeed struct {
	url string

	mu       sync.RWMutex
	statuses map[string]models.GameStatus

	cancel context.CancelFunc
	done   chan struct{}
}

// NewLiveFeed creates a feed client. Run must be called to start consuming.
func NewLiveFeed(url string) *LiveFeed {
	return &LiveFeed{
		url:      url,
		statuses: make(map[string]models.GameStatus),
		done:     make(chan struct{}),
	}
}

// Status returns the last observed status for an event, SCHEDULED when the
// feed has never mentioned it.
func (f *LiveFeed) Status(eventID string) models.GameStatus {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if s, ok := f.statuses[eventID]; ok {
		return s
	}
	return models.StatusScheduled
}

// SetStatus records a status directly; used by tests and by the grader when
// a results fetch proves a game final before the feed said so.
func (f *LiveFeed) SetStatus(eventID string, status models.GameStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[eventID] = status
}

// Run consumes the feed until ctx is cancelled, reconnecting with capped
// exponential backoff. An empty URL returns immediately.
func (f *LiveFeed) Run(ctx context.Context) {
	defer close(f.done)
	if f.url == "" {
		return
	}

	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := f.consume(ctx); err != nil && ctx.Err() == nil {
			log.Warn().Err(err).Dur("backoff", backoff).Msg("live feed disconnected, reconnecting")
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (f *LiveFeed) consume(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 5 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.url, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	log.Info().Str("url", f.url).Msg("live feed connected")

	// Unblock ReadMessage when the context dies.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var msg statusMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Warn().Err(err).Msg("live feed message unparseable, skipping")
			continue
		}
		status, ok := parseStatus(msg.Status)
		if !ok || msg.EventID == "" {
			continue
		}
		f.SetStatus(msg.EventID, status)
	}
}

func parseStatus(s string) (models.GameStatus, bool) {
	switch models.GameStatus(s) {
	case models.StatusScheduled, models.StatusLive, models.StatusFinal:
		return models.GameStatus(s), true
	}
	return "", false
}
