package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/sharpedge/pickengine/internal/models"
)

// apiClient is the shared HTTP plumbing for the vendor adapters: one JSON
// GET with key injection and status classification. Each adapter stays a
// thin mapping from vendor payloads to the interface types.
type apiClient struct {
	base   string
	apiKey string
	http   *http.Client
}

func newAPIClient(baseEnv string, keyEnvs ...string) *apiClient {
	key := ""
	for _, env := range keyEnvs {
		if v := os.Getenv(env); v != "" {
			key = v
			break
		}
	}
	return &apiClient{
		base:   os.Getenv(baseEnv),
		apiKey: key,
		http:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) configured() bool { return c.base != "" && c.apiKey != "" }

func (c *apiClient) getJSON(ctx context.Context, path string, query url.Values, dest interface{}) error {
	if !c.configured() {
		return &Error{Kind: KindMissingData, Integration: path, Err: fmt.Errorf("adapter not configured")}
	}
	if query == nil {
		query = url.Values{}
	}
	query.Set("apiKey", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := ClassifyHTTP(resp.StatusCode); err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(dest)
}

// MarketAPI is the HTTP market-data adapter. Env: MARKET_DATA_BASE_URL plus
// ODDS_API_KEY or MARKET_DATA_API_KEY.
type MarketAPI struct {
	client *apiClient
}

func NewMarketAPI() *MarketAPI {
	return &MarketAPI{client: newAPIClient("MARKET_DATA_BASE_URL", "ODDS_API_KEY", "MARKET_DATA_API_KEY")}
}

type wireEvent struct {
	EventID   string    `json:"event_id"`
	Home      string    `json:"home"`
	Away      string    `json:"away"`
	StartTime time.Time `json:"start_time"`
}

func (m *MarketAPI) FetchEvents(ctx context.Context, sport models.Sport) ([]models.Event, error) {
	var wire []wireEvent
	if err := m.getList(ctx, "/v1/events", sport, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Event, 0, len(wire))
	for _, w := range wire {
		out = append(out, models.Event{
			EventID:   w.EventID,
			Sport:     sport,
			Home:      w.Home,
			Away:      w.Away,
			StartTime: w.StartTime,
			Status:    models.StatusScheduled,
		})
	}
	return out, nil
}

type wireProp struct {
	EventID    string  `json:"event_id"`
	Stat       string  `json:"stat"`
	Side       string  `json:"side"`
	Line       float64 `json:"line"`
	Odds       *int    `json:"odds_american"`
	Book       string  `json:"book"`
	PlayerID   string  `json:"player_id"`
	PlayerName string  `json:"player_name"`
}

func (m *MarketAPI) FetchProps(ctx context.Context, sport models.Sport) ([]models.Candidate, error) {
	var wire []wireProp
	if err := m.getList(ctx, "/v1/props", sport, &wire); err != nil {
		return nil, err
	}
	out := make([]models.Candidate, 0, len(wire))
	for _, w := range wire {
		out = append(out, models.Candidate{
			Event:        models.Event{EventID: w.EventID, Sport: sport},
			Market:       models.PlayerMarket(w.Stat),
			Side:         w.Side,
			Line:         w.Line,
			OddsAmerican: w.Odds,
			Book:         w.Book,
			PlayerID:     w.PlayerID,
			PlayerName:   w.PlayerName,
		})
	}
	return out, nil
}

func (m *MarketAPI) GetOddsSnapshot(ctx context.Context, sport models.Sport) (*OddsSnapshot, error) {
	var snap OddsSnapshot
	if err := m.getList(ctx, "/v1/odds", sport, &snap); err != nil {
		return nil, err
	}
	snap.Sport = sport
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now().UTC()
	}
	return &snap, nil
}

func (m *MarketAPI) getList(ctx context.Context, path string, sport models.Sport, dest interface{}) error {
	q := url.Values{}
	q.Set("sport", string(sport))
	return m.client.getJSON(ctx, path, q, dest)
}

// ResultsAPI is the HTTP results adapter. Env: RESULTS_BASE_URL plus
// RESULTS_API_KEY or SCORES_API_KEY.
type ResultsAPI struct {
	client *apiClient
}

func NewResultsAPI() *ResultsAPI {
	return &ResultsAPI{client: newAPIClient("RESULTS_BASE_URL", "RESULTS_API_KEY", "SCORES_API_KEY")}
}

func (r *ResultsAPI) FetchFinalScore(ctx context.Context, eventID string) (*FinalScore, error) {
	var fs FinalScore
	q := url.Values{}
	q.Set("event_id", eventID)
	if err := r.client.getJSON(ctx, "/v1/finals", q, &fs); err != nil {
		return nil, err
	}
	if fs.EventID == "" {
		return nil, ErrNotFound
	}
	return &fs, nil
}

func (r *ResultsAPI) FetchPlayerStat(ctx context.Context, playerID, eventID, stat string) (float64, error) {
	var payload struct {
		Value *float64 `json:"value"`
	}
	q := url.Values{}
	q.Set("player_id", playerID)
	q.Set("event_id", eventID)
	q.Set("stat", stat)
	if err := r.client.getJSON(ctx, "/v1/player_stats", q, &payload); err != nil {
		return 0, err
	}
	if payload.Value == nil {
		return 0, ErrNotFound
	}
	return *payload.Value, nil
}

// SplitsAPI is the ticket/money splits adapter. Env: SPLITS_BASE_URL plus
// SPLITS_API_KEY or SHARP_SPLITS_KEY.
type SplitsAPI struct {
	client *apiClient
}

func NewSplitsAPI() *SplitsAPI {
	return &SplitsAPI{client: newAPIClient("SPLITS_BASE_URL", "SPLITS_API_KEY", "SHARP_SPLITS_KEY")}
}

func (s *SplitsAPI) FetchSplits(ctx context.Context, eventID string) (*Splits, error) {
	var sp Splits
	q := url.Values{}
	q.Set("event_id", eventID)
	if err := s.client.getJSON(ctx, "/v1/splits", q, &sp); err != nil {
		return nil, err
	}
	return &sp, nil
}

// SerpAPI is the external-intelligence adapter. Env: SERP_BASE_URL plus
// SERP_API_KEY. Absent configuration returns empty intel, never an error;
// the integration is OPTIONAL.
type SerpAPI struct {
	client *apiClient
}

func NewSerpAPI() *SerpAPI {
	return &SerpAPI{client: newAPIClient("SERP_BASE_URL", "SERP_API_KEY")}
}

func (s *SerpAPI) FetchEventIntel(ctx context.Context, sport models.Sport, eventIDs []string) (map[string]EventIntel, error) {
	if !s.client.configured() {
		return map[string]EventIntel{}, nil
	}
	var payload map[string]EventIntel
	q := url.Values{}
	q.Set("sport", string(sport))
	for _, id := range eventIDs {
		q.Add("event_id", id)
	}
	if err := s.client.getJSON(ctx, "/v1/intel", q, &payload); err != nil {
		return nil, err
	}
	if payload == nil {
		payload = map[string]EventIntel{}
	}
	return payload, nil
}
