package upstream

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/sharpedge/pickengine/internal/telemetry"
)

// Reachability is the subset of the integration registry the guard reports
// into after each call.
type Reachability interface {
	MarkUnreachable(name string)
	MarkReachable(name string)
}

// Guard wraps every outbound call to one integration with a per-call
// deadline, a token-bucket limiter and a circuit breaker. A tripped breaker
// or a 429 surfaces as UpstreamUnavailable and flags the integration
// UNREACHABLE so health rolls up without callers inspecting errors.
type Guard struct {
	name    string
	timeout time.Duration
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	reach   Reachability
}

// NewGuard builds a guard for one integration. rps<=0 disables rate limiting
// (used for file-backed fakes in tests).
func NewGuard(name string, timeout time.Duration, rps float64, reach Reachability) *Guard {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), int(rps)+1)
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 2,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("integration", name).
				Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
	return &Guard{name: name, timeout: timeout, limiter: limiter, breaker: breaker, reach: reach}
}

// ErrRateLimited is returned by adapters that observed an HTTP 429.
var ErrRateLimited = errors.New("rate limited (429)")

// Do runs fn under the guard. fn receives a context bounded by the per-call
// timeout and must honor cancellation.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	telemetry.UpstreamRequests.WithLabelValues(g.name).Inc()

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return g.fail(WrapErr(g.name, err))
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	_, err := g.breaker.Execute(func() (interface{}, error) {
		return nil, fn(callCtx)
	})
	if err == nil {
		if g.reach != nil {
			g.reach.MarkReachable(g.name)
		}
		return nil
	}

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return g.fail(&Error{Kind: KindUnavailable, Integration: g.name, Err: err})
	case errors.Is(err, ErrRateLimited):
		return g.fail(&Error{Kind: KindUnavailable, Integration: g.name, Err: err})
	case errors.Is(err, ErrNotFound):
		// Missing data is a normal condition, not a reachability problem.
		return &Error{Kind: KindMissingData, Integration: g.name, Err: err}
	default:
		return g.fail(WrapErr(g.name, err))
	}
}

func (g *Guard) fail(err *Error) error {
	telemetry.UpstreamErrors.WithLabelValues(g.name, string(err.Kind)).Inc()
	if g.reach != nil && (err.Kind == KindUnavailable || err.Kind == KindTimeout) {
		g.reach.MarkUnreachable(g.name)
	}
	return err
}

// ClassifyHTTP maps an HTTP status to the appropriate sentinel for Do.
func ClassifyHTTP(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusNotFound:
		return ErrNotFound
	case status >= 500:
		return errors.New(http.StatusText(status))
	default:
		return nil
	}
}
