package upstream

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reachRecorder struct {
	unreachable map[string]bool
}

func newReachRecorder() *reachRecorder {
	return &reachRecorder{unreachable: map[string]bool{}}
}

func (r *reachRecorder) MarkUnreachable(name string) { r.unreachable[name] = true }
func (r *reachRecorder) MarkReachable(name string)   { delete(r.unreachable, name) }

func TestGuardSuccessMarksReachable(t *testing.T) {
	reach := newReachRecorder()
	reach.MarkUnreachable("market_data")
	g := NewGuard("market_data", time.Second, 0, reach)

	err := g.Do(context.Background(), func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.False(t, reach.unreachable["market_data"])
}

func TestGuardRateLimitedMarksUnreachable(t *testing.T) {
	reach := newReachRecorder()
	g := NewGuard("market_data", time.Second, 0, reach)

	err := g.Do(context.Background(), func(ctx context.Context) error { return ErrRateLimited })
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.True(t, reach.unreachable["market_data"])
}

func TestGuardNotFoundIsMissingDataNotOutage(t *testing.T) {
	reach := newReachRecorder()
	g := NewGuard("results", time.Second, 0, reach)

	err := g.Do(context.Background(), func(ctx context.Context) error { return ErrNotFound })
	require.Error(t, err)
	assert.Equal(t, KindMissingData, KindOf(err))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, reach.unreachable["results"], "missing data never flags the integration")
}

func TestGuardTimeoutClassified(t *testing.T) {
	g := NewGuard("market_data", 20*time.Millisecond, 0, nil)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.Error(t, err)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func TestGuardBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	reach := newReachRecorder()
	g := NewGuard("market_data", time.Second, 0, reach)
	boom := errors.New("500")

	calls := 0
	for i := 0; i < 5; i++ {
		_ = g.Do(context.Background(), func(ctx context.Context) error {
			calls++
			return boom
		})
	}
	require.Equal(t, 5, calls)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.Error(t, err)
	assert.Equal(t, KindUnavailable, KindOf(err))
	assert.Equal(t, 5, calls, "an open breaker short-circuits the call")
	assert.True(t, reach.unreachable["market_data"])
}

func TestClassifyHTTP(t *testing.T) {
	assert.NoError(t, ClassifyHTTP(http.StatusOK))
	assert.ErrorIs(t, ClassifyHTTP(http.StatusTooManyRequests), ErrRateLimited)
	assert.ErrorIs(t, ClassifyHTTP(http.StatusNotFound), ErrNotFound)
	assert.Error(t, ClassifyHTTP(http.StatusInternalServerError))
	assert.Error(t, ClassifyHTTP(http.StatusBadGateway))
}

func TestWrapErrClassification(t *testing.T) {
	assert.Equal(t, KindTimeout, WrapErr("x", context.DeadlineExceeded).Kind)
	assert.Equal(t, KindUnavailable, WrapErr("x", errors.New("refused")).Kind)
}

func TestKindOfUntyped(t *testing.T) {
	assert.Equal(t, KindUnavailable, KindOf(errors.New("plain")))
	assert.Equal(t, KindTimeout, KindOf(context.DeadlineExceeded))
}
