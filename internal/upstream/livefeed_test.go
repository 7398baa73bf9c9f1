package upstream

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sharpedge/pickengine/internal/models"
)

func TestLiveFeedDefaultsToScheduled(t *testing.T) {
	f := NewLiveFeed("")
	assert.Equal(t, models.StatusScheduled, f.Status("evt-1"))
}

func TestLiveFeedSetStatus(t *testing.T) {
	f := NewLiveFeed("")
	f.SetStatus("evt-1", models.StatusLive)
	assert.Equal(t, models.StatusLive, f.Status("evt-1"))
	assert.Equal(t, models.StatusScheduled, f.Status("evt-2"))
}

func TestLiveFeedRunWithoutURLReturns(t *testing.T) {
	f := NewLiveFeed("")
	done := make(chan struct{})
	go func() {
		f.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately with no URL")
	}
}

func TestParseStatus(t *testing.T) {
	for _, s := range []string{"SCHEDULED", "LIVE", "FINAL"} {
		got, ok := parseStatus(s)
		assert.True(t, ok)
		assert.Equal(t, models.GameStatus(s), got)
	}
	_, ok := parseStatus("HALFTIME")
	assert.False(t, ok)
}
