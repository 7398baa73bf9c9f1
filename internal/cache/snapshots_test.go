package cache

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Sport string  `json:"sport"`
	Line  float64 `json:"line"`
}

func TestSnapshotsRedisHit(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewSnapshotsWithClient(rdb, 5*time.Minute)

	want := payload{Sport: "NBA", Line: 224.5}
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectGet("odds:NBA").SetVal(string(raw))

	var got payload
	assert.True(t, s.Get(context.Background(), "odds:NBA", &got))
	assert.Equal(t, want, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSnapshotsSetWritesBothTiers(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewSnapshotsWithClient(rdb, 5*time.Minute)

	want := payload{Sport: "NBA", Line: 224.5}
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectSet("odds:NBA", raw, 5*time.Minute).SetVal("OK")

	s.Set(context.Background(), "odds:NBA", want)
	assert.NoError(t, mock.ExpectationsWereMet())

	// Redis misses afterwards; the local tier still answers.
	mock.ExpectGet("odds:NBA").RedisNil()
	var got payload
	assert.True(t, s.Get(context.Background(), "odds:NBA", &got))
	assert.Equal(t, want, got)
}

func TestSnapshotsRedisErrorFallsBackToLocal(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	s := NewSnapshotsWithClient(rdb, 5*time.Minute)

	want := payload{Sport: "NHL", Line: 6.5}
	raw, err := json.Marshal(want)
	require.NoError(t, err)
	mock.ExpectSet("odds:NHL", raw, 5*time.Minute).SetErr(errors.New("connection refused"))
	s.Set(context.Background(), "odds:NHL", want)

	mock.ExpectGet("odds:NHL").SetErr(errors.New("connection refused"))
	var got payload
	assert.True(t, s.Get(context.Background(), "odds:NHL", &got), "redis being down never loses the local copy")
	assert.Equal(t, want, got)
}

func TestSnapshotsWithoutRedis(t *testing.T) {
	s := NewSnapshots("", 5*time.Minute)

	var got payload
	assert.False(t, s.Get(context.Background(), "odds:NBA", &got))

	s.Set(context.Background(), "odds:NBA", payload{Sport: "NBA", Line: 220})
	assert.True(t, s.Get(context.Background(), "odds:NBA", &got))
	assert.Equal(t, 220.0, got.Line)
}
