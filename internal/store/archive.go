package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/sharpedge/pickengine/internal/models"
)

// Archive mirrors graded picks into Postgres for ad-hoc analysis. The JSONL
// log stays the source of truth; archive failures are logged and never block
// grading.
type Archive struct {
	db *sqlx.DB
}

const archiveSchema = `
CREATE TABLE IF NOT EXISTS graded_picks (
	pick_id       TEXT NOT NULL,
	et_date       TEXT NOT NULL,
	sport         TEXT NOT NULL,
	event_id      TEXT NOT NULL,
	market        TEXT NOT NULL,
	side          TEXT NOT NULL,
	line          DOUBLE PRECISION NOT NULL,
	player_id     TEXT NOT NULL DEFAULT '',
	tier          TEXT NOT NULL,
	final_score   DOUBLE PRECISION NOT NULL,
	result        TEXT NOT NULL,
	actual_value  DOUBLE PRECISION,
	beat_clv      BOOLEAN,
	graded_at     TIMESTAMPTZ NOT NULL,
	archived_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (pick_id, et_date)
)`

// OpenArchive connects and ensures the schema. A nil return with nil error
// means archiving is disabled (empty DSN).
func OpenArchive(ctx context.Context, dsn string) (*Archive, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect archive: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)
	if _, err := db.ExecContext(ctx, archiveSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("ensure archive schema: %w", err)
	}
	return &Archive{db: db}, nil
}

// StoreGraded upserts one graded pick. Regrades overwrite the earlier row.
func (a *Archive) StoreGraded(ctx context.Context, p *models.Pick) error {
	if a == nil || !p.Graded() {
		return nil
	}
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO graded_picks
			(pick_id, et_date, sport, event_id, market, side, line, player_id,
			 tier, final_score, result, actual_value, beat_clv, graded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (pick_id, et_date) DO UPDATE SET
			result = EXCLUDED.result,
			actual_value = EXCLUDED.actual_value,
			beat_clv = EXCLUDED.beat_clv,
			graded_at = EXCLUDED.graded_at,
			archived_at = now()`,
		p.PickID, p.ETDate, p.Sport, p.EventID, p.Market, p.Side, p.Line, p.PlayerID,
		p.Tier, p.FinalScore, *p.Result, p.ActualValue, p.BeatCLV, p.GradedAt.UTC())
	if err != nil {
		log.Warn().Err(err).Str("pick_id", p.PickID).Msg("archive write failed")
	}
	return err
}

// Close releases the connection pool.
func (a *Archive) Close() error {
	if a == nil {
		return nil
	}
	return a.db.Close()
}
