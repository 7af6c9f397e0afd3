package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema is the DDL for the tracker tables. tracked_market rows are written
// by the external tracking layer; the core only reads them.
const Schema = `
CREATE TABLE IF NOT EXISTS tracked_market (
    id          BIGSERIAL PRIMARY KEY,
    slug        TEXT NOT NULL,
    market_id   TEXT NOT NULL DEFAULT '',
    title       TEXT NOT NULL DEFAULT '',
    tag_slug    TEXT NOT NULL DEFAULT '',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_tracked_market_slug ON tracked_market (slug);

CREATE TABLE IF NOT EXISTS outcome (
    id          BIGSERIAL PRIMARY KEY,
    market_id   BIGINT NOT NULL REFERENCES tracked_market (id) ON DELETE CASCADE,
    token_id    TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    UNIQUE (market_id, token_id)
);

CREATE TABLE IF NOT EXISTS snapshot (
    id          BIGSERIAL PRIMARY KEY,
    market_id   BIGINT NOT NULL,
    outcome_id  BIGINT NOT NULL,
    prob        DOUBLE PRECISION NOT NULL CHECK (prob >= 0 AND prob <= 1),
    volume      DOUBLE PRECISION NOT NULL CHECK (volume >= 0),
    liquidity   DOUBLE PRECISION NOT NULL DEFAULT 0,
    ts          TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_snapshot_outcome_ts ON snapshot (market_id, outcome_id, ts DESC);

CREATE TABLE IF NOT EXISTS shift (
    id            BIGSERIAL PRIMARY KEY,
    market_id     BIGINT NOT NULL,
    outcome_id    BIGINT NOT NULL,
    ts            TIMESTAMPTZ NOT NULL,
    prev_prob     DOUBLE PRECISION NOT NULL,
    new_prob      DOUBLE PRECISION NOT NULL,
    delta         DOUBLE PRECISION NOT NULL,
    delta_percent DOUBLE PRECISION NOT NULL,
    volume        DOUBLE PRECISION NOT NULL,
    volume_impact DOUBLE PRECISION NOT NULL,
    significant   BOOLEAN NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_shift_market_impact ON shift (market_id, volume_impact DESC, ts DESC);

CREATE TABLE IF NOT EXISTS alert (
    id            UUID PRIMARY KEY,
    market_id     BIGINT NOT NULL,
    outcome_id    BIGINT NOT NULL,
    shift_id      BIGINT NOT NULL DEFAULT 0,
    prev_prob     DOUBLE PRECISION NOT NULL,
    new_prob      DOUBLE PRECISION NOT NULL,
    delta         DOUBLE PRECISION NOT NULL,
    delta_percent DOUBLE PRECISION NOT NULL,
    volume        DOUBLE PRECISION NOT NULL,
    volume_impact DOUBLE PRECISION NOT NULL,
    ts            TIMESTAMPTZ NOT NULL,
    status        TEXT NOT NULL DEFAULT 'active'
);
CREATE INDEX IF NOT EXISTS idx_alert_outcome_ts ON alert (market_id, outcome_id, ts DESC);
CREATE INDEX IF NOT EXISTS idx_alert_status_ts ON alert (status, ts DESC);
`

// EnsureSchema creates the tracker tables if they do not exist.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
