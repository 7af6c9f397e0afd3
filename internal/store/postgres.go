package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polytrack/polytrack/internal/model"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	db *pgxpool.Pool
}

// NewPostgres creates a Postgres store on an existing pool.
func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

// ListTrackedMarkets implements Store.
func (p *Postgres) ListTrackedMarkets(ctx context.Context) ([]model.TrackedMarket, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, slug, market_id, title, tag_slug, created_at
		FROM tracked_market
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("list tracked markets: %w", err)
	}
	defer rows.Close()

	var out []model.TrackedMarket
	for rows.Next() {
		var tm model.TrackedMarket
		if err := rows.Scan(&tm.ID, &tm.Slug, &tm.MarketID, &tm.Title, &tm.TagSlug, &tm.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracked market: %w", err)
		}
		out = append(out, tm)
	}
	return out, rows.Err()
}

// EnsureOutcome implements Store.
func (p *Postgres) EnsureOutcome(ctx context.Context, marketID int64, tokenID, name string) (model.Outcome, error) {
	var o model.Outcome
	err := p.db.QueryRow(ctx, `
		INSERT INTO outcome (market_id, token_id, name)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id, token_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id, market_id, token_id, name
	`, marketID, tokenID, name).Scan(&o.ID, &o.MarketID, &o.TokenID, &o.Name)
	if err != nil {
		return model.Outcome{}, fmt.Errorf("ensure outcome: %w", err)
	}
	return o, nil
}

// AppendSnapshots implements Store using a single pgx batch round-trip.
func (p *Postgres) AppendSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	for _, s := range snaps {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	batch := &pgx.Batch{}
	for i := range snaps {
		s := snaps[i]
		batch.Queue(`
			INSERT INTO snapshot (market_id, outcome_id, prob, volume, liquidity, ts)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id
		`, s.MarketID, s.OutcomeID, s.Prob, s.Volume, s.Liquidity, s.TS)
	}

	results := p.db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range snaps {
		if err := results.QueryRow().Scan(&snaps[i].ID); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
	}
	return nil
}

// LatestSnapshots implements Store.
func (p *Postgres) LatestSnapshots(ctx context.Context, marketID int64) (map[int64]model.Snapshot, error) {
	rows, err := p.db.Query(ctx, `
		SELECT DISTINCT ON (outcome_id)
			id, market_id, outcome_id, prob, volume, liquidity, ts
		FROM snapshot
		WHERE market_id = $1
		ORDER BY outcome_id, ts DESC
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]model.Snapshot)
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.MarketID, &s.OutcomeID, &s.Prob, &s.Volume, &s.Liquidity, &s.TS); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out[s.OutcomeID] = s
	}
	return out, rows.Err()
}

// SnapshotsInRange implements Store.
func (p *Postgres) SnapshotsInRange(ctx context.Context, marketID int64, from, to time.Time, limit int) ([]model.Snapshot, error) {
	query := `
		SELECT id, market_id, outcome_id, prob, volume, liquidity, ts
		FROM snapshot
		WHERE market_id = $1 AND ts >= $2 AND ts <= $3
		ORDER BY ts ASC
	`
	args := []any{marketID, from, to}
	if limit > 0 {
		query += ` LIMIT $4`
		args = append(args, limit)
	}

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("snapshots in range: %w", err)
	}
	defer rows.Close()

	var out []model.Snapshot
	for rows.Next() {
		var s model.Snapshot
		if err := rows.Scan(&s.ID, &s.MarketID, &s.OutcomeID, &s.Prob, &s.Volume, &s.Liquidity, &s.TS); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// AppendShift implements Store.
func (p *Postgres) AppendShift(ctx context.Context, shift *model.Shift) error {
	err := p.db.QueryRow(ctx, `
		INSERT INTO shift (market_id, outcome_id, ts, prev_prob, new_prob, delta, delta_percent, volume, volume_impact, significant)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, shift.MarketID, shift.OutcomeID, shift.TS, shift.PrevProb, shift.NewProb,
		shift.Delta, shift.DeltaPercent, shift.Volume, shift.VolumeImpact, shift.Significant,
	).Scan(&shift.ID)
	if err != nil {
		return fmt.Errorf("insert shift: %w", err)
	}
	return nil
}

// ListShifts implements Store.
func (p *Postgres) ListShifts(ctx context.Context, marketID int64) ([]model.Shift, error) {
	rows, err := p.db.Query(ctx, `
		SELECT id, market_id, outcome_id, ts, prev_prob, new_prob, delta, delta_percent, volume, volume_impact, significant
		FROM shift
		WHERE market_id = $1
		ORDER BY volume_impact DESC, ts DESC
	`, marketID)
	if err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	defer rows.Close()

	var out []model.Shift
	for rows.Next() {
		var s model.Shift
		if err := rows.Scan(&s.ID, &s.MarketID, &s.OutcomeID, &s.TS, &s.PrevProb, &s.NewProb,
			&s.Delta, &s.DeltaPercent, &s.Volume, &s.VolumeImpact, &s.Significant); err != nil {
			return nil, fmt.Errorf("scan shift: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// CreateAlert implements Store. The cooldown check and the insert run in one
// statement so concurrent shifts cannot both pass the gate.
func (p *Postgres) CreateAlert(ctx context.Context, alert model.Alert, cutoff time.Time) (bool, error) {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Status == "" {
		alert.Status = model.AlertActive
	}

	ct, err := p.db.Exec(ctx, `
		INSERT INTO alert (id, market_id, outcome_id, shift_id, prev_prob, new_prob, delta, delta_percent, volume, volume_impact, ts, status)
		SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		WHERE NOT EXISTS (
			SELECT 1 FROM alert
			WHERE market_id = $2 AND outcome_id = $3 AND ts >= $13
		)
	`, alert.ID, alert.MarketID, alert.OutcomeID, alert.ShiftID,
		alert.PrevProb, alert.NewProb, alert.Delta, alert.DeltaPercent,
		alert.Volume, alert.VolumeImpact, alert.TS, alert.Status, cutoff)
	if err != nil {
		return false, fmt.Errorf("create alert: %w", err)
	}

	return ct.RowsAffected() > 0, nil
}

// ListAlerts implements Store.
func (p *Postgres) ListAlerts(ctx context.Context, opts ListAlertsOptions) ([]model.Alert, error) {
	query := `
		SELECT id, market_id, outcome_id, shift_id, prev_prob, new_prob, delta, delta_percent, volume, volume_impact, ts, status
		FROM alert
	`
	var args []any
	switch {
	case opts.Status != "":
		query += ` WHERE status = $1`
		args = append(args, string(opts.Status))
	case !opts.IncludeAll:
		query += ` WHERE status = $1`
		args = append(args, string(model.AlertActive))
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultAlertLimit
	}
	query += fmt.Sprintf(` ORDER BY ts DESC LIMIT %d`, limit)

	rows, err := p.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []model.Alert
	for rows.Next() {
		var a model.Alert
		var status string
		if err := rows.Scan(&a.ID, &a.MarketID, &a.OutcomeID, &a.ShiftID, &a.PrevProb, &a.NewProb,
			&a.Delta, &a.DeltaPercent, &a.Volume, &a.VolumeImpact, &a.TS, &status); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		a.Status = model.AlertStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

// Acknowledge implements Store. The update is unconditional on status, so a
// second acknowledge of the same alert is a no-op that returns the terminal
// row.
func (p *Postgres) Acknowledge(ctx context.Context, id uuid.UUID) (model.Alert, error) {
	var a model.Alert
	var status string
	err := p.db.QueryRow(ctx, `
		UPDATE alert SET status = $2
		WHERE id = $1
		RETURNING id, market_id, outcome_id, shift_id, prev_prob, new_prob, delta, delta_percent, volume, volume_impact, ts, status
	`, id, string(model.AlertAcknowledged)).Scan(
		&a.ID, &a.MarketID, &a.OutcomeID, &a.ShiftID, &a.PrevProb, &a.NewProb,
		&a.Delta, &a.DeltaPercent, &a.Volume, &a.VolumeImpact, &a.TS, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Alert{}, ErrNotFound
		}
		return model.Alert{}, fmt.Errorf("acknowledge alert: %w", err)
	}
	a.Status = model.AlertStatus(status)
	return a, nil
}
