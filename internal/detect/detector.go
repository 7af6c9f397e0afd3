package detect

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/config"
	"github.com/polytrack/polytrack/internal/model"
	"github.com/polytrack/polytrack/internal/store"
)

// Detector evaluates snapshot pairs against the configured thresholds.
type Detector struct {
	store  store.Store
	cfg    config.DetectorConfig
	logger *slog.Logger
}

// NewDetector creates a detector writing through the given store.
func NewDetector(st store.Store, cfg config.DetectorConfig, logger *slog.Logger) *Detector {
	return &Detector{
		store:  st,
		cfg:    cfg,
		logger: logger,
	}
}

// Evaluate computes the shift between two consecutive snapshots of the same
// outcome. The relative delta is left at zero when the previous probability
// is zero; only the absolute threshold applies there.
func (d *Detector) Evaluate(prev, cur model.Snapshot) model.Shift {
	delta := cur.Prob - prev.Prob

	var deltaPercent float64
	if prev.Prob > 0 {
		deltaPercent = delta / prev.Prob
	}

	shift := model.Shift{
		MarketID:     cur.MarketID,
		OutcomeID:    cur.OutcomeID,
		TS:           cur.TS,
		PrevProb:     prev.Prob,
		NewProb:      cur.Prob,
		Delta:        delta,
		DeltaPercent: deltaPercent,
		Volume:       cur.Volume,
		VolumeImpact: math.Abs(delta) * cur.Volume,
	}

	meetsDelta := math.Abs(delta) >= d.cfg.AbsoluteDeltaThreshold ||
		(prev.Prob > 0 && math.Abs(deltaPercent) >= d.cfg.RelativeDeltaThreshold)
	shift.Significant = cur.Volume >= d.cfg.MinVolumeThreshold && meetsDelta

	return shift
}

// Process records one shift per (prev, new) snapshot pair and creates alerts
// for the significant ones that clear the cooldown gate. Outcomes with no
// prior snapshot are skipped; their first shift appears next cycle.
//
// Returned shifts carry assigned IDs; the alert slice holds only the alerts
// that were actually created, not the cooldown-suppressed ones.
func (d *Detector) Process(ctx context.Context, prev map[int64]model.Snapshot, snaps []model.Snapshot) ([]model.Shift, []model.Alert, error) {
	var shifts []model.Shift
	var alerts []model.Alert

	for _, cur := range snaps {
		before, ok := prev[cur.OutcomeID]
		if !ok {
			continue
		}

		shift := d.Evaluate(before, cur)
		if err := d.store.AppendShift(ctx, &shift); err != nil {
			return shifts, alerts, fmt.Errorf("record shift: %w", err)
		}
		shifts = append(shifts, shift)

		if !shift.Significant {
			continue
		}

		alert := model.Alert{
			ID:           uuid.New(),
			MarketID:     shift.MarketID,
			OutcomeID:    shift.OutcomeID,
			ShiftID:      shift.ID,
			PrevProb:     shift.PrevProb,
			NewProb:      shift.NewProb,
			Delta:        shift.Delta,
			DeltaPercent: shift.DeltaPercent,
			Volume:       shift.Volume,
			VolumeImpact: shift.VolumeImpact,
			TS:           shift.TS,
			Status:       model.AlertActive,
		}

		created, err := d.store.CreateAlert(ctx, alert, shift.TS.Add(-d.cfg.AlertCooldown))
		if err != nil {
			return shifts, alerts, fmt.Errorf("create alert: %w", err)
		}
		if !created {
			d.logger.Debug("alert suppressed by cooldown",
				"market_id", shift.MarketID,
				"outcome_id", shift.OutcomeID)
			continue
		}

		d.logger.Info("alert raised",
			"market_id", shift.MarketID,
			"outcome_id", shift.OutcomeID,
			"delta", shift.Delta,
			"volume_impact", shift.VolumeImpact)
		alerts = append(alerts, alert)
	}

	return shifts, alerts, nil
}
