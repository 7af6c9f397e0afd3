package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/model"
)

// ErrNotFound is returned for lookups of unknown alerts or markets.
var ErrNotFound = errors.New("not found")

// ListAlertsOptions filters ListAlerts. The zero value lists active alerts
// only, which is the default surface for clients.
type ListAlertsOptions struct {
	// Status filters by exact status when non-empty.
	Status model.AlertStatus
	// IncludeAll disables the default active-only filter.
	IncludeAll bool
	// Limit bounds the result set; 0 means the store default (500).
	Limit int
}

// Store is the persistence surface required by the ingestion and detection
// pipeline.
type Store interface {
	// ListTrackedMarkets returns the current tracked set. Rows are owned by
	// the external tracking layer.
	ListTrackedMarkets(ctx context.Context) ([]model.TrackedMarket, error)

	// EnsureOutcome returns the outcome row for (marketID, tokenID), creating
	// it on first sight.
	EnsureOutcome(ctx context.Context, marketID int64, tokenID, name string) (model.Outcome, error)

	// AppendSnapshots persists validated snapshots and assigns IDs in place.
	// Snapshots violating the probability or volume invariants are rejected
	// as a whole batch, never partially persisted.
	AppendSnapshots(ctx context.Context, snaps []model.Snapshot) error

	// LatestSnapshots returns the most recent snapshot per outcome for a
	// market, keyed by outcome ID.
	LatestSnapshots(ctx context.Context, marketID int64) (map[int64]model.Snapshot, error)

	// SnapshotsInRange returns snapshots for a market within [from, to],
	// oldest first, at most limit rows (0 = no bound).
	SnapshotsInRange(ctx context.Context, marketID int64, from, to time.Time, limit int) ([]model.Snapshot, error)

	// AppendShift persists a shift record and assigns its ID.
	AppendShift(ctx context.Context, shift *model.Shift) error

	// ListShifts returns all shifts for a market ranked by volume impact
	// descending, ties broken by timestamp descending.
	ListShifts(ctx context.Context, marketID int64) ([]model.Shift, error)

	// CreateAlert inserts the alert unless another alert for the same
	// (market, outcome) exists with TS after the cutoff. The check and the
	// insert are atomic. Returns false when suppressed by the cooldown.
	CreateAlert(ctx context.Context, alert model.Alert, cutoff time.Time) (bool, error)

	// ListAlerts returns alerts newest first, filtered per opts.
	ListAlerts(ctx context.Context, opts ListAlertsOptions) ([]model.Alert, error)

	// Acknowledge transitions an alert to acknowledged. Acknowledging an
	// already-acknowledged alert is a no-op, not an error. Unknown IDs
	// return ErrNotFound.
	Acknowledge(ctx context.Context, id uuid.UUID) (model.Alert, error)
}

// DefaultAlertLimit bounds ListAlerts results when no limit is given.
const DefaultAlertLimit = 500
