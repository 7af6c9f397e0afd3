package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/model"
)

// Memory is an in-process Store. Safe for concurrent use.
type Memory struct {
	mu sync.RWMutex

	markets  map[int64]model.TrackedMarket
	outcomes map[int64]model.Outcome
	// outcomeKeys maps (marketID, tokenID) to outcome ID.
	outcomeKeys map[string]int64
	snapshots   []model.Snapshot
	shifts      []model.Shift
	alerts      map[uuid.UUID]model.Alert

	nextMarketID   int64
	nextOutcomeID  int64
	nextSnapshotID int64
	nextShiftID    int64
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		markets:     make(map[int64]model.TrackedMarket),
		outcomes:    make(map[int64]model.Outcome),
		outcomeKeys: make(map[string]int64),
		alerts:      make(map[uuid.UUID]model.Alert),
	}
}

func outcomeKey(marketID int64, tokenID string) string {
	return fmt.Sprintf("%d/%s", marketID, tokenID)
}

// AddTrackedMarket registers a market for tracking. This stands in for the
// external tracking CRUD layer in tests and DB-less runs.
func (m *Memory) AddTrackedMarket(tm model.TrackedMarket) model.TrackedMarket {
	m.mu.Lock()
	defer m.mu.Unlock()

	if tm.ID == 0 {
		m.nextMarketID++
		tm.ID = m.nextMarketID
	} else if tm.ID > m.nextMarketID {
		m.nextMarketID = tm.ID
	}
	if tm.CreatedAt.IsZero() {
		tm.CreatedAt = time.Now().UTC()
	}
	m.markets[tm.ID] = tm
	return tm
}

// RemoveTrackedMarket drops a market from the tracked set. Snapshots, shifts
// and alerts already written stay in place (orphan policy is external).
func (m *Memory) RemoveTrackedMarket(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markets, id)
}

// ListTrackedMarkets implements Store.
func (m *Memory) ListTrackedMarkets(ctx context.Context) ([]model.TrackedMarket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]model.TrackedMarket, 0, len(m.markets))
	for _, tm := range m.markets {
		out = append(out, tm)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// EnsureOutcome implements Store.
func (m *Memory) EnsureOutcome(ctx context.Context, marketID int64, tokenID, name string) (model.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := outcomeKey(marketID, tokenID)
	if id, ok := m.outcomeKeys[key]; ok {
		return m.outcomes[id], nil
	}

	m.nextOutcomeID++
	o := model.Outcome{
		ID:       m.nextOutcomeID,
		MarketID: marketID,
		TokenID:  tokenID,
		Name:     name,
	}
	m.outcomes[o.ID] = o
	m.outcomeKeys[key] = o.ID
	return o, nil
}

// AppendSnapshots implements Store.
func (m *Memory) AppendSnapshots(ctx context.Context, snaps []model.Snapshot) error {
	for _, s := range snaps {
		if err := s.Validate(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Enforce strictly increasing TS per (market, outcome).
	latest := make(map[int64]time.Time)
	for _, s := range m.snapshots {
		if s.TS.After(latest[s.OutcomeID]) {
			latest[s.OutcomeID] = s.TS
		}
	}

	for i := range snaps {
		if last, ok := latest[snaps[i].OutcomeID]; ok && !snaps[i].TS.After(last) {
			return fmt.Errorf("%w: snapshot ts %v not after %v for outcome %d",
				model.ErrInvalidSnapshot, snaps[i].TS, last, snaps[i].OutcomeID)
		}
		latest[snaps[i].OutcomeID] = snaps[i].TS

		m.nextSnapshotID++
		snaps[i].ID = m.nextSnapshotID
		m.snapshots = append(m.snapshots, snaps[i])
	}
	return nil
}

// LatestSnapshots implements Store.
func (m *Memory) LatestSnapshots(ctx context.Context, marketID int64) (map[int64]model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[int64]model.Snapshot)
	for _, s := range m.snapshots {
		if s.MarketID != marketID {
			continue
		}
		if prev, ok := out[s.OutcomeID]; !ok || s.TS.After(prev.TS) {
			out[s.OutcomeID] = s
		}
	}
	return out, nil
}

// SnapshotsInRange implements Store.
func (m *Memory) SnapshotsInRange(ctx context.Context, marketID int64, from, to time.Time, limit int) ([]model.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Snapshot
	for _, s := range m.snapshots {
		if s.MarketID != marketID || s.TS.Before(from) || s.TS.After(to) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.Before(out[j].TS) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// AppendShift implements Store.
func (m *Memory) AppendShift(ctx context.Context, shift *model.Shift) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextShiftID++
	shift.ID = m.nextShiftID
	m.shifts = append(m.shifts, *shift)
	return nil
}

// ListShifts implements Store.
func (m *Memory) ListShifts(ctx context.Context, marketID int64) ([]model.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Shift
	for _, s := range m.shifts {
		if s.MarketID == marketID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].VolumeImpact != out[j].VolumeImpact {
			return out[i].VolumeImpact > out[j].VolumeImpact
		}
		return out[i].TS.After(out[j].TS)
	})
	return out, nil
}

// CreateAlert implements Store. Check and insert happen under one lock so two
// concurrent shifts inside the cooldown window cannot both pass the gate.
func (m *Memory) CreateAlert(ctx context.Context, alert model.Alert, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, a := range m.alerts {
		if a.MarketID == alert.MarketID && a.OutcomeID == alert.OutcomeID && !a.TS.Before(cutoff) {
			return false, nil
		}
	}

	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if alert.Status == "" {
		alert.Status = model.AlertActive
	}
	m.alerts[alert.ID] = alert
	return true, nil
}

// ListAlerts implements Store.
func (m *Memory) ListAlerts(ctx context.Context, opts ListAlertsOptions) ([]model.Alert, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Alert
	for _, a := range m.alerts {
		switch {
		case opts.Status != "":
			if a.Status != opts.Status {
				continue
			}
		case !opts.IncludeAll:
			if a.Status != model.AlertActive {
				continue
			}
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TS.After(out[j].TS) })

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultAlertLimit
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Acknowledge implements Store.
func (m *Memory) Acknowledge(ctx context.Context, id uuid.UUID) (model.Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.alerts[id]
	if !ok {
		return model.Alert{}, ErrNotFound
	}

	a.Status = model.AlertAcknowledged
	m.alerts[id] = a
	return a, nil
}
