package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/polytrack/polytrack/internal/model"
)

func TestMemory_AppendSnapshots_RejectsInvalid(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	err := m.AppendSnapshots(ctx, []model.Snapshot{
		{MarketID: 1, OutcomeID: 1, Prob: 1.2, Volume: 10, TS: time.Now()},
	})
	if !errors.Is(err, model.ErrInvalidSnapshot) {
		t.Fatalf("error = %v, want ErrInvalidSnapshot", err)
	}

	latest, _ := m.LatestSnapshots(ctx, 1)
	if len(latest) != 0 {
		t.Errorf("invalid snapshot was persisted: %v", latest)
	}
}

func TestMemory_AppendSnapshots_EnforcesMonotonicTS(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	ts := time.Now()

	if err := m.AppendSnapshots(ctx, []model.Snapshot{
		{MarketID: 1, OutcomeID: 1, Prob: 0.5, Volume: 10, TS: ts},
	}); err != nil {
		t.Fatalf("first append: %v", err)
	}

	err := m.AppendSnapshots(ctx, []model.Snapshot{
		{MarketID: 1, OutcomeID: 1, Prob: 0.6, Volume: 10, TS: ts},
	})
	if err == nil {
		t.Error("append with non-increasing TS succeeded")
	}
}

func TestMemory_LatestSnapshots_PerOutcome(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	snaps := []model.Snapshot{
		{MarketID: 1, OutcomeID: 1, Prob: 0.40, Volume: 100, TS: base},
		{MarketID: 1, OutcomeID: 2, Prob: 0.60, Volume: 100, TS: base},
		{MarketID: 1, OutcomeID: 1, Prob: 0.47, Volume: 200, TS: base.Add(5 * time.Minute)},
		{MarketID: 2, OutcomeID: 3, Prob: 0.10, Volume: 50, TS: base},
	}
	if err := m.AppendSnapshots(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	latest, err := m.LatestSnapshots(ctx, 1)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if len(latest) != 2 {
		t.Fatalf("latest length = %d, want 2", len(latest))
	}
	if latest[1].Prob != 0.47 {
		t.Errorf("latest prob for outcome 1 = %v, want 0.47", latest[1].Prob)
	}
	if latest[2].Prob != 0.60 {
		t.Errorf("latest prob for outcome 2 = %v, want 0.60", latest[2].Prob)
	}
}

func TestMemory_SnapshotsInRange(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	var snaps []model.Snapshot
	for i := 0; i < 5; i++ {
		snaps = append(snaps, model.Snapshot{
			MarketID: 1, OutcomeID: 1, Prob: 0.5, Volume: 10,
			TS: base.Add(time.Duration(i) * time.Hour),
		})
	}
	if err := m.AppendSnapshots(ctx, snaps); err != nil {
		t.Fatalf("append: %v", err)
	}

	got, err := m.SnapshotsInRange(ctx, 1, base.Add(time.Hour), base.Add(3*time.Hour), 0)
	if err != nil {
		t.Fatalf("range: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("range length = %d, want 3", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i].TS.Before(got[i-1].TS) {
			t.Error("range results not oldest-first")
		}
	}

	limited, _ := m.SnapshotsInRange(ctx, 1, base, base.Add(4*time.Hour), 2)
	if len(limited) != 2 {
		t.Errorf("limited length = %d, want 2", len(limited))
	}
}

func TestMemory_ListShifts_RankedByVolumeImpact(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()

	shifts := []model.Shift{
		{MarketID: 1, OutcomeID: 1, VolumeImpact: 100, TS: now.Add(-time.Minute)},
		{MarketID: 1, OutcomeID: 2, VolumeImpact: 350, TS: now.Add(-2 * time.Minute)},
		{MarketID: 1, OutcomeID: 3, VolumeImpact: 100, TS: now},
		{MarketID: 2, OutcomeID: 4, VolumeImpact: 999, TS: now},
	}
	for i := range shifts {
		if err := m.AppendShift(ctx, &shifts[i]); err != nil {
			t.Fatalf("append shift: %v", err)
		}
		if shifts[i].ID == 0 {
			t.Error("AppendShift did not assign an ID")
		}
	}

	got, err := m.ListShifts(ctx, 1)
	if err != nil {
		t.Fatalf("list shifts: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("shifts length = %d, want 3", len(got))
	}
	if got[0].VolumeImpact != 350 {
		t.Errorf("first impact = %v, want 350", got[0].VolumeImpact)
	}
	// Tie on impact broken by newer timestamp first.
	if got[1].OutcomeID != 3 || got[2].OutcomeID != 1 {
		t.Errorf("tie order = %d,%d, want 3,1", got[1].OutcomeID, got[2].OutcomeID)
	}
}

func TestMemory_CreateAlert_CooldownGate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()
	cooldown := 15 * time.Minute

	first := model.Alert{MarketID: 1, OutcomeID: 1, TS: now}
	created, err := m.CreateAlert(ctx, first, now.Add(-cooldown))
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if !created {
		t.Fatal("first alert suppressed")
	}

	// Second significant shift five minutes later, still inside the window.
	later := now.Add(5 * time.Minute)
	second := model.Alert{MarketID: 1, OutcomeID: 1, TS: later}
	created, err = m.CreateAlert(ctx, second, later.Add(-cooldown))
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Error("second alert inside cooldown was not suppressed")
	}

	// After the window passes, alerts flow again.
	after := now.Add(16 * time.Minute)
	third := model.Alert{MarketID: 1, OutcomeID: 1, TS: after}
	created, err = m.CreateAlert(ctx, third, after.Add(-cooldown))
	if err != nil {
		t.Fatalf("third create: %v", err)
	}
	if !created {
		t.Error("alert after cooldown expiry was suppressed")
	}

	// A different outcome is not affected by the gate.
	other := model.Alert{MarketID: 1, OutcomeID: 2, TS: later}
	created, _ = m.CreateAlert(ctx, other, later.Add(-cooldown))
	if !created {
		t.Error("alert for unrelated outcome was suppressed")
	}
}

func TestMemory_CreateAlert_ConcurrentGate(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-15 * time.Minute)

	var wg sync.WaitGroup
	results := make(chan bool, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			created, err := m.CreateAlert(ctx, model.Alert{MarketID: 1, OutcomeID: 1, TS: now}, cutoff)
			if err != nil {
				t.Errorf("create: %v", err)
				return
			}
			results <- created
		}()
	}
	wg.Wait()
	close(results)

	var createdCount int
	for created := range results {
		if created {
			createdCount++
		}
	}
	if createdCount != 1 {
		t.Errorf("concurrent creates passed the gate %d times, want 1", createdCount)
	}
}

func TestMemory_ListAlerts_DefaultActiveOnly(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	now := time.Now()
	cutoff := now.Add(-time.Hour)

	active := model.Alert{ID: uuid.New(), MarketID: 1, OutcomeID: 1, TS: now}
	acked := model.Alert{ID: uuid.New(), MarketID: 1, OutcomeID: 2, TS: now.Add(-time.Minute)}

	if _, err := m.CreateAlert(ctx, active, cutoff); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateAlert(ctx, acked, cutoff); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Acknowledge(ctx, acked.ID); err != nil {
		t.Fatal(err)
	}

	got, err := m.ListAlerts(ctx, ListAlertsOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].ID != active.ID {
		t.Errorf("default listing = %v, want only the active alert", got)
	}

	all, _ := m.ListAlerts(ctx, ListAlertsOptions{IncludeAll: true})
	if len(all) != 2 {
		t.Errorf("IncludeAll length = %d, want 2", len(all))
	}
	if !all[0].TS.After(all[1].TS) {
		t.Error("alerts not newest-first")
	}

	ackedOnly, _ := m.ListAlerts(ctx, ListAlertsOptions{Status: model.AlertAcknowledged})
	if len(ackedOnly) != 1 || ackedOnly[0].ID != acked.ID {
		t.Errorf("status filter = %v, want only the acknowledged alert", ackedOnly)
	}
}

func TestMemory_Acknowledge_Idempotent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	alert := model.Alert{ID: uuid.New(), MarketID: 1, OutcomeID: 1, TS: time.Now()}
	if _, err := m.CreateAlert(ctx, alert, time.Now().Add(-time.Hour)); err != nil {
		t.Fatal(err)
	}

	first, err := m.Acknowledge(ctx, alert.ID)
	if err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if first.Status != model.AlertAcknowledged {
		t.Errorf("status = %v, want acknowledged", first.Status)
	}

	second, err := m.Acknowledge(ctx, alert.ID)
	if err != nil {
		t.Fatalf("second ack should be a no-op, got %v", err)
	}
	if second.Status != model.AlertAcknowledged {
		t.Errorf("status after double ack = %v, want acknowledged", second.Status)
	}
}

func TestMemory_Acknowledge_UnknownID(t *testing.T) {
	m := NewMemory()

	_, err := m.Acknowledge(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestMemory_EnsureOutcome(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	first, err := m.EnsureOutcome(ctx, 1, "tok-yes", "Yes")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.ID == 0 {
		t.Error("outcome has no ID")
	}

	again, err := m.EnsureOutcome(ctx, 1, "tok-yes", "Yes")
	if err != nil {
		t.Fatalf("ensure again: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("repeated ensure returned ID %d, want %d", again.ID, first.ID)
	}

	other, _ := m.EnsureOutcome(ctx, 2, "tok-yes", "Yes")
	if other.ID == first.ID {
		t.Error("same token on another market shared an outcome row")
	}
}

func TestMemory_TrackedMarkets(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	a := m.AddTrackedMarket(model.TrackedMarket{Slug: "a", Title: "A"})
	b := m.AddTrackedMarket(model.TrackedMarket{Slug: "b", Title: "B"})

	markets, err := m.ListTrackedMarkets(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(markets) != 2 {
		t.Fatalf("markets length = %d, want 2", len(markets))
	}
	if markets[0].ID != a.ID || markets[1].ID != b.ID {
		t.Error("markets not ordered by ID")
	}

	m.RemoveTrackedMarket(a.ID)
	markets, _ = m.ListTrackedMarkets(ctx)
	if len(markets) != 1 || markets[0].ID != b.ID {
		t.Errorf("after removal markets = %v, want only b", markets)
	}
}
