package model

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestSnapshotValidate(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		snap    Snapshot
		wantErr bool
	}{
		{"valid mid-range", Snapshot{Prob: 0.47, Volume: 5000, TS: now}, false},
		{"valid zero prob", Snapshot{Prob: 0, Volume: 100, TS: now}, false},
		{"valid certain", Snapshot{Prob: 1, Volume: 0, TS: now}, false},
		{"prob above one", Snapshot{Prob: 1.01, Volume: 10, TS: now}, true},
		{"negative prob", Snapshot{Prob: -0.2, Volume: 10, TS: now}, true},
		{"NaN prob", Snapshot{Prob: math.NaN(), Volume: 10, TS: now}, true},
		{"negative volume", Snapshot{Prob: 0.5, Volume: -1, TS: now}, true},
		{"NaN volume", Snapshot{Prob: 0.5, Volume: math.NaN(), TS: now}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.snap.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidSnapshot) {
				t.Errorf("error %v is not ErrInvalidSnapshot", err)
			}
		})
	}
}

func TestAlertAcknowledged(t *testing.T) {
	a := Alert{Status: AlertActive}
	if a.Acknowledged() {
		t.Error("active alert reported acknowledged")
	}
	a.Status = AlertAcknowledged
	if !a.Acknowledged() {
		t.Error("acknowledged alert reported active")
	}
}

func TestNewUpdate(t *testing.T) {
	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	u := NewUpdate(42, ts, UpdateData{
		Outcomes: []OutcomeQuote{{TokenID: "tok-1", Name: "Yes", Prob: 0.47}},
	})

	if u.Type != "market_update" {
		t.Errorf("Type = %q, want market_update", u.Type)
	}
	if u.MarketID != 42 {
		t.Errorf("MarketID = %d, want 42", u.MarketID)
	}
	if !u.TS.Equal(ts) {
		t.Errorf("TS = %v, want %v", u.TS, ts)
	}
	if len(u.Data.Outcomes) != 1 {
		t.Errorf("Outcomes length = %d, want 1", len(u.Data.Outcomes))
	}
}
