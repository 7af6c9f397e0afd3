package model

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

// -----------------------------------------------------------------------------
// Relational Types
// -----------------------------------------------------------------------------

// TrackedMarket is a market selected for tracking. Rows are owned by the
// external tracking layer; the core only reads them.
type TrackedMarket struct {
	ID        int64     // Primary key
	Slug      string    // Polymarket event slug (e.g., "us-election-2028")
	MarketID  string    // External market id from the provider
	Title     string    // Display title
	TagSlug   string    // Category tag the market was discovered under
	CreatedAt time.Time // When tracking started
}

// Outcome is a single outcome of a tracked market.
type Outcome struct {
	ID       int64  // Primary key
	MarketID int64  // Foreign key to TrackedMarket
	TokenID  string // External token id from the provider
	Name     string // Display name (e.g., "Yes")
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Snapshot is one timestamped (probability, volume) reading for an outcome.
// Snapshots are append-only and immutable once written; per (market, outcome)
// the sequence is strictly increasing in time.
type Snapshot struct {
	ID        int64
	MarketID  int64
	OutcomeID int64
	Prob      float64 // Normalized probability in [0, 1]
	Volume    float64 // Traded volume at reading time, >= 0
	Liquidity float64 // Available liquidity, 0 when the provider omits it
	TS        time.Time
}

// Validate reports whether the snapshot satisfies the storage invariants.
func (s Snapshot) Validate() error {
	if math.IsNaN(s.Prob) || s.Prob < 0 || s.Prob > 1 {
		return fmt.Errorf("%w: probability %v outside [0,1]", ErrInvalidSnapshot, s.Prob)
	}
	if math.IsNaN(s.Volume) || s.Volume < 0 {
		return fmt.Errorf("%w: negative volume %v", ErrInvalidSnapshot, s.Volume)
	}
	return nil
}

// ErrInvalidSnapshot marks a snapshot that violates the probability or volume
// invariants. Invalid snapshots are skipped, never persisted.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Shift is the detected change between two temporally adjacent snapshots of
// the same outcome. Exactly one Shift exists per adjacent pair, significant
// or not.
type Shift struct {
	ID        int64
	MarketID  int64
	OutcomeID int64
	TS        time.Time // Detection time (timestamp of the newer snapshot)
	PrevProb  float64
	NewProb   float64
	Delta     float64 // NewProb - PrevProb
	// DeltaPercent is Delta / PrevProb. When PrevProb == 0 the relative
	// measure is inapplicable and DeltaPercent is 0; only the absolute
	// threshold can mark such a shift significant.
	DeltaPercent float64
	Volume       float64 // Volume of the newer snapshot
	VolumeImpact float64 // |Delta| * Volume
	Significant  bool
}

// AlertStatus is the lifecycle state of an Alert.
type AlertStatus string

const (
	AlertActive       AlertStatus = "active"
	AlertAcknowledged AlertStatus = "acknowledged"
)

// Alert is an acknowledge-able projection of a significant Shift that cleared
// the cooldown gate. The only mutation is active -> acknowledged.
type Alert struct {
	ID           uuid.UUID
	MarketID     int64
	OutcomeID    int64
	ShiftID      int64
	PrevProb     float64
	NewProb      float64
	Delta        float64
	DeltaPercent float64
	Volume       float64
	VolumeImpact float64
	TS           time.Time
	Status       AlertStatus
}

// Acknowledged reports whether the alert has reached its terminal state.
func (a Alert) Acknowledged() bool {
	return a.Status == AlertAcknowledged
}
