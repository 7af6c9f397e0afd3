// Package model defines shared data types used across the tracker.
//
// Conventions:
//   - Probabilities: float64 in [0, 1]
//   - Volumes: float64 in source units, never negative
//   - Timestamps: time.Time in UTC
//   - IDs: int64 for rows owned by the tracking layer, uuid.UUID for alerts
package model
