// Package tracked caches the set of markets under observation. The set is
// owned by an external tracking layer; the registry reloads it on the
// discovery cadence so mid-cycle changes never disturb a tick in flight.
package tracked
