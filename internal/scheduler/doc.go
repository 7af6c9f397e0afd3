// Package scheduler drives the ingestion and discovery cadences. Each cadence
// runs at most one tick at a time; a tick that overruns its interval causes
// the next one to be skipped, never queued.
package scheduler
