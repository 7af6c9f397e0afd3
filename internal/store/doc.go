// Package store persists snapshots, shifts and alerts.
//
// Two implementations are provided: Postgres (pgx connection pool, batched
// inserts) and Memory (mutex-guarded maps, used by tests and DB-less runs).
// The alert cooldown gate is an atomic check-and-create in both: a single
// INSERT ... WHERE NOT EXISTS statement in Postgres, a critical section in
// Memory.
package store
