// Package ingest fetches market state from the provider APIs and persists
// probability snapshots.
package ingest
