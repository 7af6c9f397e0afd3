// Package fanout broadcasts market updates to WebSocket subscribers. Updates
// flow from the scheduler through a growable queue into per-market subscriber
// sets; a subscriber that cannot keep up is dropped, never waited on.
package fanout
