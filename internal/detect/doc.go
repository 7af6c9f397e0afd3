// Package detect compares consecutive probability snapshots, records shifts,
// and raises cooldown-gated alerts for the significant ones.
package detect
