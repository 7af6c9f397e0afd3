// Package database manages the PostgreSQL connection pool for the tracker.
package database
