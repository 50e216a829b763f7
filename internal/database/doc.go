// Package database opens the pgx pool used by the archive sink.
//
// The archive target is a remote PostgreSQL or TimescaleDB instance; the
// listener keeps nothing locally.
package database
