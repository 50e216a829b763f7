// Package writer implements the optional archive sink.
//
// ArchiveWriter drains relayed messages from the router's buffer and writes
// them in batches to a remote PostgreSQL/TimescaleDB table. Writes are
// append-only: the deterministic message ID is the primary key and replays
// of the same message (one history batch per reconnect) are absorbed by
// ON CONFLICT DO NOTHING.
package writer
