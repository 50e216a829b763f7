package writer

import (
	"context"
	"fmt"
)

// TableName is the archive table.
const TableName = "relay_messages"

const createTableSQL = `
CREATE TABLE IF NOT EXISTS relay_messages (
	message_id  UUID PRIMARY KEY,
	channel     TEXT NOT NULL,
	text        TEXT NOT NULL,
	date        TEXT NOT NULL,
	sender      JSONB,
	source      TEXT NOT NULL,
	handle_id   TEXT NOT NULL,
	received_at TIMESTAMPTZ NOT NULL
)`

const createIndexSQL = `
CREATE INDEX IF NOT EXISTS relay_messages_channel_received_idx
	ON relay_messages (channel, received_at DESC)`

const insertSQL = `
INSERT INTO relay_messages (message_id, channel, text, date, sender, source, handle_id, received_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (message_id) DO NOTHING`

// EnsureSchema creates the archive table and its index if missing.
func EnsureSchema(ctx context.Context, db DB) error {
	for _, stmt := range []string{createTableSQL, createIndexSQL} {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure %s schema: %w", TableName, err)
		}
	}
	return nil
}
