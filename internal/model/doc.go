// Package model defines shared data types used across the relay listener.
//
// Conventions:
//   - Dates: kept as the relay sent them (ISO 8601 string or numeric timestamp), rendered as text
//   - Local timestamps: time.Time in UTC
//   - IDs: uuid.UUID, deterministic per (channel, date, text)
package model
