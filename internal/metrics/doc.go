// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection attempts, opens, closes, errors and the current connection state
//   - Reconnects scheduled and history requests sent
//   - Inbound messages by kind and payload parse errors
//   - Archive writer inserts, conflicts and failed flushes
package metrics
