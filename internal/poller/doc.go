// Package poller implements the archive backfill poller.
//
// The backfill poller:
//   - Fetches the channel's recent history over REST on a fixed interval
//   - Covers messages sent while the live connection was down
//   - Hands items to the archive with source="rest"; deterministic message
//     IDs make repeated items collapse into one row
package poller
