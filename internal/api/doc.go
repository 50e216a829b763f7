// Package api is the client for the relay's REST surface.
//
// Endpoints:
//   - GET /api/get-messages?channel=<c>&time_interval_minutes=<n>
//     returns the channel's messages from the last n minutes as
//     [{"text": ..., "date": ...}]
package api
