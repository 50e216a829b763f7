// Package connection implements the Connection Lifecycle Manager.
//
// The manager:
//   - Owns exactly one connection handle to the relay at a time
//   - Sends one fetch-history request each time a handle opens
//   - Passes every inbound payload to a MessageHandler
//   - Closes the handle on any transport error
//   - Schedules one delayed reconnect per close, governed by a retry policy
//
// Two transports share the Handle abstraction: raw WebSocket frames and
// socket.io (Engine.IO v4) over WebSocket.
package connection
