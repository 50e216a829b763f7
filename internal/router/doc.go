// Package router classifies inbound relay payloads and logs them.
//
// Raw WebSocket frames are JSON documents of one of three shapes:
//   - {"oldMessages": [...]}: a history batch, sent in reply to getMessages
//   - {"text": ..., "date": ...}: a single new message
//   - anything else: logged unmodified as an unknown format
//
// socket.io payloads are told apart by event name instead (oldMessages,
// newMessage). Payloads that fail to parse are logged at error level and
// counted; they never affect the connection.
//
// When an archive buffer is attached, history items and new messages are
// forwarded to it as model.RelayMessage values.
package router
