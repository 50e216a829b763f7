// Package socketio encodes and decodes the Engine.IO v4 / Socket.IO v5 text framing
// used when talking socket.io over a plain WebSocket.
//
// Every WebSocket text frame is one Engine.IO packet: a single type digit followed by
// its payload. Engine.IO "message" packets carry one Socket.IO packet:
//
//	<type>[<namespace>,][<ack id>][<json data>]
//
// Binary attachments are not supported.
package socketio
