package router

import (
	"encoding/json"
	"errors"
)

// ErrNullPayload is returned for a payload that decodes to JSON null.
var ErrNullPayload = errors.New("payload is null")

// Kind is the classification of an inbound payload.
type Kind string

const (
	KindHistory Kind = "history"
	KindNew     Kind = "new"
	KindUnknown Kind = "unknown"
)

// socket.io event names the relay emits.
const (
	EventOldMessages = "oldMessages"
	EventNewMessage  = "newMessage"
)

// Message is a classified inbound payload.
type Message struct {
	Kind  Kind
	Event string // socket.io event name; empty for raw frames

	// History: the oldMessages value as received
	History json.RawMessage

	// New: text and date as received
	Text string
	Date json.RawMessage
	From json.RawMessage

	Payload json.RawMessage // Whole payload, unmodified
}

// Config holds configuration for the Message Router.
type Config struct {
	Channel string // Stamped on archived messages
}

// Stats contains runtime statistics.
type Stats struct {
	MessagesReceived int64
	HistoryBatches   int64
	NewMessages      int64
	UnknownMessages  int64
	ParseErrors      int64
	Archived         int64
	ArchiveDropped   int64
}

// rawEnvelope holds the known fields of a relay object, looked up by exact
// key. See decodeEnvelope.
type rawEnvelope struct {
	OldMessages json.RawMessage
	Text        json.RawMessage
	Date        json.RawMessage
	From        json.RawMessage
}
