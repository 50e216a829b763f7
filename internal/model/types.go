package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source records how a message reached the listener.
type Source string

const (
	SourceHistory Source = "history" // Part of an oldMessages batch
	SourceLive    Source = "live"    // Pushed as a single new message
)

// messageNamespace scopes deterministic message IDs.
var messageNamespace = uuid.MustParse("6f1c7a52-3d0e-4c8e-9a55-2b7f0e4d9c11")

// HistoryItem is one entry of a relay history batch or REST history response.
type HistoryItem struct {
	Text string          `json:"text"`
	Date json.RawMessage `json:"date"`
	From json.RawMessage `json:"from,omitempty"`
}

// RelayMessage is a text message relayed from a channel.
type RelayMessage struct {
	ID         uuid.UUID       // Deterministic, see MessageID
	Channel    string          // Channel the listener follows
	Text       string          // Message body
	Date       string          // Relay-side date, as text
	From       json.RawMessage // Sender as sent by the relay (may be empty)
	Source     Source          // history or live
	HandleID   string          // Connection handle that received it
	ReceivedAt time.Time       // Local receive time
}

// MessageID derives a stable ID so that the same relay message seen in several
// history batches (one per reconnect) collapses to a single ID.
func MessageID(channel, date, text string) uuid.UUID {
	return uuid.NewSHA1(messageNamespace, []byte(channel+"\x00"+date+"\x00"+text))
}

// NewRelayMessage builds a RelayMessage and assigns its ID.
func NewRelayMessage(channel, text string, date json.RawMessage, source Source) RelayMessage {
	d := DateString(date)
	return RelayMessage{
		ID:      MessageID(channel, d, text),
		Channel: channel,
		Text:    text,
		Date:    d,
		Source:  source,
	}
}

// DateString renders a raw JSON date as text: strings are unquoted, numbers
// are kept verbatim, null and empty values become "".
func DateString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s
		}
	}
	return strings.TrimSpace(string(raw))
}
