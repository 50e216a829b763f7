package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/seedlabs/relay-listener/internal/connection"
	"github.com/seedlabs/relay-listener/internal/model"
)

// Classify interprets an inbound payload. Raw frames are classified by
// shape, socket.io events by name. Only raw frames can fail: invalid JSON
// and a bare null are parse errors.
func Classify(in connection.Inbound) (Message, error) {
	if in.Name != "" {
		return classifyEvent(in.Name, in.Data), nil
	}
	return classifyFrame(in.Data)
}

func classifyFrame(data []byte) (Message, error) {
	data = bytes.TrimSpace(data)
	if !json.Valid(data) {
		return Message{}, fmt.Errorf("invalid json")
	}
	if bytes.Equal(data, []byte("null")) {
		return Message{}, ErrNullPayload
	}

	msg := Message{Kind: KindUnknown, Payload: json.RawMessage(data)}

	// Arrays, strings and numbers carry none of the known fields.
	if data[0] != '{' {
		return msg, nil
	}

	env, err := decodeEnvelope(data)
	if err != nil {
		return Message{}, fmt.Errorf("decode envelope: %w", err)
	}

	switch {
	case truthy(env.OldMessages):
		msg.Kind = KindHistory
		msg.History = env.OldMessages
	case truthy(env.Text) && truthy(env.Date):
		msg.Kind = KindNew
		msg.Text = model.DateString(env.Text)
		msg.Date = env.Date
		msg.From = env.From
	}

	return msg, nil
}

func classifyEvent(name string, data []byte) Message {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		data = []byte("null")
	}
	msg := Message{Kind: KindUnknown, Event: name, Payload: json.RawMessage(data)}

	switch name {
	case EventOldMessages:
		msg.Kind = KindHistory
		if data[0] == '[' {
			msg.History = msg.Payload
		} else {
			msg.History = json.RawMessage("[" + string(data) + "]")
		}

	case EventNewMessage:
		msg.Kind = KindNew
		if data[0] != '{' {
			break
		}
		if env, err := decodeEnvelope(data); err == nil {
			msg.Text = model.DateString(env.Text)
			msg.Date = env.Date
			msg.From = env.From
		}
	}

	return msg
}

// decodeEnvelope reads oldMessages, text, date and from by exact,
// case-sensitive key. Struct decoding would also match "TEXT" or
// "OldMessages", which the relay clients treat as unrelated fields.
func decodeEnvelope(data []byte) (rawEnvelope, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return rawEnvelope{}, err
	}
	return rawEnvelope{
		OldMessages: fields["oldMessages"],
		Text:        fields["text"],
		Date:        fields["date"],
		From:        fields["from"],
	}, nil
}

// truthy reports whether a JSON value is present and would not be falsy in
// the relay's JavaScript clients: null, false, 0 and "" are falsy.
func truthy(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	switch string(raw) {
	case "", "null", "false", `""`:
		return false
	}
	if f, err := strconv.ParseFloat(string(raw), 64); err == nil {
		return f != 0
	}
	return true
}
