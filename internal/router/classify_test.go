package router

import (
	"errors"
	"testing"

	"github.com/seedlabs/relay-listener/internal/connection"
)

func TestClassify_RawFrames(t *testing.T) {
	tests := []struct {
		name     string
		data     string
		wantKind Kind
		wantErr  bool
	}{
		{"history", `{"oldMessages":["a","b"]}`, KindHistory, false},
		{"empty history list", `{"oldMessages":[]}`, KindHistory, false},
		{"history wins over text", `{"oldMessages":[{"text":"x"}],"text":"hi","date":1}`, KindHistory, false},
		{"new message", `{"text":"hi","date":1234567890}`, KindNew, false},
		{"new message string date", `{"text":"hi","date":"2024-05-01T10:00:00"}`, KindNew, false},
		{"null history", `{"oldMessages":null}`, KindUnknown, false},
		{"missing date", `{"text":"hi"}`, KindUnknown, false},
		{"zero date", `{"text":"hi","date":0}`, KindUnknown, false},
		{"string zero date", `{"text":"hi","date":"0"}`, KindNew, false},
		{"empty text", `{"text":"","date":1}`, KindUnknown, false},
		{"other object", `{"foo":"bar"}`, KindUnknown, false},
		{"upper case text and date", `{"TEXT":"hi","DATE":1234567890}`, KindUnknown, false},
		{"title case history", `{"OldMessages":["a","b"]}`, KindUnknown, false},
		{"lower case history", `{"oldmessages":["a"]}`, KindUnknown, false},
		{"history beside lower case null", `{"oldMessages":["a"],"oldmessages":null}`, KindHistory, false},
		{"text beside upper case empty", `{"text":"hi","date":1,"Text":""}`, KindNew, false},
		{"duplicate key last wins", `{"oldMessages":null,"oldMessages":["a"]}`, KindHistory, false},
		{"array", `[1,2,3]`, KindUnknown, false},
		{"number", `42`, KindUnknown, false},
		{"invalid json", `not json`, "", true},
		{"truncated", `{"text":"hi"`, "", true},
		{"empty", ``, "", true},
		{"null", `null`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Classify(connection.Inbound{Data: []byte(tt.data)})
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got kind %q", msg.Kind)
				}
				return
			}
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", msg.Kind, tt.wantKind)
			}
			if string(msg.Payload) != tt.data {
				t.Errorf("Payload = %s, want unmodified %s", msg.Payload, tt.data)
			}
		})
	}
}

func TestClassify_NullIsParseError(t *testing.T) {
	_, err := Classify(connection.Inbound{Data: []byte("null")})
	if !errors.Is(err, ErrNullPayload) {
		t.Errorf("err = %v, want ErrNullPayload", err)
	}
}

func TestClassify_NewMessageFields(t *testing.T) {
	msg, err := Classify(connection.Inbound{Data: []byte(`{"text":"hi","date":1234567890,"from":{"id":7}}`)})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if msg.Text != "hi" {
		t.Errorf("Text = %q, want hi", msg.Text)
	}
	if string(msg.Date) != "1234567890" {
		t.Errorf("Date = %s, want 1234567890", msg.Date)
	}
	if string(msg.From) != `{"id":7}` {
		t.Errorf("From = %s", msg.From)
	}
}

func TestClassify_SocketIOEvents(t *testing.T) {
	tests := []struct {
		name        string
		event       string
		data        string
		wantKind    Kind
		wantHistory string
		wantText    string
	}{
		{"history list", EventOldMessages, `[{"text":"a","date":1}]`, KindHistory, `[{"text":"a","date":1}]`, ""},
		{"history single", EventOldMessages, `{"text":"a","date":1}`, KindHistory, `[{"text":"a","date":1}]`, ""},
		{"new message", EventNewMessage, `{"text":"b","date":2}`, KindNew, "", "b"},
		{"new message odd payload", EventNewMessage, `"just text"`, KindNew, "", ""},
		{"new message upper case keys", EventNewMessage, `{"TEXT":"b","DATE":2}`, KindNew, "", ""},
		{"other event", "typing", `{"user":"x"}`, KindUnknown, "", ""},
		{"no args", "ping", `null`, KindUnknown, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := Classify(connection.Inbound{Name: tt.event, Data: []byte(tt.data)})
			if err != nil {
				t.Fatalf("Classify failed: %v", err)
			}
			if msg.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", msg.Kind, tt.wantKind)
			}
			if msg.Event != tt.event {
				t.Errorf("Event = %q, want %q", msg.Event, tt.event)
			}
			if string(msg.History) != tt.wantHistory {
				t.Errorf("History = %s, want %s", msg.History, tt.wantHistory)
			}
			if msg.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", msg.Text, tt.wantText)
			}
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := map[string]bool{
		``:        false,
		`null`:    false,
		`false`:   false,
		`0`:       false,
		`0.0`:     false,
		`""`:      false,
		`[]`:      true,
		`{}`:      true,
		`"0"`:     true,
		`1`:       true,
		`true`:    true,
		`"hello"`: true,
	}

	for in, want := range tests {
		if got := truthy([]byte(in)); got != want {
			t.Errorf("truthy(%q) = %v, want %v", in, got, want)
		}
	}
}
