package socketio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// Errors
var (
	ErrEmptyPacket       = errors.New("empty packet")
	ErrUnknownPacketType = errors.New("unknown packet type")
	ErrBinaryUnsupported = errors.New("binary packets not supported")
	ErrNotEvent          = errors.New("packet is not an event")
)

// EngineType is an Engine.IO packet type.
type EngineType byte

const (
	EngineOpen    EngineType = '0'
	EngineClose   EngineType = '1'
	EnginePing    EngineType = '2'
	EnginePong    EngineType = '3'
	EngineMessage EngineType = '4'
	EngineUpgrade EngineType = '5'
	EngineNoop    EngineType = '6'
)

// PacketType is a Socket.IO packet type.
type PacketType byte

const (
	PacketConnect      PacketType = '0'
	PacketDisconnect   PacketType = '1'
	PacketEvent        PacketType = '2'
	PacketAck          PacketType = '3'
	PacketConnectError PacketType = '4'
	PacketBinaryEvent  PacketType = '5'
	PacketBinaryAck    PacketType = '6'
)

// DefaultNamespace is the root namespace.
const DefaultNamespace = "/"

// OpenPayload is the JSON body of the Engine.IO open packet.
type OpenPayload struct {
	SID          string   `json:"sid"`
	Upgrades     []string `json:"upgrades"`
	PingInterval int      `json:"pingInterval"` // Milliseconds
	PingTimeout  int      `json:"pingTimeout"`  // Milliseconds
	MaxPayload   int      `json:"maxPayload"`
}

// Deadline returns how long to wait for the next server ping before the
// session is considered dead.
func (o OpenPayload) Deadline() time.Duration {
	return time.Duration(o.PingInterval+o.PingTimeout) * time.Millisecond
}

// Packet is a decoded Socket.IO packet.
type Packet struct {
	Type      PacketType
	Namespace string
	AckID     int // -1 when absent
	Data      json.RawMessage
}

// ConnectErrorPayload is the body of a CONNECT_ERROR packet.
type ConnectErrorPayload struct {
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// DecodeEngine splits a frame into its Engine.IO type and payload.
func DecodeEngine(frame []byte) (EngineType, []byte, error) {
	if len(frame) == 0 {
		return 0, nil, ErrEmptyPacket
	}
	t := EngineType(frame[0])
	if t < EngineOpen || t > EngineNoop {
		return 0, nil, fmt.Errorf("%w: engine %q", ErrUnknownPacketType, frame[0])
	}
	return t, frame[1:], nil
}

// DecodeOpen parses the payload of an Engine.IO open packet.
func DecodeOpen(payload []byte) (OpenPayload, error) {
	var open OpenPayload
	if err := json.Unmarshal(payload, &open); err != nil {
		return OpenPayload{}, fmt.Errorf("decode open payload: %w", err)
	}
	return open, nil
}

// DecodePacket parses the payload of an Engine.IO message packet.
func DecodePacket(payload []byte) (Packet, error) {
	if len(payload) == 0 {
		return Packet{}, ErrEmptyPacket
	}

	p := Packet{
		Type:      PacketType(payload[0]),
		Namespace: DefaultNamespace,
		AckID:     -1,
	}
	switch p.Type {
	case PacketConnect, PacketDisconnect, PacketEvent, PacketAck, PacketConnectError:
	case PacketBinaryEvent, PacketBinaryAck:
		return Packet{}, ErrBinaryUnsupported
	default:
		return Packet{}, fmt.Errorf("%w: socket.io %q", ErrUnknownPacketType, payload[0])
	}

	rest := payload[1:]

	// Namespace: "/name," prefix
	if len(rest) > 0 && rest[0] == '/' {
		i := bytes.IndexByte(rest, ',')
		if i < 0 {
			p.Namespace = string(rest)
			return p, nil
		}
		p.Namespace = string(rest[:i])
		rest = rest[i+1:]
	}

	// Ack ID: leading digits
	n := 0
	for n < len(rest) && rest[n] >= '0' && rest[n] <= '9' {
		n++
	}
	if n > 0 {
		id, err := strconv.Atoi(string(rest[:n]))
		if err != nil {
			return Packet{}, fmt.Errorf("decode ack id: %w", err)
		}
		p.AckID = id
		rest = rest[n:]
	}

	if len(rest) > 0 {
		if !json.Valid(rest) {
			return Packet{}, fmt.Errorf("decode packet data: invalid json")
		}
		p.Data = json.RawMessage(rest)
	}

	return p, nil
}

// Event splits an EVENT packet into its name and arguments.
func (p Packet) Event() (string, []json.RawMessage, error) {
	if p.Type != PacketEvent {
		return "", nil, ErrNotEvent
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(p.Data, &parts); err != nil {
		return "", nil, fmt.Errorf("decode event: %w", err)
	}
	if len(parts) == 0 {
		return "", nil, fmt.Errorf("decode event: missing name")
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return "", nil, fmt.Errorf("decode event name: %w", err)
	}
	return name, parts[1:], nil
}

// EncodeConnect builds the frame that joins a namespace, with optional auth payload.
func EncodeConnect(namespace string, auth any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(byte(EngineMessage))
	buf.WriteByte(byte(PacketConnect))
	writeNamespace(&buf, namespace)
	if auth != nil {
		data, err := json.Marshal(auth)
		if err != nil {
			return nil, fmt.Errorf("encode connect auth: %w", err)
		}
		buf.Write(data)
	}
	return buf.Bytes(), nil
}

// EncodeEvent builds the frame that emits an event with arguments.
func EncodeEvent(namespace, name string, args ...any) ([]byte, error) {
	parts := make([]any, 0, len(args)+1)
	parts = append(parts, name)
	parts = append(parts, args...)

	data, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", name, err)
	}

	var buf bytes.Buffer
	buf.WriteByte(byte(EngineMessage))
	buf.WriteByte(byte(PacketEvent))
	writeNamespace(&buf, namespace)
	buf.Write(data)
	return buf.Bytes(), nil
}

// EncodePong builds the reply to a server ping.
func EncodePong(payload []byte) []byte {
	return append([]byte{byte(EnginePong)}, payload...)
}

// writeNamespace writes "/ns," for non-root namespaces.
func writeNamespace(buf *bytes.Buffer, namespace string) {
	if namespace == "" || namespace == DefaultNamespace {
		return
	}
	buf.WriteString(namespace)
	buf.WriteByte(',')
}
