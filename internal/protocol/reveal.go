package protocol

import (
	"encoding/json"
	"fmt"
)

// ---------------------------------------------------------------------------
// Reveal channel message types
// ---------------------------------------------------------------------------

// Client -> Server message types.
const (
	TypeWatch   = "watch"
	TypeUnwatch = "unwatch"
	TypePing    = "ping"
)

// Server -> Client message types.
const (
	TypeConnected  = "connected"
	TypeWatching   = "watching"
	TypeAssignment = "assignment"
	TypeError      = "error"
	TypePong       = "pong"
)

// Envelope holds the message type and the raw JSON payload for deferred
// parsing into a concrete struct.
type Envelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the raw bytes and extracts only the "type" field.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	e.Raw = make(json.RawMessage, len(data))
	copy(e.Raw, data)

	var partial struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &partial); err != nil {
		return fmt.Errorf("protocol: failed to unmarshal envelope: %w", err)
	}
	if partial.Type == "" {
		return fmt.Errorf("protocol: missing or empty \"type\" field")
	}
	e.Type = partial.Type
	return nil
}

// WatchMsg asks the server to deliver the assignment behind a reveal token.
// The token is the code mailed to the giver.
type WatchMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// UnwatchMsg stops delivery for the token currently watched.
type UnwatchMsg struct {
	Type string `json:"type"`
}

// PingMsg is a client keepalive.
type PingMsg struct {
	Type string `json:"type"`
}

// ConnectedMsg is sent once the WebSocket upgrade completes.
type ConnectedMsg struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
}

// WatchingMsg confirms a watch. Token is the canonical form of the token the
// client sent.
type WatchingMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// AssignmentMsg tells a giver who they draw. It carries the event metadata
// of the draw so the client can show it without another request.
type AssignmentMsg struct {
	Type         string `json:"type"`
	DrawID       string `json:"draw_id"`
	ReceiverName string `json:"receiver_name"`
	Budget       string `json:"budget,omitempty"`
	ExchangeDate string `json:"exchange_date,omitempty"`
	Message      string `json:"message,omitempty"`
	RevealedAt   int64  `json:"revealed_at"`
}

// ErrorMsg is sent by the server to communicate an error condition.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// PongMsg answers a client ping.
type PongMsg struct {
	Type string `json:"type"`
}

// ParseClientMessage parses raw WebSocket bytes into a typed client message.
// It returns the message type, the decoded struct and any error. Unknown and
// server-only types are errors.
func ParseClientMessage(data []byte) (string, interface{}, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", nil, fmt.Errorf("protocol: failed to parse message: %w", err)
	}

	var (
		msg interface{}
		err error
	)

	switch env.Type {
	case TypeWatch:
		var m WatchMsg
		err = json.Unmarshal(env.Raw, &m)
		if err == nil && m.Token == "" {
			err = fmt.Errorf("missing token")
		}
		msg = m
	case TypeUnwatch:
		var m UnwatchMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	case TypePing:
		var m PingMsg
		err = json.Unmarshal(env.Raw, &m)
		msg = m
	default:
		return env.Type, nil, fmt.Errorf("protocol: unknown client message type: %q", env.Type)
	}

	if err != nil {
		return env.Type, nil, fmt.Errorf("protocol: failed to decode %q payload: %w", env.Type, err)
	}
	return env.Type, msg, nil
}

// NewServerMessage marshals payload and sets its "type" field to msgType.
func NewServerMessage(msgType string, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal payload: %w", err)
	}

	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("protocol: failed to unmarshal payload into map: %w", err)
	}

	m["type"] = msgType

	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("protocol: failed to marshal server message: %w", err)
	}
	return out, nil
}
