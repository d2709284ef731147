// Package protocol defines the wire formats of the draw service: the JSON
// payloads of the HTTP draw endpoint and the WebSocket messages of the reveal
// channel. WebSocket messages share an envelope format with a "type"
// discriminator.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/secretsanta/giftdraw/internal/draw"
	"github.com/secretsanta/giftdraw/internal/notify"
)

// ID is a participant identifier as sent by clients. Browsers generate ids
// with Date.now() and send them as JSON numbers in the participant list but
// as strings in restrictions (select values), so both forms decode to the same
// string.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("protocol: invalid id: %w", err)
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("protocol: id must be a string or number, got %s", data)
	}
	*id = ID(canonicalNumber(n))
	return nil
}

// canonicalNumber spells integral numbers as plain decimal integers, so
// 1.7e12, 1700000000000.0 and "1700000000000" name the same participant.
// Other numbers keep their JSON spelling.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) <= maxExactInt {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

// maxExactInt is the largest integer a float64 holds exactly.
const maxExactInt = 1 << 53

// Participant is one entry of the participants list.
type Participant struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Restriction is one entry of the restrictions list.
type Restriction struct {
	Person1 ID `json:"person1"`
	Person2 ID `json:"person2"`
}

// DrawRequest is the body of POST /api/draw.
type DrawRequest struct {
	Participants []Participant `json:"participants"`
	Restrictions []Restriction `json:"restrictions"`
	Budget       string        `json:"budget"`
	ExchangeDate string        `json:"exchangeDate"`
	Message      string        `json:"message"`
}

// DrawInput converts the request into engine input. Names and emails are
// trimmed; nothing else is interpreted.
func (r *DrawRequest) DrawInput() ([]draw.Participant, []draw.Restriction) {
	participants := make([]draw.Participant, len(r.Participants))
	for i, p := range r.Participants {
		participants[i] = draw.Participant{
			ID:    string(p.ID),
			Name:  strings.TrimSpace(p.Name),
			Email: strings.TrimSpace(p.Email),
		}
	}

	restrictions := make([]draw.Restriction, len(r.Restrictions))
	for i, rs := range r.Restrictions {
		restrictions[i] = draw.Restriction{Person1: string(rs.Person1), Person2: string(rs.Person2)}
	}
	return participants, restrictions
}

// Event returns the pass-through event metadata for notifications.
func (r *DrawRequest) Event() notify.Event {
	return notify.Event{
		Budget:       strings.TrimSpace(r.Budget),
		ExchangeDate: strings.TrimSpace(r.ExchangeDate),
		Message:      strings.TrimSpace(r.Message),
	}
}

// DrawResponse is returned when the draw itself succeeded. Failed lists the
// givers whose notification could not be delivered.
type DrawResponse struct {
	Message  string   `json:"message"`
	DrawID   string   `json:"drawId"`
	Notified int      `json:"notified"`
	Failed   []string `json:"failed,omitempty"`
}

// DrawCompleted is published on draw.completed after every successful draw.
// It carries counts only, never assignments.
type DrawCompleted struct {
	DrawID       string   `json:"draw_id"`
	Participants int      `json:"participants"`
	Restrictions int      `json:"restrictions"`
	Attempts     int      `json:"attempts"`
	Notified     int      `json:"notified"`
	Failed       []string `json:"failed,omitempty"`
	CompletedAt  int64    `json:"completed_at"`
}

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest   = "invalid_request"
	CodeValidation       = "validation_failed"
	CodeContentBlocked   = "content_blocked"
	CodeTooStrict        = "restrictions_too_strict"
	CodeRateLimited      = "rate_limited"
	CodeClientBlocked    = "client_blocked"
	CodeDeliveryFailed   = "delivery_failed"
	CodeInternal         = "internal"
	CodeMethodNotAllowed = "method_not_allowed"
)

// ErrorResponse is the body of every non-2xx response. Delivery failures also
// carry the draw id and the givers that were not notified.
type ErrorResponse struct {
	Error  string   `json:"error"`
	Code   string   `json:"code"`
	DrawID string   `json:"drawId,omitempty"`
	Failed []string `json:"failed,omitempty"`
}
