package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/secretsanta/giftdraw/internal/messaging"
)

// Requester is the request/reply half of the NATS client.
type Requester interface {
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
}

// RelayReply is the mailer service's answer to a relayed notification.
type RelayReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Relay is a Sender that hands notifications to the mailer service over NATS
// and waits for its acknowledgement.
type Relay struct {
	nats    Requester
	timeout time.Duration
}

// NewRelay creates a Relay. timeout bounds the wait for each reply.
func NewRelay(nats Requester, timeout time.Duration) *Relay {
	return &Relay{nats: nats, timeout: timeout}
}

// Send implements Sender.
func (r *Relay) Send(ctx context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("notify: marshal notification: %w", err)
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	resp, err := r.nats.Request(ctx, messaging.SubjectNotifyEmail, data)
	if err != nil {
		return fmt.Errorf("notify: relay request: %w", err)
	}

	var reply RelayReply
	if err := json.Unmarshal(resp, &reply); err != nil {
		return fmt.Errorf("notify: relay reply: %w", err)
	}
	if !reply.OK {
		return errors.New("notify: mailer: " + reply.Error)
	}
	return nil
}

// HandleRelay decodes a relayed notification, delivers it with sender and
// returns the encoded reply. It is the mailer service's side of Relay.
func HandleRelay(ctx context.Context, sender Sender, data []byte) []byte {
	var reply RelayReply

	var n Notification
	if err := json.Unmarshal(data, &n); err != nil {
		reply.Error = "invalid notification: " + err.Error()
	} else if err := sender.Send(ctx, n); err != nil {
		reply.Error = err.Error()
	} else {
		reply.OK = true
	}

	out, _ := json.Marshal(reply)
	return out
}
