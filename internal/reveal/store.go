// Package reveal keeps each giver's assignment available for the live reveal
// channel. Assignments are stored in Redis so a participant who opens the page
// after the draw still sees theirs, and published on NATS so participants
// already watching see it immediately. Both are keyed by the random reveal
// token mailed to the giver, never by the participant id.
//
//	Key:   reveal:<reveal_token>
//	Value: hash of the Reveal fields
//	TTL:   30 days
package reveal

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/secretsanta/giftdraw/internal/protocol"
)

const (
	// RevealPrefix is the Redis key prefix for stored reveals.
	RevealPrefix = "reveal:"

	// RevealTTL is how long a reveal stays available after the draw.
	RevealTTL = 30 * 24 * time.Hour
)

// Reveal is the stored assignment of one giver.
type Reveal struct {
	Token        string `redis:"token"`
	DrawID       string `redis:"draw_id"`
	ReceiverName string `redis:"receiver_name"`
	Budget       string `redis:"budget"`
	ExchangeDate string `redis:"exchange_date"`
	Message      string `redis:"message"`
	RevealedAt   int64  `redis:"revealed_at"` // unix timestamp
}

// Encode renders the reveal as an "assignment" server message.
func (r *Reveal) Encode() ([]byte, error) {
	return protocol.NewServerMessage(protocol.TypeAssignment, protocol.AssignmentMsg{
		DrawID:       r.DrawID,
		ReceiverName: r.ReceiverName,
		Budget:       r.Budget,
		ExchangeDate: r.ExchangeDate,
		Message:      r.Message,
		RevealedAt:   r.RevealedAt,
	})
}

// Store manages reveals in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a reveal store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Save stores r under its token and resets the TTL.
func (s *Store) Save(ctx context.Context, r *Reveal) error {
	if r.Token == "" {
		return fmt.Errorf("reveal: token is required")
	}
	key := RevealPrefix + r.Token

	fields := map[string]interface{}{
		"token":         r.Token,
		"draw_id":       r.DrawID,
		"receiver_name": r.ReceiverName,
		"budget":        r.Budget,
		"exchange_date": r.ExchangeDate,
		"message":       r.Message,
		"revealed_at":   r.RevealedAt,
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, RevealTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("reveal: save draw %s: %w", r.DrawID, err)
	}
	return nil
}

// Get retrieves the reveal stored under token. Returns nil if none is stored.
func (s *Store) Get(ctx context.Context, token string) (*Reveal, error) {
	var r Reveal
	if err := s.client.HGetAll(ctx, RevealPrefix+token).Scan(&r); err != nil {
		return nil, fmt.Errorf("reveal: get: %w", err)
	}
	if r.Token == "" {
		return nil, nil // not found
	}
	return &r, nil
}

// Delete removes the reveal stored under token.
func (s *Store) Delete(ctx context.Context, token string) error {
	return s.client.Del(ctx, RevealPrefix+token).Err()
}
