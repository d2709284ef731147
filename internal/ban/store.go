// Package ban blocks clients that keep submitting content the screening
// rejects. Every rejected submission is an offense; from the second offense
// within a day the client is blocked for an escalating duration.
//
//	Key:   block:<client_ip>     Value: <reason>   TTL: block duration
//	Key:   offenses:<client_ip>  Value: <count>    TTL: 24h from first offense
package ban

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// BlockPrefix is the Redis key prefix for block records.
	BlockPrefix = "block:"

	// OffensesPrefix is the Redis key prefix for offense counters.
	OffensesPrefix = "offenses:"

	// Escalating block durations.
	Block15Min  = 15 * time.Minute // 2nd offense
	Block1Hour  = 1 * time.Hour    // 3rd offense
	Block24Hour = 24 * time.Hour   // 4th+ offense

	// OffensesTTL is how long the offense counter lives in Redis. After 24h
	// without new offenses the counter resets to zero.
	OffensesTTL = 24 * time.Hour

	// BlockThreshold is the offense count at which blocking starts. The first
	// offense only counts.
	BlockThreshold = 2
)

// Block describes an active block.
type Block struct {
	Reason    string
	Remaining time.Duration
}

// Store manages client blocks in Redis.
type Store struct {
	client *redis.Client
}

// NewStore creates a new block store using the provided Redis client.
func NewStore(client *redis.Client) *Store {
	return &Store{client: client}
}

// Check returns the active block of a client, or nil if it is not blocked.
// Redis errors are returned so callers can decide how to handle them (the
// gateway fails open).
func (s *Store) Check(ctx context.Context, clientIP string) (*Block, error) {
	key := BlockPrefix + clientIP

	reason, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ban: check: %w", err)
	}

	b := &Block{Reason: reason}
	// A block whose TTL cannot be read is still a block.
	if ttl, err := s.client.TTL(ctx, key).Result(); err == nil && ttl > 0 {
		b.Remaining = ttl
	}
	return b, nil
}

// Block blocks a client for the given duration.
func (s *Store) Block(ctx context.Context, clientIP string, duration time.Duration, reason string) error {
	return s.client.Set(ctx, BlockPrefix+clientIP, reason, duration).Err()
}

// Lift removes a client's block immediately. The offense counter is kept.
func (s *Store) Lift(ctx context.Context, clientIP string) error {
	return s.client.Del(ctx, BlockPrefix+clientIP).Err()
}

// blockDuration returns the block duration for an offense count, zero below
// the threshold.
func blockDuration(offenses int) time.Duration {
	switch {
	case offenses < BlockThreshold:
		return 0
	case offenses == BlockThreshold:
		return Block15Min
	case offenses == BlockThreshold+1:
		return Block1Hour
	default:
		return Block24Hour
	}
}

// Offenses returns the current offense counter of a client. Returns 0 if the
// counter does not exist or has expired.
func (s *Store) Offenses(ctx context.Context, clientIP string) (int, error) {
	val, err := s.client.Get(ctx, OffensesPrefix+clientIP).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return val, nil
}

// RecordOffense increments the offense counter of a client and, from
// BlockThreshold on, blocks it:
//
//	1st offense  -> counted only
//	2nd offense  -> 15 minutes
//	3rd offense  -> 1 hour
//	4th+ offense -> 24 hours
//
// It returns the block duration applied, zero when the client was not
// blocked.
func (s *Store) RecordOffense(ctx context.Context, clientIP string, reason string) (time.Duration, error) {
	key := OffensesPrefix + clientIP

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("ban: offense incr: %w", err)
	}

	// Set TTL only on first increment so the window doesn't slide.
	if count == 1 {
		if err := s.client.Expire(ctx, key, OffensesTTL).Err(); err != nil {
			return 0, fmt.Errorf("ban: offense expire: %w", err)
		}
	}

	duration := blockDuration(int(count))
	if duration == 0 {
		return 0, nil
	}
	if err := s.Block(ctx, clientIP, duration, reason); err != nil {
		return 0, fmt.Errorf("ban: block: %w", err)
	}
	return duration, nil
}
