// Package record keeps an audit trail of draws in PostgreSQL. Only counts
// and the outcome are stored; who gives to whom never leaves the draw.
package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

// Draw outcomes, matching the CHECK constraint on the draws table.
const (
	OutcomeAssigned   = "assigned"
	OutcomeInfeasible = "infeasible"
)

var validOutcomes = map[string]bool{
	OutcomeAssigned:   true,
	OutcomeInfeasible: true,
}

// Draw is one audited draw.
type Draw struct {
	ID               string
	ParticipantCount int
	RestrictionCount int
	Attempts         int
	Outcome          string
	Notified         int
	Failed           int
	CreatedAt        time.Time
}

// Store manages draw records in PostgreSQL.
type Store struct {
	db *sql.DB
}

// NewStore creates a new record store backed by the given database handle.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL, verifies the connection and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("record: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("record: postgres connection failed: %w", err)
	}

	if err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return NewStore(db), nil
}

// Create inserts a draw record. An empty ID is replaced by a new UUID and
// CreatedAt is set by the database.
func (s *Store) Create(ctx context.Context, d *Draw) error {
	if !validOutcomes[d.Outcome] {
		return fmt.Errorf("record: invalid outcome %q", d.Outcome)
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	} else if _, err := uuid.Parse(d.ID); err != nil {
		return fmt.Errorf("record: invalid draw id %q: %w", d.ID, err)
	}

	const query = `
		INSERT INTO draws (id, participant_count, restriction_count, attempts, outcome, notified, failed)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	err := s.db.QueryRowContext(ctx, query,
		d.ID,
		d.ParticipantCount,
		d.RestrictionCount,
		d.Attempts,
		d.Outcome,
		d.Notified,
		d.Failed,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("record: insert: %w", err)
	}
	return nil
}

// Get returns the draw with the given id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id string) (*Draw, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	const query = `
		SELECT id, participant_count, restriction_count, attempts, outcome, notified, failed, created_at
		FROM draws
		WHERE id = $1`

	var d Draw
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID,
		&d.ParticipantCount,
		&d.RestrictionCount,
		&d.Attempts,
		&d.Outcome,
		&d.Notified,
		&d.Failed,
		&d.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("record: get: %w", err)
	}
	return &d, nil
}

// CountRecent returns the number of draws with the given outcome recorded
// within the window. An empty outcome counts all draws.
func (s *Store) CountRecent(ctx context.Context, outcome string, window time.Duration) (int, error) {
	const query = `
		SELECT COUNT(*)
		FROM draws
		WHERE ($1::text = '' OR outcome = $1::text)
		  AND created_at >= NOW() - make_interval(secs => $2)`

	var count int
	err := s.db.QueryRowContext(ctx, query, outcome, window.Seconds()).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("record: count recent: %w", err)
	}
	return count, nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
