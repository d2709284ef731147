package draw

import (
	crand "crypto/rand"
	"encoding/binary"
	"math/rand/v2"
	"sync"
)

// DefaultMaxAttempts bounds the randomized search when no other limit is set.
const DefaultMaxAttempts = 100

// Outcome is a successful draw.
type Outcome struct {
	Assignments []Assignment
	Attempts    int // attempt on which the assignment was found, 1-based
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxAttempts overrides the number of randomized attempts. Values below 1
// are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxAttempts = n
		}
	}
}

// WithRand makes the engine draw from r instead of a fresh crypto-seeded
// generator per call. Calls sharing r are serialized.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) {
		e.rng = r
	}
}

// WithFeasibilityCheck enables an exact matching check before the randomized
// search. Inputs with no valid assignment then fail immediately with a proven
// InfeasibleError instead of exhausting the attempt budget.
func WithFeasibilityCheck(enabled bool) Option {
	return func(e *Engine) {
		e.checkFeasible = enabled
	}
}

// Engine runs gift exchange draws. It holds no per-draw state and is safe for
// concurrent use.
type Engine struct {
	maxAttempts   int
	checkFeasible bool

	mu  sync.Mutex // serializes use of rng
	rng *rand.Rand // shared source set by WithRand, nil otherwise
}

// NewEngine creates an Engine with DefaultMaxAttempts and per-call random
// sources unless overridden by opts.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{maxAttempts: DefaultMaxAttempts}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts returns the configured attempt budget.
func (e *Engine) MaxAttempts() int {
	return e.maxAttempts
}

// Draw assigns every participant a receiver. Each attempt shuffles the
// participants into a fresh candidate pool, then walks the givers in input
// order and gives each the first pool candidate that is not themselves, not
// already taken and not restricted with them. An attempt that strands a giver
// is discarded whole. The first complete attempt wins.
//
// Draw returns an *InfeasibleError when fewer than two participants are given
// or when every attempt fails.
func (e *Engine) Draw(participants []Participant, restrictions []Restriction) (*Outcome, error) {
	n := len(participants)
	if n < MinParticipants {
		return nil, &InfeasibleError{Participants: n}
	}

	forbidden := newRestrictionSet(restrictions)
	if e.checkFeasible && !feasible(participants, forbidden) {
		return nil, &InfeasibleError{Participants: n, Proven: true}
	}

	rng, release := e.source()
	defer release()

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if assignments, ok := attemptDraw(rng, participants, forbidden); ok {
			return &Outcome{Assignments: assignments, Attempts: attempt}, nil
		}
	}
	return nil, &InfeasibleError{Participants: n, Attempts: e.maxAttempts}
}

// source returns the generator for one Draw call and a func to release it.
func (e *Engine) source() (*rand.Rand, func()) {
	if e.rng != nil {
		e.mu.Lock()
		return e.rng, e.mu.Unlock
	}
	return newSeededRand(), func() {}
}

// attemptDraw runs one greedy first-fit pass over a freshly shuffled pool.
func attemptDraw(rng *rand.Rand, participants []Participant, forbidden restrictionSet) ([]Assignment, bool) {
	pool := make([]Participant, len(participants))
	copy(pool, participants)
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	assignments := make([]Assignment, 0, len(participants))
	taken := make(map[string]struct{}, len(participants))

	for _, giver := range participants {
		pick := -1
		for i, candidate := range pool {
			if eligible(giver, candidate, taken, forbidden) {
				pick = i
				break
			}
		}
		if pick < 0 {
			return nil, false
		}

		receiver := pool[pick]
		taken[receiver.ID] = struct{}{}
		pool = append(pool[:pick], pool[pick+1:]...)
		assignments = append(assignments, Assignment{Giver: giver, Receiver: receiver})
	}
	return assignments, true
}

// eligible applies the three validity rules for giver -> candidate.
func eligible(giver, candidate Participant, taken map[string]struct{}, forbidden restrictionSet) bool {
	if giver.ID == candidate.ID {
		return false
	}
	if _, ok := taken[candidate.ID]; ok {
		return false
	}
	return !forbidden.forbids(giver.ID, candidate.ID)
}

// newSeededRand returns a PCG generator seeded from crypto/rand. If the system
// entropy source fails it falls back to the runtime-seeded global generator
// for the seed.
func newSeededRand() *rand.Rand {
	var b [16]byte
	if _, err := crand.Read(b[:]); err != nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(binary.LittleEndian.Uint64(b[:8]), binary.LittleEndian.Uint64(b[8:])))
}
