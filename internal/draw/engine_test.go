package draw

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"
)

func people(ids ...string) []Participant {
	out := make([]Participant, len(ids))
	for i, id := range ids {
		out[i] = Participant{ID: id, Name: "name-" + id, Email: id + "@example.com"}
	}
	return out
}

func seeded(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// assertValid checks every invariant of a successful draw.
func assertValid(t *testing.T, participants []Participant, restrictions []Restriction, got []Assignment) {
	t.Helper()

	if len(got) != len(participants) {
		t.Fatalf("expected %d assignments, got %d", len(participants), len(got))
	}

	ids := make(map[string]bool, len(participants))
	for _, p := range participants {
		ids[p.ID] = true
	}

	givers := make(map[string]int)
	receivers := make(map[string]int)
	for _, a := range got {
		givers[a.Giver.ID]++
		receivers[a.Receiver.ID]++

		if a.Giver.ID == a.Receiver.ID {
			t.Errorf("self assignment for %s", a.Giver.ID)
		}
		for _, r := range restrictions {
			if (r.Person1 == a.Giver.ID && r.Person2 == a.Receiver.ID) ||
				(r.Person2 == a.Giver.ID && r.Person1 == a.Receiver.ID) {
				t.Errorf("restricted pair assigned: %s -> %s", a.Giver.ID, a.Receiver.ID)
			}
		}
	}

	for id := range ids {
		if givers[id] != 1 {
			t.Errorf("participant %s gives %d times, want 1", id, givers[id])
		}
		if receivers[id] != 1 {
			t.Errorf("participant %s receives %d times, want 1", id, receivers[id])
		}
	}
}

// ---------- Draw success tests ----------

func TestDraw_ThreeUnrestrictedIsCycle(t *testing.T) {
	e := NewEngine(WithRand(seeded(1)))
	participants := people("A", "B", "C")

	out, err := e.Draw(participants, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValid(t, participants, nil, out.Assignments)
	if out.Attempts < 1 || out.Attempts > DefaultMaxAttempts {
		t.Errorf("attempts out of range: %d", out.Attempts)
	}
}

func TestDraw_ThreeUnrestrictedShowsBothDirections(t *testing.T) {
	e := NewEngine(WithRand(seeded(42)))
	participants := people("A", "B", "C")

	seen := map[string]int{}
	for i := 0; i < 200; i++ {
		out, err := e.Draw(participants, nil)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		assertValid(t, participants, nil, out.Assignments)
		// A's receiver identifies the cycle direction.
		seen[out.Assignments[0].Receiver.ID]++
	}

	if seen["B"] == 0 || seen["C"] == 0 {
		t.Errorf("expected both cycle directions, got %v", seen)
	}
}

func TestDraw_KeepsGiverOrder(t *testing.T) {
	e := NewEngine(WithRand(seeded(7)))
	participants := people("p1", "p2", "p3", "p4", "p5")

	out, err := e.Draw(participants, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, a := range out.Assignments {
		if a.Giver.ID != participants[i].ID {
			t.Errorf("assignment %d: giver %s, want %s", i, a.Giver.ID, participants[i].ID)
		}
	}
}

func TestDraw_FourWithOneRestriction(t *testing.T) {
	e := NewEngine(WithRand(seeded(3)))
	participants := people("A", "B", "C", "D")
	restrictions := []Restriction{{Person1: "A", Person2: "B"}}

	for i := 0; i < 100; i++ {
		out, err := e.Draw(participants, restrictions)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		assertValid(t, participants, restrictions, out.Assignments)
	}
}

func TestDraw_RestrictionIsSymmetric(t *testing.T) {
	e := NewEngine(WithRand(seeded(11)))
	participants := people("A", "B", "C", "D")
	// Written B->A, must also forbid A->B.
	restrictions := []Restriction{{Person1: "B", Person2: "A"}, {Person1: "C", Person2: "D"}}

	for i := 0; i < 100; i++ {
		out, err := e.Draw(participants, restrictions)
		if err != nil {
			t.Fatalf("run %d: unexpected error: %v", i, err)
		}
		assertValid(t, participants, restrictions, out.Assignments)
	}
}

func TestDraw_UnknownRestrictionIDsAreInert(t *testing.T) {
	e := NewEngine(WithRand(seeded(5)))
	participants := people("A", "B")
	restrictions := []Restriction{{Person1: "A", Person2: "ghost"}, {Person1: "X", Person2: "Y"}}

	out, err := e.Draw(participants, restrictions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValid(t, participants, restrictions, out.Assignments)
}

func TestDraw_LargeSparseGroup(t *testing.T) {
	e := NewEngine(WithRand(seeded(99)))

	ids := make([]string, 40)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%02d", i)
	}
	participants := people(ids...)

	// Couples: m00-m01, m02-m03, ...
	var restrictions []Restriction
	for i := 0; i+1 < len(ids); i += 2 {
		restrictions = append(restrictions, Restriction{Person1: ids[i], Person2: ids[i+1]})
	}

	out, err := e.Draw(participants, restrictions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValid(t, participants, restrictions, out.Assignments)
}

func TestDraw_DoesNotMutateInput(t *testing.T) {
	e := NewEngine(WithRand(seeded(8)))
	participants := people("A", "B", "C", "D")
	before := append([]Participant(nil), participants...)

	if _, err := e.Draw(participants, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := range participants {
		if participants[i] != before[i] {
			t.Fatalf("participants mutated at %d: %+v -> %+v", i, before[i], participants[i])
		}
	}
}

// ---------- Draw failure tests ----------

func TestDraw_TwoMutuallyRestrictedFails(t *testing.T) {
	e := NewEngine(WithRand(seeded(2)))
	participants := people("A", "B")
	restrictions := []Restriction{{Person1: "A", Person2: "B"}}

	for i := 0; i < 20; i++ {
		out, err := e.Draw(participants, restrictions)
		if out != nil {
			t.Fatalf("run %d: expected no outcome, got %+v", i, out)
		}
		if !errors.Is(err, ErrInfeasible) {
			t.Fatalf("run %d: expected ErrInfeasible, got %v", i, err)
		}

		var infeasible *InfeasibleError
		if !errors.As(err, &infeasible) {
			t.Fatalf("expected *InfeasibleError, got %T", err)
		}
		if infeasible.Attempts != DefaultMaxAttempts {
			t.Errorf("expected %d attempts, got %d", DefaultMaxAttempts, infeasible.Attempts)
		}
		if infeasible.Proven {
			t.Error("expected unproven failure without the feasibility check")
		}
	}
}

func TestDraw_TooFewParticipants(t *testing.T) {
	tests := []struct {
		name         string
		participants []Participant
	}{
		{"nil", nil},
		{"empty", []Participant{}},
		{"one", people("solo")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEngine()
			_, err := e.Draw(tt.participants, nil)

			var infeasible *InfeasibleError
			if !errors.As(err, &infeasible) {
				t.Fatalf("expected *InfeasibleError, got %v", err)
			}
			if infeasible.Attempts != 0 {
				t.Errorf("expected no attempts before failing, got %d", infeasible.Attempts)
			}
		})
	}
}

func TestDraw_CustomAttemptBudget(t *testing.T) {
	e := NewEngine(WithRand(seeded(4)), WithMaxAttempts(7))
	if e.MaxAttempts() != 7 {
		t.Fatalf("expected 7 attempts, got %d", e.MaxAttempts())
	}

	_, err := e.Draw(people("A", "B"), []Restriction{{Person1: "A", Person2: "B"}})
	var infeasible *InfeasibleError
	if !errors.As(err, &infeasible) {
		t.Fatalf("expected *InfeasibleError, got %v", err)
	}
	if infeasible.Attempts != 7 {
		t.Errorf("expected 7 attempts, got %d", infeasible.Attempts)
	}
}

func TestDraw_IgnoresNonPositiveAttemptBudget(t *testing.T) {
	e := NewEngine(WithMaxAttempts(0))
	if e.MaxAttempts() != DefaultMaxAttempts {
		t.Errorf("expected default budget, got %d", e.MaxAttempts())
	}
}

func TestDraw_FeasibilityCheckFailsFast(t *testing.T) {
	e := NewEngine(WithFeasibilityCheck(true))

	// C is restricted with everyone, so nobody can give to C.
	participants := people("A", "B", "C")
	restrictions := []Restriction{{Person1: "A", Person2: "C"}, {Person1: "B", Person2: "C"}}

	_, err := e.Draw(participants, restrictions)
	var infeasible *InfeasibleError
	if !errors.As(err, &infeasible) {
		t.Fatalf("expected *InfeasibleError, got %v", err)
	}
	if !infeasible.Proven {
		t.Error("expected proven failure")
	}
	if infeasible.Attempts != 0 {
		t.Errorf("expected zero attempts, got %d", infeasible.Attempts)
	}
}

func TestDraw_FeasibilityCheckAllowsFeasible(t *testing.T) {
	e := NewEngine(WithFeasibilityCheck(true), WithRand(seeded(6)))
	participants := people("A", "B", "C", "D")
	restrictions := []Restriction{{Person1: "A", Person2: "B"}}

	out, err := e.Draw(participants, restrictions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValid(t, participants, restrictions, out.Assignments)
}

// ---------- Concurrency tests ----------

func TestDraw_ConcurrentCallsWithPerCallSources(t *testing.T) {
	e := NewEngine()
	participants := people("A", "B", "C", "D", "E", "F")
	restrictions := []Restriction{{Person1: "A", Person2: "B"}, {Person1: "C", Person2: "D"}}

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := e.Draw(participants, restrictions); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDraw_ConcurrentCallsWithSharedSource(t *testing.T) {
	e := NewEngine(WithRand(seeded(10)))
	participants := people("A", "B", "C", "D")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := e.Draw(participants, nil)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if len(out.Assignments) != len(participants) {
				t.Errorf("expected %d assignments, got %d", len(participants), len(out.Assignments))
			}
		}()
	}
	wg.Wait()
}

func TestDraw_SameSeedSameResult(t *testing.T) {
	participants := people("A", "B", "C", "D", "E")

	first, err := NewEngine(WithRand(seeded(123))).Draw(participants, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := NewEngine(WithRand(seeded(123))).Draw(participants, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := range first.Assignments {
		if first.Assignments[i].Receiver.ID != second.Assignments[i].Receiver.ID {
			t.Fatalf("seeded draws diverged at %d", i)
		}
	}
}
