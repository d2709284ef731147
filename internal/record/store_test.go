package record

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

// newTestStore connects to the database named by GIFTDRAW_TEST_DATABASE_URL
// and skips the test when it is unset.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("GIFTDRAW_TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("GIFTDRAW_TEST_DATABASE_URL not set")
	}
	store, err := Open(context.Background(), dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateRejectsUnknownOutcome(t *testing.T) {
	s := NewStore(nil)
	err := s.Create(context.Background(), &Draw{Outcome: "maybe"})
	if err == nil {
		t.Fatal("expected error for invalid outcome")
	}
}

func TestCreateRejectsMalformedID(t *testing.T) {
	s := NewStore(nil)
	err := s.Create(context.Background(), &Draw{ID: "draw-1", Outcome: OutcomeAssigned})
	if err == nil {
		t.Fatal("expected error for non-uuid id")
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) == 0 || len(entries)%2 != 0 {
		t.Errorf("expected paired up/down migrations, got %d files", len(entries))
	}
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	d := &Draw{
		ParticipantCount: 4,
		RestrictionCount: 1,
		Attempts:         2,
		Outcome:          OutcomeAssigned,
		Notified:         3,
		Failed:           1,
	}
	if err := store.Create(ctx, d); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := uuid.Parse(d.ID); err != nil {
		t.Fatalf("Create assigned id %q: %v", d.ID, err)
	}
	if d.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}

	got, err := store.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("draw not found")
	}
	if got.ParticipantCount != 4 || got.RestrictionCount != 1 || got.Attempts != 2 ||
		got.Outcome != OutcomeAssigned || got.Notified != 3 || got.Failed != 1 {
		t.Errorf("Get = %+v, want %+v", got, d)
	}
}

func TestGetMissing(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{uuid.NewString(), "not-a-uuid"} {
		got, err := store.Get(context.Background(), id)
		if err != nil {
			t.Fatalf("Get(%q): %v", id, err)
		}
		if got != nil {
			t.Errorf("Get(%q) = %+v, want nil", id, got)
		}
	}
}

func TestCountRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	before, err := store.CountRecent(ctx, OutcomeInfeasible, time.Hour)
	if err != nil {
		t.Fatalf("CountRecent: %v", err)
	}
	all, err := store.CountRecent(ctx, "", time.Hour)
	if err != nil {
		t.Fatalf("CountRecent: %v", err)
	}

	if err := store.Create(ctx, &Draw{ParticipantCount: 2, RestrictionCount: 1, Attempts: 100, Outcome: OutcomeInfeasible}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	after, _ := store.CountRecent(ctx, OutcomeInfeasible, time.Hour)
	if after != before+1 {
		t.Errorf("infeasible count = %d, want %d", after, before+1)
	}
	allAfter, _ := store.CountRecent(ctx, "", time.Hour)
	if allAfter != all+1 {
		t.Errorf("total count = %d, want %d", allAfter, all+1)
	}
}
