package main

import (
	"math/rand/v2"
	"strings"
	"testing"
)

func TestNewGroup(t *testing.T) {
	tests := []struct {
		name         string
		size         int
		density      float64
		restrictions int
	}{
		{"no restrictions", 6, 0, 0},
		{"tenth of pairs", 10, 0.1, 4},
		{"all pairs", 4, 1, 6},
		{"density above one", 4, 3, 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			req := newGroup(rng, "g", tt.size, tt.density)

			if len(req.Participants) != tt.size {
				t.Fatalf("participants = %d, want %d", len(req.Participants), tt.size)
			}
			if len(req.Restrictions) != tt.restrictions {
				t.Errorf("restrictions = %d, want %d", len(req.Restrictions), tt.restrictions)
			}

			seen := map[string]bool{}
			for _, p := range req.Participants {
				id := string(p.ID)
				if seen[id] || !strings.HasPrefix(id, "g-") {
					t.Errorf("bad or duplicate id %q", id)
				}
				seen[id] = true
			}
			for _, r := range req.Restrictions {
				if r.Person1 == r.Person2 || !seen[string(r.Person1)] || !seen[string(r.Person2)] {
					t.Errorf("bad restriction %+v", r)
				}
			}
		})
	}
}
