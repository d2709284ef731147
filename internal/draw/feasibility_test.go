package draw

import "testing"

func TestFeasible(t *testing.T) {
	tests := []struct {
		name         string
		participants []Participant
		restrictions []Restriction
		want         bool
	}{
		{"empty", nil, nil, false},
		{"single", people("A"), nil, false},
		{"pair", people("A", "B"), nil, true},
		{"pair restricted", people("A", "B"), []Restriction{{"A", "B"}}, false},
		{"pair restricted reversed", people("A", "B"), []Restriction{{"B", "A"}}, false},
		{"four one couple", people("A", "B", "C", "D"), []Restriction{{"A", "B"}}, true},
		{"four two couples", people("A", "B", "C", "D"), []Restriction{{"A", "B"}, {"C", "D"}}, true},
		{"isolated member", people("A", "B", "C"), []Restriction{{"A", "C"}, {"B", "C"}}, false},
		// A and B may only give to C, so one of them is stranded.
		{"two givers one receiver", people("A", "B", "C", "D"), []Restriction{{"A", "B"}, {"A", "D"}, {"B", "D"}}, false},
		{"unknown ids", people("A", "B"), []Restriction{{"A", "Z"}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Feasible(tt.participants, tt.restrictions); got != tt.want {
				t.Errorf("Feasible() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFeasible_AgreesWithDraw(t *testing.T) {
	e := NewEngine(WithRand(seeded(77)), WithMaxAttempts(500))
	participants := people("A", "B", "C", "D", "E")
	restrictions := []Restriction{{"A", "B"}, {"A", "C"}, {"B", "C"}, {"D", "E"}}

	if !Feasible(participants, restrictions) {
		t.Fatal("expected feasible input")
	}
	out, err := e.Draw(participants, restrictions)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertValid(t, participants, restrictions, out.Assignments)
}
