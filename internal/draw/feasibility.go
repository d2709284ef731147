package draw

// Feasible reports whether any valid assignment exists for the given input.
// It looks for a perfect matching in the bipartite graph of allowed
// giver -> receiver edges (not self, not restricted) using augmenting paths,
// so the answer is exact, unlike the bounded randomized search in Draw.
func Feasible(participants []Participant, restrictions []Restriction) bool {
	return feasible(participants, newRestrictionSet(restrictions))
}

func feasible(participants []Participant, forbidden restrictionSet) bool {
	n := len(participants)
	if n < MinParticipants {
		return false
	}

	allowed := make([][]int, n)
	for g, giver := range participants {
		for r, receiver := range participants {
			if giver.ID == receiver.ID || forbidden.forbids(giver.ID, receiver.ID) {
				continue
			}
			allowed[g] = append(allowed[g], r)
		}
		if len(allowed[g]) == 0 {
			return false
		}
	}

	// giverOf[r] is the giver currently matched to receiver r, or -1.
	giverOf := make([]int, n)
	for i := range giverOf {
		giverOf[i] = -1
	}

	for g := 0; g < n; g++ {
		visited := make([]bool, n)
		if !augment(g, allowed, giverOf, visited) {
			return false
		}
	}
	return true
}

// augment tries to match giver g, re-routing previously matched givers along
// an alternating path when the receiver it wants is taken.
func augment(g int, allowed [][]int, giverOf []int, visited []bool) bool {
	for _, r := range allowed[g] {
		if visited[r] {
			continue
		}
		visited[r] = true
		if giverOf[r] < 0 || augment(giverOf[r], allowed, giverOf, visited) {
			giverOf[r] = g
			return true
		}
	}
	return false
}
