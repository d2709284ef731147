// Package draw implements the gift exchange assignment engine. Given a group of
// participants and a set of forbidden pairs it produces a giver -> receiver
// mapping that is a bijection, has no fixed points and never pairs two
// restricted participants, or reports that no such mapping was found.
package draw

// MinParticipants is the smallest group that can exchange gifts.
const MinParticipants = 2

// Participant is one member of the exchange. Identity is by ID only; Name and
// Email are carried through to notifications untouched.
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Restriction forbids two participants from drawing each other, in either
// direction.
type Restriction struct {
	Person1 string `json:"person1"`
	Person2 string `json:"person2"`
}

// Assignment pairs a giver with the participant they buy a gift for.
type Assignment struct {
	Giver    Participant `json:"giver"`
	Receiver Participant `json:"receiver"`
}

// pairKey is an unordered pair of participant IDs, stored low-high.
type pairKey struct {
	lo, hi string
}

func newPairKey(a, b string) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// restrictionSet indexes restrictions as unordered pairs so (a,b) and (b,a)
// collapse to a single forbidden edge.
type restrictionSet map[pairKey]struct{}

func newRestrictionSet(restrictions []Restriction) restrictionSet {
	set := make(restrictionSet, len(restrictions))
	for _, r := range restrictions {
		set[newPairKey(r.Person1, r.Person2)] = struct{}{}
	}
	return set
}

func (s restrictionSet) forbids(a, b string) bool {
	_, ok := s[newPairKey(a, b)]
	return ok
}
