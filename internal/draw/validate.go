package draw

import (
	"fmt"
	"net/mail"
	"strings"
)

// Validate checks a participant list before it is handed to the engine. It
// rejects groups smaller than MinParticipants, blank or duplicate IDs, and
// participants without a name or a well-formed email address.
//
// Restrictions are not validated: pairs naming unknown IDs are inert.
func Validate(participants []Participant) error {
	if len(participants) < MinParticipants {
		return &ValidationError{
			Field:  "participants",
			Reason: fmt.Sprintf("at least %d participants are required", MinParticipants),
		}
	}

	seen := make(map[string]struct{}, len(participants))
	for i, p := range participants {
		field := fmt.Sprintf("participants[%d]", i)

		if strings.TrimSpace(p.ID) == "" {
			return &ValidationError{Field: field + ".id", Reason: "id is required"}
		}
		if _, dup := seen[p.ID]; dup {
			return &ValidationError{Field: field + ".id", Reason: fmt.Sprintf("duplicate participant id %q", p.ID)}
		}
		seen[p.ID] = struct{}{}

		if strings.TrimSpace(p.Name) == "" {
			return &ValidationError{Field: field + ".name", Reason: "name is required"}
		}
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return &ValidationError{Field: field + ".email", Reason: fmt.Sprintf("invalid email %q", p.Email)}
		}
	}
	return nil
}
