package models

// Group represents a set of people who share expenses. A group is never
// empty: the creator becomes the first member at creation time.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Description is an optional longer description.
	Description string

	// CreatedBy is the user ID of the creator. The creator is always a member.
	CreatedBy string

	// Members holds the user IDs of all currently active members.
	Members []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID is an active member of the group.
func (g *Group) HasMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}
