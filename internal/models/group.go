package models

import "slices"

// Group is a set of members who share expenses.
// All expenses and settlements of a group use the group's currency.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Ski Trip").
	Name string

	// Currency is the ISO 4217 code used by every expense in the group.
	Currency string

	// CreatedBy is the user ID of the group's creator, who is always a member.
	CreatedBy string

	// MemberIDs lists the user IDs of all members, in the order they joined.
	MemberIDs []string

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether userID belongs to the group.
func (g *Group) HasMember(userID string) bool {
	return slices.Contains(g.MemberIDs, userID)
}
