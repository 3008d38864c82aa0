package models

// User represents a registered user account. Authentication happens outside
// this service; users exist here so that group invitations can resolve an
// email address to an identity and so expense shares reference real people.
type User struct {
	// ID is the unique identifier for the user (UUID format).
	ID string

	// Username is the display name of the user.
	Username string

	// Email is the user's email address (unique). Used for invitation lookup.
	Email string

	// CreatedAt is the Unix timestamp when the user account was created.
	CreatedAt int64
}
