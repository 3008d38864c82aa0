// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/divvyapp/divvy/internal/models"
)

// Store defines the interface for ledger storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
//
// Writes are atomic: an expense and its shares are committed in a single
// transaction or not at all. Lookups return apperr.NotFound when the target
// does not exist.
type Store interface {
	// CreateUser persists a new user. The user.ID field is populated by the
	// store when empty. Returns apperr.Conflict on a duplicate email.
	CreateUser(ctx context.Context, user *models.User) error

	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id string) (*models.User, error)

	// GetUserByEmail retrieves a user by exact email match.
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)

	// GetUsersByIDs retrieves multiple users keyed by ID. Missing users are
	// omitted from the result, not errors.
	GetUsersByIDs(ctx context.Context, ids []string) (map[string]*models.User, error)

	// CreateGroup persists a new group together with its initial active
	// members (group.Members). ID and CreatedAt are populated when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its currently active members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsForUser retrieves all groups where the user is an active member.
	ListGroupsForUser(ctx context.Context, userID string) ([]*models.Group, error)

	// ListGroupParticipants returns every user ID that has ever been a
	// member of the group, including members who have since left. This is
	// the integrity scope for balance aggregation: historical shares must
	// always resolve to a known participant.
	ListGroupParticipants(ctx context.Context, groupID string) ([]string, error)

	// AddGroupMember makes the user an active member, re-activating a
	// membership that was previously ended.
	AddGroupMember(ctx context.Context, groupID, userID string) error

	// RemoveGroupMember ends the user's active membership. The historical
	// membership row is retained.
	RemoveGroupMember(ctx context.Context, groupID, userID string) error

	// CreateExpense persists an expense and all of its shares atomically.
	// ID and CreatedAt are populated when empty.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// ListExpensesByGroup retrieves all expenses of a group in commit order,
	// each with its shares in allocation order.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error)

	// CreateSettlement appends a settlement. ID and CreatedAt are populated
	// when empty.
	CreateSettlement(ctx context.Context, settlement *models.Settlement) error

	// ListSettlementsByGroup retrieves all settlements of a group in commit order.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]*models.Settlement, error)

	// Close releases any resources held by the store.
	Close() error
}
