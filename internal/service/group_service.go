package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/cache"
	"github.com/divvyapp/divvy/internal/calculator"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/storage"
)

// GroupService manages groups and their membership, and answers balance
// queries over the group ledger.
type GroupService struct {
	store    storage.Store
	locks    *GroupLocks
	balances *cache.LRU[*models.GroupBalances]
}

// NewGroupService creates a new GroupService. The balance cache is shared
// with the expense and settlement services, which invalidate it on writes.
func NewGroupService(store storage.Store, locks *GroupLocks, balances *cache.LRU[*models.GroupBalances]) *GroupService {
	return &GroupService{store: store, locks: locks, balances: balances}
}

// CreateGroup creates a group with the creator as first member. Invite
// emails that resolve to known users become members too; unknown emails are
// skipped with a log, matching how invitations behave elsewhere.
func (s *GroupService) CreateGroup(ctx context.Context, creatorID, name, description string, inviteEmails []string) (*models.Group, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("group name is required")
	}
	if _, err := s.store.GetUserByID(ctx, creatorID); err != nil {
		return nil, err
	}

	members := []string{creatorID}
	seen := map[string]bool{creatorID: true}
	for _, email := range inviteEmails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		user, err := s.store.GetUserByEmail(ctx, email)
		if err != nil {
			if apperr.IsNotFound(err) {
				slog.Info("skipping unknown invite email", "email", email)
				continue
			}
			return nil, err
		}
		if !seen[user.ID] {
			members = append(members, user.ID)
			seen[user.ID] = true
		}
	}

	group := &models.Group{
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedBy:   creatorID,
		Members:     members,
	}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, err
	}

	slog.Info("group created", "group_id", group.ID, "name", group.Name, "members", len(group.Members))
	return group, nil
}

// GetGroup retrieves a group with its active members.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, error) {
	return s.store.GetGroup(ctx, groupID)
}

// ListGroups retrieves the groups the user is an active member of.
func (s *GroupService) ListGroups(ctx context.Context, userID string) ([]*models.Group, error) {
	return s.store.ListGroupsForUser(ctx, userID)
}

// AddMember adds the user with the given email to the group. A former
// member is re-activated; an already active member is a conflict.
func (s *GroupService) AddMember(ctx context.Context, groupID, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Validation("email is required")
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if group.HasMember(user.ID) {
		return nil, apperr.Conflict("user %s is already a member of group %s", user.ID, groupID)
	}

	if err := s.store.AddGroupMember(ctx, groupID, user.ID); err != nil {
		return nil, err
	}
	s.balances.Delete(groupID)

	slog.Info("member added", "group_id", groupID, "user_id", user.ID)
	return user, nil
}

// RemoveMember ends the user's membership provided their net balance is
// settled. A member who still owes or is owed beyond one minor unit cannot
// leave until the group settles up.
func (s *GroupService) RemoveMember(ctx context.Context, groupID, userID string) error {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	if !group.HasMember(userID) {
		return apperr.NotFound("user %s is not an active member of group %s", userID, groupID)
	}

	balances, err := s.computeBalances(ctx, groupID)
	if err != nil {
		return err
	}
	if net := balances.NetFor(userID); net.Abs().GreaterThan(models.Epsilon) {
		return apperr.Conflict("user %s has an unsettled balance of %s in group %s", userID, net.StringFixed(2), groupID)
	}

	if err := s.store.RemoveGroupMember(ctx, groupID, userID); err != nil {
		return err
	}
	s.balances.Delete(groupID)

	slog.Info("member removed", "group_id", groupID, "user_id", userID)
	return nil
}

// GetGroupBalances answers a balance query relative to one user: their
// totals owed and owing, plus per-counterpart breakdown with usernames.
func (s *GroupService) GetGroupBalances(ctx context.Context, groupID, userID string) (*models.BalanceSummary, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(userID) {
		return nil, apperr.NotFound("user %s is not an active member of group %s", userID, groupID)
	}

	balances, ok := s.balances.Get(groupID)
	if !ok {
		balances, err = s.fillBalanceCache(ctx, groupID)
		if err != nil {
			return nil, err
		}
	}

	summary := calculator.SummarizeFor(balances, userID)

	ids := make([]string, 0, len(summary.IndividualBalances))
	for _, b := range summary.IndividualBalances {
		ids = append(ids, b.UserID)
	}
	users, err := s.store.GetUsersByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range summary.IndividualBalances {
		if user, ok := users[summary.IndividualBalances[i].UserID]; ok {
			summary.IndividualBalances[i].Username = user.Username
		}
	}

	return &summary, nil
}

// fillBalanceCache recomputes the group's balances and caches them. It runs
// under the group's write lock: the three history reads see one committed
// snapshot, and the Set cannot land after a concurrent writer's invalidation
// and pin a pre-write result.
func (s *GroupService) fillBalanceCache(ctx context.Context, groupID string) (*models.GroupBalances, error) {
	unlock := s.locks.Lock(groupID)
	defer unlock()

	if balances, ok := s.balances.Get(groupID); ok {
		return balances, nil
	}
	balances, err := s.computeBalances(ctx, groupID)
	if err != nil {
		return nil, err
	}
	s.balances.Set(groupID, balances)
	return balances, nil
}

// computeBalances folds the group's full history into pairwise balances.
// Participant scope is everyone who was ever a member, so shares left by
// departed members still resolve and an out-of-scope reference means real
// corruption.
func (s *GroupService) computeBalances(ctx context.Context, groupID string) (*models.GroupBalances, error) {
	participants, err := s.store.ListGroupParticipants(ctx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := s.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.ComputeGroupBalances(groupID, participants, expenses, settlements)
}
