package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/cache"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/storage"
)

// SettlementService records direct payments between members. A settlement
// reduces what the payer owes the payee; paying more than is owed flips the
// direction of the pair's balance.
type SettlementService struct {
	store    storage.Store
	locks    *GroupLocks
	balances *cache.LRU[*models.GroupBalances]
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(store storage.Store, locks *GroupLocks, balances *cache.LRU[*models.GroupBalances]) *SettlementService {
	return &SettlementService{store: store, locks: locks, balances: balances}
}

// RecordSettlement validates and appends a settlement under the group's
// write lock. It either fully applies or not at all.
func (s *SettlementService) RecordSettlement(ctx context.Context, groupID, fromUserID, toUserID string, amount decimal.Decimal, note string) (*models.Settlement, error) {
	if !amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive, got %s", amount)
	}
	if !amount.Shift(2).IsInteger() {
		return nil, apperr.Validation("amount must have at most 2 decimal places, got %s", amount)
	}
	if fromUserID == toUserID {
		return nil, apperr.Validation("payer and payee must differ")
	}

	unlock := s.locks.Lock(groupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if !group.HasMember(fromUserID) {
		return nil, apperr.Validation("payer %s is not an active member of group %s", fromUserID, groupID)
	}
	if !group.HasMember(toUserID) {
		return nil, apperr.Validation("payee %s is not an active member of group %s", toUserID, groupID)
	}

	settlement := &models.Settlement{
		GroupID:    groupID,
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		Amount:     amount,
		Note:       strings.TrimSpace(note),
	}
	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		return nil, err
	}
	s.balances.Delete(groupID)

	slog.Info("settlement recorded",
		"settlement_id", settlement.ID,
		"group_id", groupID,
		"from", fromUserID,
		"to", toUserID,
		"amount", amount.StringFixed(2),
	)
	return settlement, nil
}
