package calculator

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/models"
)

// ComputeGroupBalances folds a group's full expense and settlement history
// into net signed balances per member pair.
//
// participants is the authoritative set of user IDs allowed to appear in the
// history: every member the group has ever had. A share or settlement
// referencing anyone else is a data-integrity fault and aborts the
// computation rather than being dropped.
//
// Sign convention (see models.PairBalance): for the canonical pair (A, B)
// with A < B, a positive balance means B owes A.
//
// The fold is a full recomputation every time. Correctness over cleverness:
// callers that want speed cache the result per group and invalidate on
// writes, which is observationally identical.
func ComputeGroupBalances(groupID string, participants []string, expenses []*models.Expense, settlements []*models.Settlement) (*models.GroupBalances, error) {
	scope := make(map[string]bool, len(participants))
	for _, p := range participants {
		scope[p] = true
	}

	balances := &models.GroupBalances{
		GroupID: groupID,
		Pairs:   make(map[models.Pair]decimal.Decimal),
	}
	// Zero accumulator for every unordered pair, so "settled" pairs are
	// distinguishable from pairs that never transacted.
	for i := 0; i < len(participants); i++ {
		for j := i + 1; j < len(participants); j++ {
			balances.Pairs[models.NewPair(participants[i], participants[j])] = decimal.Zero
		}
	}

	// addDebt records that debtor owes creditor amt (negative amt reduces
	// the debt and may flip the pair's sign; an overshoot stays signed, it
	// is never clamped to zero).
	addDebt := func(debtor, creditor string, amt decimal.Decimal) {
		pair := models.NewPair(debtor, creditor)
		if creditor != pair.A {
			amt = amt.Neg()
		}
		balances.Pairs[pair] = balances.Pairs[pair].Add(amt)
	}

	for _, exp := range expenses {
		if !scope[exp.PaidBy] {
			return nil, apperr.Integrity("expense %s paid by %s, who was never a member of group %s", exp.ID, exp.PaidBy, groupID)
		}
		for _, share := range exp.Shares {
			if !scope[share.UserID] {
				return nil, apperr.Integrity("expense %s has a share for %s, who was never a member of group %s", exp.ID, share.UserID, groupID)
			}
			if share.UserID == exp.PaidBy {
				continue // the payer's own portion creates no debt
			}
			addDebt(share.UserID, exp.PaidBy, share.ShareAmount)
		}
	}

	for _, st := range settlements {
		if !scope[st.FromUserID] {
			return nil, apperr.Integrity("settlement %s from %s, who was never a member of group %s", st.ID, st.FromUserID, groupID)
		}
		if !scope[st.ToUserID] {
			return nil, apperr.Integrity("settlement %s to %s, who was never a member of group %s", st.ID, st.ToUserID, groupID)
		}
		// A payment reduces what the payer owes the payee.
		addDebt(st.FromUserID, st.ToUserID, st.Amount.Neg())
	}

	return balances, nil
}

// SummarizeFor derives the per-user view of a balance sheet: total owed by
// the user, total owed to the user, and the nonzero counterpart balances.
// Counterpart amounts are positive when the counterpart owes the user.
func SummarizeFor(balances *models.GroupBalances, userID string) models.BalanceSummary {
	summary := models.BalanceSummary{
		GroupID:        balances.GroupID,
		TotalOwedByYou: decimal.Zero,
		TotalOwedToYou: decimal.Zero,
	}

	for pair, amt := range balances.Pairs {
		if pair.A != userID && pair.B != userID {
			continue
		}
		// Orient the amount from the queried user's perspective:
		// positive = the counterpart owes the user.
		oriented := amt
		if pair.B == userID {
			oriented = oriented.Neg()
		}
		if oriented.IsZero() {
			continue
		}
		if oriented.IsPositive() {
			summary.TotalOwedToYou = summary.TotalOwedToYou.Add(oriented)
		} else {
			summary.TotalOwedByYou = summary.TotalOwedByYou.Add(oriented.Abs())
		}
		summary.IndividualBalances = append(summary.IndividualBalances, models.UserBalance{
			UserID: pair.Other(userID),
			Amount: oriented,
		})
	}

	// Map iteration order is random; keep the listing stable for clients.
	sort.Slice(summary.IndividualBalances, func(i, j int) bool {
		return summary.IndividualBalances[i].UserID < summary.IndividualBalances[j].UserID
	})

	return summary
}
