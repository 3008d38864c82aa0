package models

import "github.com/shopspring/decimal"

// Pair is an unordered pair of user IDs in canonical form: A is always the
// lexicographically smaller ID. Use NewPair to construct one.
type Pair struct {
	A string
	B string
}

// NewPair returns the canonical pair for two user IDs.
func NewPair(x, y string) Pair {
	if x <= y {
		return Pair{A: x, B: y}
	}
	return Pair{A: y, B: x}
}

// Other returns the counterpart of userID within the pair.
func (p Pair) Other(userID string) string {
	if p.A == userID {
		return p.B
	}
	return p.A
}

// PairBalance is the net signed balance between two members.
// Sign convention: a positive Amount means B owes A; negative means A owes B.
type PairBalance struct {
	Pair   Pair
	Amount decimal.Decimal
}

// GroupBalances is the derived balance state of one group, recomputed from
// the full expense and settlement history. It owns no persistent state.
type GroupBalances struct {
	GroupID string

	// Pairs maps each member pair to its net signed balance. Pairs that net
	// to exactly zero are retained so callers can distinguish "settled" from
	// "never transacted" if they care; most do not.
	Pairs map[Pair]decimal.Decimal
}

// NetFor returns the overall net balance of one user: the sum of everything
// owed to them minus everything they owe.
func (b *GroupBalances) NetFor(userID string) decimal.Decimal {
	net := decimal.Zero
	for pair, amt := range b.Pairs {
		switch userID {
		case pair.A:
			net = net.Add(amt)
		case pair.B:
			net = net.Sub(amt)
		}
	}
	return net
}

// UserBalance is one entry of a per-user balance listing: how much the
// counterpart owes the queried user (positive) or is owed by them (negative).
type UserBalance struct {
	UserID   string
	Username string
	Amount   decimal.Decimal
}

// BalanceSummary is the answer to a balance query, relative to one user.
type BalanceSummary struct {
	GroupID string

	// TotalOwedByYou is the sum of magnitudes of pairs where the queried
	// user is the net debtor.
	TotalOwedByYou decimal.Decimal

	// TotalOwedToYou is the sum of magnitudes of pairs where the queried
	// user is the net creditor.
	TotalOwedToYou decimal.Decimal

	// IndividualBalances lists nonzero counterpart balances.
	IndividualBalances []UserBalance
}
