// Package calculator implements the pure computation core: converting an
// expense total into per-member shares, and aggregating a group's history
// into net pairwise balances.
package calculator

import (
	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/models"
)

// SplitMethod selects how an expense total is divided among members.
type SplitMethod string

const (
	// SplitEvenly divides the total equally among all members.
	SplitEvenly SplitMethod = "Evenly"
	// SplitAmount uses explicit per-member amounts, with at most one member
	// left implicit to absorb the remainder.
	SplitAmount SplitMethod = "Amount"
	// SplitShares divides the total proportionally to per-member weights.
	SplitShares SplitMethod = "Shares"
	// SplitPercentage divides the total by per-member percentages that must
	// sum to 100.
	SplitPercentage SplitMethod = "Percentage"
)

// Valid reports whether m is a known split method.
func (m SplitMethod) Valid() bool {
	switch m {
	case SplitEvenly, SplitAmount, SplitShares, SplitPercentage:
		return true
	}
	return false
}

// AllocationRequest carries the fully-specified inputs for one split. The
// member order is significant: rounding leftovers are assigned to the first
// members in order, so identical inputs always produce identical shares.
type AllocationRequest struct {
	// Amount is the positive expense total, at most 2 decimal places.
	Amount decimal.Decimal

	// Method selects the allocation rule.
	Method SplitMethod

	// Members is the ordered, non-empty list of participating user IDs.
	Members []string

	// Amounts holds explicit per-member amounts for SplitAmount. A member
	// absent from the map is implicit; at most one member may be implicit.
	Amounts map[string]decimal.Decimal

	// Weights holds positive per-member weights for SplitShares.
	Weights map[string]decimal.Decimal

	// Percents holds per-member percentages for SplitPercentage.
	Percents map[string]decimal.Decimal
}

// Allocate validates the request and computes the ordered per-member shares.
// The returned share amounts always sum to exactly the requested total; any
// failure is a validation error and nothing is computed partially.
func Allocate(req AllocationRequest) ([]models.ExpenseShare, error) {
	if !req.Amount.IsPositive() {
		return nil, apperr.Validation("amount must be positive, got %s", req.Amount)
	}
	if _, ok := toCents(req.Amount); !ok {
		return nil, apperr.Validation("amount must have at most 2 decimal places, got %s", req.Amount)
	}
	if len(req.Members) == 0 {
		return nil, apperr.Validation("at least one member is required")
	}
	seen := make(map[string]bool, len(req.Members))
	for _, m := range req.Members {
		if m == "" {
			return nil, apperr.Validation("member ID must not be empty")
		}
		if seen[m] {
			return nil, apperr.Validation("duplicate member %q", m)
		}
		seen[m] = true
	}

	switch req.Method {
	case SplitEvenly:
		return splitEvenly(req.Amount, req.Members), nil
	case SplitAmount:
		return splitByAmounts(req.Amount, req.Members, req.Amounts)
	case SplitShares:
		return splitByWeights(req.Amount, req.Members, req.Weights)
	case SplitPercentage:
		return splitByPercents(req.Amount, req.Members, req.Percents)
	default:
		return nil, apperr.Validation("unknown split method %q", req.Method)
	}
}

// toCents converts a decimal into whole minor units. ok is false when the
// value does not land exactly on a cent.
func toCents(d decimal.Decimal) (int64, bool) {
	shifted := d.Shift(2)
	if !shifted.IsInteger() {
		return 0, false
	}
	return shifted.IntPart(), true
}

func fromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// splitEvenly assigns floor(total/n) cents to everyone, then hands the
// leftover cents one at a time to the first members in input order. First
// members rather than "the last member absorbs it": the rule is explicit,
// order-stable, and never assigns anyone more than one extra cent.
func splitEvenly(amount decimal.Decimal, members []string) []models.ExpenseShare {
	cents, _ := toCents(amount)
	n := int64(len(members))
	base := cents / n
	leftover := cents % n

	shares := make([]models.ExpenseShare, len(members))
	for i, m := range members {
		c := base
		if int64(i) < leftover {
			c++
		}
		shares[i] = models.ExpenseShare{UserID: m, ShareAmount: fromCents(c)}
	}
	return shares
}

// splitByAmounts accepts either a complete set of explicit amounts whose sum
// matches the total within epsilon, or exactly one implicit member who gets
// the remainder.
func splitByAmounts(amount decimal.Decimal, members []string, amounts map[string]decimal.Decimal) ([]models.ExpenseShare, error) {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	for userID := range amounts {
		if !memberSet[userID] {
			return nil, apperr.Validation("amount given for %q, who is not among the members", userID)
		}
	}

	var implicit string
	implicitCount := 0
	explicitSum := decimal.Zero
	for _, m := range members {
		amt, ok := amounts[m]
		if !ok {
			implicit = m
			implicitCount++
			continue
		}
		if amt.IsNegative() {
			return nil, apperr.Validation("amount for %q must not be negative, got %s", m, amt)
		}
		if _, ok := toCents(amt); !ok {
			return nil, apperr.Validation("amount for %q must have at most 2 decimal places, got %s", m, amt)
		}
		explicitSum = explicitSum.Add(amt)
	}

	switch implicitCount {
	case 0:
		if explicitSum.Sub(amount).Abs().GreaterThan(models.Epsilon) {
			return nil, apperr.Validation("member amounts sum to %s, expected %s", explicitSum, amount)
		}
	case 1:
		// The implicit member absorbs the remainder.
		if amount.Sub(explicitSum).IsNegative() {
			return nil, apperr.Validation("explicit amounts sum to %s, exceeding the total %s", explicitSum, amount)
		}
	default:
		return nil, apperr.Validation("at most one member may be left without an amount, found %d", implicitCount)
	}

	remainder := amount.Sub(explicitSum)
	shares := make([]models.ExpenseShare, len(members))
	for i, m := range members {
		if implicitCount == 1 && m == implicit {
			shares[i] = models.ExpenseShare{UserID: m, ShareAmount: remainder}
			continue
		}
		shares[i] = models.ExpenseShare{UserID: m, ShareAmount: amounts[m]}
	}
	return shares, nil
}

// splitByWeights divides the total proportionally to the given weights,
// then corrects rounding drift with the same leftover rule as splitEvenly.
func splitByWeights(amount decimal.Decimal, members []string, weights map[string]decimal.Decimal) ([]models.ExpenseShare, error) {
	ordered, sum, err := orderedFactors(members, weights, "weight")
	if err != nil {
		return nil, err
	}
	if !sum.IsPositive() {
		return nil, apperr.Validation("weights must sum to a positive value, got %s", sum)
	}
	return distributeProportionally(amount, members, ordered, sum), nil
}

// splitByPercents is splitByWeights with the extra requirement that the
// percentages exhaust the whole amount: they must sum to 100 within epsilon.
func splitByPercents(amount decimal.Decimal, members []string, percents map[string]decimal.Decimal) ([]models.ExpenseShare, error) {
	ordered, sum, err := orderedFactors(members, percents, "percentage")
	if err != nil {
		return nil, err
	}
	hundred := decimal.NewFromInt(100)
	if sum.Sub(hundred).Abs().GreaterThan(models.Epsilon) {
		return nil, apperr.Validation("percentages must sum to 100, got %s", sum)
	}
	return distributeProportionally(amount, members, ordered, sum), nil
}

// orderedFactors resolves the per-member factor map into member order,
// rejecting negative, missing, or extraneous entries.
func orderedFactors(members []string, factors map[string]decimal.Decimal, kind string) ([]decimal.Decimal, decimal.Decimal, error) {
	memberSet := make(map[string]bool, len(members))
	for _, m := range members {
		memberSet[m] = true
	}
	for userID := range factors {
		if !memberSet[userID] {
			return nil, decimal.Zero, apperr.Validation("%s given for %q, who is not among the members", kind, userID)
		}
	}

	ordered := make([]decimal.Decimal, len(members))
	sum := decimal.Zero
	for i, m := range members {
		f, ok := factors[m]
		if !ok {
			return nil, decimal.Zero, apperr.Validation("missing %s for member %q", kind, m)
		}
		if f.IsNegative() {
			return nil, decimal.Zero, apperr.Validation("%s for %q must not be negative, got %s", kind, m, f)
		}
		ordered[i] = f
		sum = sum.Add(f)
	}
	return ordered, sum, nil
}

// distributeProportionally floors each member's ideal share to whole cents
// and assigns the leftover cents one per member in input order. The leftover
// is always smaller than the member count, so nobody ends up more than one
// cent away from their ideal share, and the shares sum to the total exactly.
func distributeProportionally(amount decimal.Decimal, members []string, factors []decimal.Decimal, factorSum decimal.Decimal) []models.ExpenseShare {
	totalCents, _ := toCents(amount)
	total := decimal.NewFromInt(totalCents)

	floors := make([]int64, len(members))
	var floorSum int64
	for i, f := range factors {
		ideal := total.Mul(f).Div(factorSum)
		floors[i] = ideal.Floor().IntPart()
		floorSum += floors[i]
	}

	leftover := totalCents - floorSum
	shares := make([]models.ExpenseShare, len(members))
	for i, m := range members {
		c := floors[i]
		if leftover > 0 {
			c++
			leftover--
		}
		shares[i] = models.ExpenseShare{UserID: m, ShareAmount: fromCents(c)}
	}
	return shares
}
