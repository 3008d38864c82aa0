package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Epsilon is the largest tolerated discrepancy between an expense amount and
// the sum of its shares: one minor currency unit.
var Epsilon = decimal.New(1, -2) // 0.01

// Expense represents a shared expense committed to a group's ledger.
// Expenses are immutable once created; edits are modeled as a new expense
// plus a reversing entry.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group this expense belongs to.
	GroupID string

	// Description is the human-readable purpose (e.g., "Dinner", "Groceries").
	Description string

	// Amount is the positive total paid, in major currency units.
	Amount decimal.Decimal

	// Date is the day the expense occurred.
	Date time.Time

	// Category is a free-form classification (e.g., "Food", "Travel").
	Category string

	// PaidBy is the user ID of the member who paid the full amount.
	PaidBy string

	// Shares is the ordered breakdown of the amount across members.
	// Invariant: the share amounts sum to Amount within Epsilon.
	Shares []ExpenseShare

	// CreatedAt is the Unix timestamp when the expense was committed.
	CreatedAt int64
}

// ExpenseShare is the portion of an expense attributed to one member. For
// members other than the payer it is the debt owed to the payer; the payer's
// own share is simply their part of the total and creates no debt.
type ExpenseShare struct {
	// UserID is the member this share belongs to.
	UserID string

	// ShareAmount is the non-negative portion of the expense amount.
	ShareAmount decimal.Decimal
}

// ShareSum returns the sum of all share amounts.
func (e *Expense) ShareSum() decimal.Decimal {
	sum := decimal.Zero
	for _, s := range e.Shares {
		sum = sum.Add(s.ShareAmount)
	}
	return sum
}
