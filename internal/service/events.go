package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/divvyapp/divvy/internal/models"
)

// EventNewExpense is the event name for a committed expense.
const EventNewExpense = "NEW_EXPENSE"

// ExpensePayload is the wire representation of a committed expense, used
// both in API responses and in broadcast events. Amounts are fixed-point
// strings so consumers never touch floats.
type ExpensePayload struct {
	ID          string         `json:"id"`
	GroupID     string         `json:"group_id"`
	Description string         `json:"description"`
	Amount      string         `json:"amount"`
	Date        string         `json:"date"`
	Category    string         `json:"category,omitempty"`
	PaidBy      string         `json:"paid_by"`
	Shares      []SharePayload `json:"shares"`
	CreatedAt   int64          `json:"created_at"`
}

// SharePayload is one member's portion of an expense on the wire.
type SharePayload struct {
	UserID      string `json:"user_id"`
	ShareAmount string `json:"share_amount"`
}

// NewExpensePayload converts a persisted expense into its wire shape.
func NewExpensePayload(expense *models.Expense) ExpensePayload {
	shares := make([]SharePayload, 0, len(expense.Shares))
	for _, share := range expense.Shares {
		shares = append(shares, SharePayload{
			UserID:      share.UserID,
			ShareAmount: share.ShareAmount.StringFixed(2),
		})
	}
	return ExpensePayload{
		ID:          expense.ID,
		GroupID:     expense.GroupID,
		Description: expense.Description,
		Amount:      expense.Amount.StringFixed(2),
		Date:        expense.Date.Format(time.DateOnly),
		Category:    expense.Category,
		PaidBy:      expense.PaidBy,
		Shares:      shares,
		CreatedAt:   expense.CreatedAt,
	}
}

// expenseEnvelope is the broadcast envelope for a committed expense.
type expenseEnvelope struct {
	Event   string         `json:"event"`
	Expense ExpensePayload `json:"expense"`
}

// EncodeExpenseEvent marshals the NEW_EXPENSE envelope for an expense.
func EncodeExpenseEvent(expense *models.Expense) ([]byte, error) {
	body, err := json.Marshal(expenseEnvelope{
		Event:   EventNewExpense,
		Expense: NewExpensePayload(expense),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal expense event: %w", err)
	}
	return body, nil
}
