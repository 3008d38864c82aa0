package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/models"
)

// CreateExpense persists an expense and its shares atomically. Share
// positions record the caller's ordering so listings replay it exactly.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, description, amount, date, category, paid_by, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Description, expense.Amount.StringFixed(2),
		expense.Date.Format(time.DateOnly), expense.Category, expense.PaidBy, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert expense: %w", err)
	}

	for i, share := range expense.Shares {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO expense_shares (expense_id, user_id, share_amount, position) VALUES (?, ?, ?, ?)",
			expense.ID, share.UserID, share.ShareAmount.StringFixed(2), i,
		)
		if err != nil {
			return fmt.Errorf("insert expense share %s: %w", share.UserID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// ListExpensesByGroup retrieves a group's expenses in creation order, each
// with its shares in recorded position order.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]*models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, description, amount, date, category, paid_by, created_at
		 FROM expenses WHERE group_id = ? ORDER BY rowid`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*models.Expense
	for rows.Next() {
		expense, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}

	for _, expense := range expenses {
		shares, err := s.listShares(ctx, expense.ID)
		if err != nil {
			return nil, err
		}
		expense.Shares = shares
	}

	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount, date string
	err := row.Scan(&expense.ID, &expense.GroupID, &expense.Description, &amount,
		&date, &expense.Category, &expense.PaidBy, &expense.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("scan expense: %w", err)
	}
	expense.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("parse expense amount %q: %w", amount, err)
	}
	expense.Date, err = time.Parse(time.DateOnly, date)
	if err != nil {
		return nil, fmt.Errorf("parse expense date %q: %w", date, err)
	}
	return expense, nil
}

func (s *SQLiteStore) listShares(ctx context.Context, expenseID string) ([]models.ExpenseShare, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, share_amount FROM expense_shares WHERE expense_id = ? ORDER BY position",
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list expense shares: %w", err)
	}
	defer rows.Close()

	var shares []models.ExpenseShare
	for rows.Next() {
		var share models.ExpenseShare
		var amount string
		if err := rows.Scan(&share.UserID, &amount); err != nil {
			return nil, fmt.Errorf("scan expense share: %w", err)
		}
		share.ShareAmount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("parse share amount %q: %w", amount, err)
		}
		shares = append(shares, share)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense shares: %w", err)
	}

	return shares, nil
}
