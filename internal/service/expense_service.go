package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/broadcast"
	"github.com/divvyapp/divvy/internal/cache"
	"github.com/divvyapp/divvy/internal/calculator"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/storage"
)

var expensesCreated = promauto.NewCounter(prometheus.CounterOpts{
	Name: "divvy_expenses_created_total",
	Help: "Expenses committed to group ledgers.",
})

// EventPublisher delivers committed-expense envelopes to out-of-process
// consumers. *amqp.Publisher implements it.
type EventPublisher interface {
	Publish(ctx context.Context, body []byte) error
}

// ExpenseService commits shared expenses: allocation, atomic persistence,
// cache invalidation and event fan-out.
type ExpenseService struct {
	store       storage.Store
	locks       *GroupLocks
	balances    *cache.LRU[*models.GroupBalances]
	broadcaster *broadcast.Broadcaster
	publisher   EventPublisher
}

// NewExpenseService creates a new ExpenseService. publisher may be nil when
// no broker is configured.
func NewExpenseService(
	store storage.Store,
	locks *GroupLocks,
	balances *cache.LRU[*models.GroupBalances],
	broadcaster *broadcast.Broadcaster,
	publisher EventPublisher,
) *ExpenseService {
	return &ExpenseService{
		store:       store,
		locks:       locks,
		balances:    balances,
		broadcaster: broadcaster,
		publisher:   publisher,
	}
}

// CreateExpenseInput carries everything needed to commit one expense.
// Participants defaults to all active group members when empty; its order is
// significant because rounding leftovers go to the first participants.
type CreateExpenseInput struct {
	GroupID      string
	Description  string
	Amount       decimal.Decimal
	Date         time.Time
	Category     string
	PaidBy       string
	Method       calculator.SplitMethod
	Participants []string
	Amounts      map[string]decimal.Decimal
	Weights      map[string]decimal.Decimal
	Percents     map[string]decimal.Decimal
}

// CreateExpense validates the request against current membership, allocates
// shares and commits the expense atomically under the group's write lock.
// The committed expense is broadcast to live subscribers in commit order and
// published to the broker; neither delivery can fail the commit.
func (s *ExpenseService) CreateExpense(ctx context.Context, in CreateExpenseInput) (*models.Expense, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, apperr.Validation("description is required")
	}

	expense, event, err := s.commit(ctx, in)
	if err != nil {
		return nil, err
	}

	expensesCreated.Inc()
	if event != nil && s.publisher != nil {
		// Off the group lock, and bounded by the publisher's own timeout.
		// The broker is best-effort: its consumers reconcile from the
		// ledger, so a failed publish is logged, not surfaced.
		if err := s.publisher.Publish(ctx, event); err != nil {
			slog.Warn("broker publish failed", "expense_id", expense.ID, "error", err)
		}
	}

	slog.Info("expense created",
		"expense_id", expense.ID,
		"group_id", expense.GroupID,
		"amount", expense.Amount.StringFixed(2),
		"method", in.Method,
		"shares", len(expense.Shares),
	)
	return expense, nil
}

// commit is the locked section of CreateExpense: membership validation,
// allocation, the atomic write, cache invalidation and the ordered broadcast
// enqueue. It returns the encoded envelope for the broker.
func (s *ExpenseService) commit(ctx context.Context, in CreateExpenseInput) (*models.Expense, []byte, error) {
	unlock := s.locks.Lock(in.GroupID)
	defer unlock()

	group, err := s.store.GetGroup(ctx, in.GroupID)
	if err != nil {
		return nil, nil, err
	}
	if !group.HasMember(in.PaidBy) {
		return nil, nil, apperr.Validation("payer %s is not an active member of group %s", in.PaidBy, in.GroupID)
	}

	participants := in.Participants
	if len(participants) == 0 {
		participants = group.Members
	}
	for _, p := range participants {
		if !group.HasMember(p) {
			return nil, nil, apperr.Validation("participant %s is not an active member of group %s", p, in.GroupID)
		}
	}

	shares, err := calculator.Allocate(calculator.AllocationRequest{
		Amount:   in.Amount,
		Method:   in.Method,
		Members:  participants,
		Amounts:  in.Amounts,
		Weights:  in.Weights,
		Percents: in.Percents,
	})
	if err != nil {
		return nil, nil, err
	}

	date := in.Date
	if date.IsZero() {
		date = time.Now().UTC().Truncate(24 * time.Hour)
	}

	expense := &models.Expense{
		GroupID:     in.GroupID,
		Description: strings.TrimSpace(in.Description),
		Amount:      in.Amount,
		Date:        date,
		Category:    strings.TrimSpace(in.Category),
		PaidBy:      in.PaidBy,
		Shares:      shares,
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, nil, err
	}

	s.balances.Delete(in.GroupID)

	event, err := EncodeExpenseEvent(expense)
	if err != nil {
		slog.Error("encoding expense event failed", "expense_id", expense.ID, "error", err)
		return expense, nil, nil
	}
	s.broadcaster.Publish(in.GroupID, event)
	return expense, event, nil
}

// ListGroupExpenses retrieves the group's committed expenses with shares,
// in commit order.
func (s *ExpenseService) ListGroupExpenses(ctx context.Context, groupID string) ([]*models.Expense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByGroup(ctx, groupID)
}
