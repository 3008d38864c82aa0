package server

import (
	"net/http"
	"time"

	"github.com/divvyapp/divvy/internal/apperr"
	"github.com/divvyapp/divvy/internal/calculator"
	"github.com/divvyapp/divvy/internal/middleware"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/service"
)

type userResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
}

func newUserResponse(user *models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

type groupResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	CreatedBy   string   `json:"created_by"`
	Members     []string `json:"members"`
	CreatedAt   int64    `json:"created_at"`
}

func newGroupResponse(group *models.Group) groupResponse {
	return groupResponse{
		ID:          group.ID,
		Name:        group.Name,
		Description: group.Description,
		CreatedBy:   group.CreatedBy,
		Members:     group.Members,
		CreatedAt:   group.CreatedAt,
	}
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.users.CreateUser(r.Context(), req.Username, req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	user, err := s.users.GetUser(r.Context(), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user))
}

func (s *Server) handleCreateGroup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		InviteEmails []string `json:"invite_emails"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	creatorID := middleware.GetUserID(r.Context())
	group, err := s.groups.CreateGroup(r.Context(), creatorID, req.Name, req.Description, req.InviteEmails)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newGroupResponse(group))
}

func (s *Server) handleListGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := s.groups.ListGroups(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, group := range groups {
		out = append(out, newGroupResponse(group))
	}
	writeJSON(w, http.StatusOK, map[string]any{"groups": out})
}

func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	group, err := s.groups.GetGroup(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newGroupResponse(group))
}

func (s *Server) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	user, err := s.groups.AddMember(r.Context(), r.PathValue("groupID"), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserResponse(user))
}

func (s *Server) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	err := s.groups.RemoveMember(r.Context(), r.PathValue("groupID"), r.PathValue("userID"))
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description  string            `json:"description"`
		Amount       string            `json:"amount"`
		Date         string            `json:"date"`
		Category     string            `json:"category"`
		PaidBy       string            `json:"paid_by"`
		Method       string            `json:"method"`
		Participants []string          `json:"participants"`
		Amounts      map[string]string `json:"amounts"`
		Weights      map[string]string `json:"weights"`
		Percents     map[string]string `json:"percents"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	amounts, err := parseAmountMap("amount", req.Amounts)
	if err != nil {
		writeError(w, err)
		return
	}
	weights, err := parseAmountMap("weight", req.Weights)
	if err != nil {
		writeError(w, err)
		return
	}
	percents, err := parseAmountMap("percentage", req.Percents)
	if err != nil {
		writeError(w, err)
		return
	}

	var date time.Time
	if req.Date != "" {
		date, err = time.Parse(time.DateOnly, req.Date)
		if err != nil {
			writeError(w, apperr.Validation("invalid date %q, want YYYY-MM-DD", req.Date))
			return
		}
	}

	paidBy := req.PaidBy
	if paidBy == "" {
		paidBy = middleware.GetUserID(r.Context())
	}

	expense, err := s.expenses.CreateExpense(r.Context(), service.CreateExpenseInput{
		GroupID:      r.PathValue("groupID"),
		Description:  req.Description,
		Amount:       amount,
		Date:         date,
		Category:     req.Category,
		PaidBy:       paidBy,
		Method:       calculator.SplitMethod(req.Method),
		Participants: req.Participants,
		Amounts:      amounts,
		Weights:      weights,
		Percents:     percents,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, service.NewExpensePayload(expense))
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := s.expenses.ListGroupExpenses(r.Context(), r.PathValue("groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]service.ExpensePayload, 0, len(expenses))
	for _, expense := range expenses {
		out = append(out, service.NewExpensePayload(expense))
	}
	writeJSON(w, http.StatusOK, map[string]any{"expenses": out})
}

type settlementResponse struct {
	ID         string `json:"id"`
	GroupID    string `json:"group_id"`
	FromUserID string `json:"from_user_id"`
	ToUserID   string `json:"to_user_id"`
	Amount     string `json:"amount"`
	Note       string `json:"note,omitempty"`
	CreatedAt  int64  `json:"created_at"`
}

func (s *Server) handleRecordSettlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromUserID string `json:"from_user_id"`
		ToUserID   string `json:"to_user_id"`
		Amount     string `json:"amount"`
		Note       string `json:"note"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	amount, err := parseAmount("amount", req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}
	fromUserID := req.FromUserID
	if fromUserID == "" {
		fromUserID = middleware.GetUserID(r.Context())
	}

	settlement, err := s.settlements.RecordSettlement(r.Context(), r.PathValue("groupID"), fromUserID, req.ToUserID, amount, req.Note)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, settlementResponse{
		ID:         settlement.ID,
		GroupID:    settlement.GroupID,
		FromUserID: settlement.FromUserID,
		ToUserID:   settlement.ToUserID,
		Amount:     settlement.Amount.StringFixed(2),
		Note:       settlement.Note,
		CreatedAt:  settlement.CreatedAt,
	})
}

type balanceEntry struct {
	UserID   string `json:"user_id"`
	Username string `json:"username,omitempty"`
	Amount   string `json:"amount"`
}

func (s *Server) handleGetBalances(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	summary, err := s.groups.GetGroupBalances(r.Context(), r.PathValue("groupID"), userID)
	if err != nil {
		writeError(w, err)
		return
	}

	entries := make([]balanceEntry, 0, len(summary.IndividualBalances))
	for _, b := range summary.IndividualBalances {
		entries = append(entries, balanceEntry{
			UserID:   b.UserID,
			Username: b.Username,
			Amount:   b.Amount.StringFixed(2),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"group_id":            summary.GroupID,
		"total_owed_by_you":   summary.TotalOwedByYou.StringFixed(2),
		"total_owed_to_you":   summary.TotalOwedToYou.StringFixed(2),
		"individual_balances": entries,
	})
}
