// Package server exposes the HTTP JSON API and the per-group SSE event
// stream. Handlers translate between wire shapes and the service layer;
// all policy lives below.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/divvyapp/divvy/internal/auth"
	"github.com/divvyapp/divvy/internal/broadcast"
	"github.com/divvyapp/divvy/internal/middleware"
	"github.com/divvyapp/divvy/internal/service"
)

type Server struct {
	users       *service.UserService
	groups      *service.GroupService
	expenses    *service.ExpenseService
	settlements *service.SettlementService
	broadcaster *broadcast.Broadcaster
	tokens      *auth.TokenManager
}

func New(
	users *service.UserService,
	groups *service.GroupService,
	expenses *service.ExpenseService,
	settlements *service.SettlementService,
	broadcaster *broadcast.Broadcaster,
	tokens *auth.TokenManager,
) *Server {
	return &Server{
		users:       users,
		groups:      groups,
		expenses:    expenses,
		settlements: settlements,
		broadcaster: broadcaster,
		tokens:      tokens,
	}
}

// Handler builds the full route tree. Everything under /api/v1 requires a
// Bearer token; health and metrics are open.
func (s *Server) Handler() http.Handler {
	api := http.NewServeMux()
	handle := func(pattern string, h http.HandlerFunc) {
		api.Handle(pattern, middleware.RecordPattern(h))
	}
	handle("POST /api/v1/users", s.handleCreateUser)
	handle("GET /api/v1/users/{userID}", s.handleGetUser)
	handle("POST /api/v1/groups", s.handleCreateGroup)
	handle("GET /api/v1/groups", s.handleListGroups)
	handle("GET /api/v1/groups/{groupID}", s.handleGetGroup)
	handle("POST /api/v1/groups/{groupID}/members", s.handleAddMember)
	handle("DELETE /api/v1/groups/{groupID}/members/{userID}", s.handleRemoveMember)
	handle("POST /api/v1/groups/{groupID}/expenses", s.handleCreateExpense)
	handle("GET /api/v1/groups/{groupID}/expenses", s.handleListExpenses)
	handle("POST /api/v1/groups/{groupID}/settlements", s.handleRecordSettlement)
	handle("GET /api/v1/groups/{groupID}/balances", s.handleGetBalances)
	handle("GET /api/v1/groups/{groupID}/events", s.handleEvents)

	root := http.NewServeMux()
	root.Handle("/api/v1/", middleware.RequireAuth(s.tokens)(api))
	root.Handle("GET /healthz", middleware.RecordPattern(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})))
	root.Handle("GET /metrics", middleware.RecordPattern(promhttp.Handler()))

	return middleware.Metrics(middleware.Logging(root))
}
