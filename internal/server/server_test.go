package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/divvyapp/divvy/internal/auth"
	"github.com/divvyapp/divvy/internal/broadcast"
	"github.com/divvyapp/divvy/internal/cache"
	"github.com/divvyapp/divvy/internal/models"
	"github.com/divvyapp/divvy/internal/service"
	"github.com/divvyapp/divvy/internal/storage/sqlite"
)

type testAPI struct {
	srv    *httptest.Server
	tokens *auth.TokenManager
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "divvy-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	locks := service.NewGroupLocks()
	balances := cache.NewLRU[*models.GroupBalances](128, time.Minute)
	broadcaster := broadcast.New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	t.Cleanup(broadcaster.Close)
	tokens := auth.NewTokenManager("test-secret-key-32-bytes-long!!!", time.Hour)

	srv := New(
		service.NewUserService(store),
		service.NewGroupService(store, locks, balances),
		service.NewExpenseService(store, locks, balances, broadcaster, nil),
		service.NewSettlementService(store, locks, balances),
		broadcaster,
		tokens,
	)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &testAPI{srv: ts, tokens: tokens}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, a.srv.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := a.srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, dst any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
}

// createUser registers a user and returns it with a valid token.
func (a *testAPI) createUser(t *testing.T, username string) (userResponse, string) {
	t.Helper()
	// Bootstrap token: identity comes from the external provider, so any
	// signed token is accepted even before the directory entry exists.
	boot, err := a.tokens.Generate(&models.User{ID: "bootstrap", Email: "boot@example.com"})
	require.NoError(t, err)

	resp := a.do(t, http.MethodPost, "/api/v1/users", boot, map[string]string{
		"username": username,
		"email":    username + "@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var user userResponse
	decodeBody(t, resp, &user)

	token, err := a.tokens.Generate(&models.User{ID: user.ID, Email: user.Email})
	require.NoError(t, err)
	return user, token
}

func (a *testAPI) createGroup(t *testing.T, token string, inviteEmails ...string) groupResponse {
	t.Helper()
	resp := a.do(t, http.MethodPost, "/api/v1/groups", token, map[string]any{
		"name":          "trip",
		"invite_emails": inviteEmails,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var group groupResponse
	decodeBody(t, resp, &group)
	return group
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/api/v1/groups", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/api/v1/groups", "garbage-token", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHealthAndMetricsOpen(t *testing.T) {
	api := newTestAPI(t)

	resp := api.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = api.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestUserEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice, token := api.createUser(t, "alice")

	resp := api.do(t, http.MethodGet, "/api/v1/users/"+alice.ID, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got userResponse
	decodeBody(t, resp, &got)
	require.Equal(t, "alice", got.Username)

	resp = api.do(t, http.MethodGet, "/api/v1/users/nope", token, nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGroupLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.createUser(t, "alice")
	bob, _ := api.createUser(t, "bob")

	group := api.createGroup(t, aliceToken, bob.Email)
	require.ElementsMatch(t, []string{alice.ID, bob.ID}, group.Members)

	t.Run("list groups for caller", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/groups", aliceToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Groups []groupResponse `json:"groups"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Groups, 1)
		require.Equal(t, group.ID, body.Groups[0].ID)
	})

	t.Run("duplicate member conflicts", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/members", aliceToken,
			map[string]string{"email": bob.Email})
		require.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("unknown group is 404", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/groups/nope", aliceToken, nil)
		require.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("settled member removal", func(t *testing.T) {
		resp := api.do(t, http.MethodDelete, "/api/v1/groups/"+group.ID+"/members/"+bob.ID, aliceToken, nil)
		require.Equal(t, http.StatusNoContent, resp.StatusCode)
	})
}

func TestExpenseEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.createUser(t, "alice")
	bob, _ := api.createUser(t, "bob")
	group := api.createGroup(t, aliceToken, bob.Email)

	t.Run("create evenly split", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, map[string]any{
			"description": "groceries",
			"amount":      "10.00",
			"date":        "2026-03-14",
			"category":    "food",
			"method":      "Evenly",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var payload service.ExpensePayload
		decodeBody(t, resp, &payload)
		require.Equal(t, "10.00", payload.Amount)
		require.Equal(t, alice.ID, payload.PaidBy)
		require.Len(t, payload.Shares, 2)
	})

	t.Run("percentages must sum to 100", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, map[string]any{
			"description":  "snacks",
			"amount":       "10.00",
			"method":       "Percentage",
			"participants": []string{alice.ID, bob.ID},
			"percents":     map[string]string{alice.ID: "50", bob.ID: "49"},
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("bad amount rejected", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, map[string]any{
			"description": "snacks",
			"amount":      "ten",
			"method":      "Evenly",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("list expenses", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			Expenses []service.ExpensePayload `json:"expenses"`
		}
		decodeBody(t, resp, &body)
		require.Len(t, body.Expenses, 1)
		require.Equal(t, "groceries", body.Expenses[0].Description)
	})
}

func TestBalanceAndSettlementEndpoints(t *testing.T) {
	api := newTestAPI(t)
	alice, aliceToken := api.createUser(t, "alice")
	bob, bobToken := api.createUser(t, "bob")
	group := api.createGroup(t, aliceToken, bob.Email)

	resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, map[string]any{
		"description": "hotel",
		"amount":      "100.00",
		"method":      "Evenly",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	t.Run("balances for creditor", func(t *testing.T) {
		resp := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID+"/balances", aliceToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body struct {
			TotalOwedByYou     string         `json:"total_owed_by_you"`
			TotalOwedToYou     string         `json:"total_owed_to_you"`
			IndividualBalances []balanceEntry `json:"individual_balances"`
		}
		decodeBody(t, resp, &body)
		require.Equal(t, "0.00", body.TotalOwedByYou)
		require.Equal(t, "50.00", body.TotalOwedToYou)
		require.Len(t, body.IndividualBalances, 1)
		require.Equal(t, "bob", body.IndividualBalances[0].Username)
	})

	t.Run("settlement from caller", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/settlements", bobToken, map[string]any{
			"to_user_id": alice.ID,
			"amount":     "50.00",
			"note":       "paid cash",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		var settlement settlementResponse
		decodeBody(t, resp, &settlement)
		require.Equal(t, bob.ID, settlement.FromUserID)

		balResp := api.do(t, http.MethodGet, "/api/v1/groups/"+group.ID+"/balances", bobToken, nil)
		var body struct {
			TotalOwedByYou string `json:"total_owed_by_you"`
		}
		decodeBody(t, balResp, &body)
		require.Equal(t, "0.00", body.TotalOwedByYou)
	})

	t.Run("self settlement rejected", func(t *testing.T) {
		resp := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/settlements", bobToken, map[string]any{
			"to_user_id": bob.ID,
			"amount":     "1.00",
		})
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestEventStream(t *testing.T) {
	api := newTestAPI(t)
	_, aliceToken := api.createUser(t, "alice")
	bob, _ := api.createUser(t, "bob")
	group := api.createGroup(t, aliceToken, bob.Email)

	req, err := http.NewRequest(http.MethodGet, api.srv.URL+"/api/v1/groups/"+group.ID+"/events", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+aliceToken)

	resp, err := api.srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	// Give the subscription a moment to register before committing.
	time.Sleep(50 * time.Millisecond)

	created := api.do(t, http.MethodPost, "/api/v1/groups/"+group.ID+"/expenses", aliceToken, map[string]any{
		"description": "taxi",
		"amount":      "9.00",
		"method":      "Evenly",
	})
	require.Equal(t, http.StatusCreated, created.StatusCode)

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(resp.Body)
		for scanner.Scan() {
			if line := scanner.Text(); strings.HasPrefix(line, "data: ") {
				lines <- strings.TrimPrefix(line, "data: ")
				return
			}
		}
	}()

	select {
	case line := <-lines:
		var envelope struct {
			Event   string                 `json:"event"`
			Expense service.ExpensePayload `json:"expense"`
		}
		require.NoError(t, json.Unmarshal([]byte(line), &envelope))
		require.Equal(t, service.EventNewExpense, envelope.Event)
		require.Equal(t, "taxi", envelope.Expense.Description)
		require.Equal(t, "9.00", envelope.Expense.Amount)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for SSE event")
	}
}

func TestUnknownRouteAndBadBody(t *testing.T) {
	api := newTestAPI(t)
	_, token := api.createUser(t, "alice")

	resp := api.do(t, http.MethodPost, "/api/v1/groups", token, map[string]any{
		"name":    "trip",
		"unknown": true,
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	raw, err := http.NewRequest(http.MethodPost, api.srv.URL+"/api/v1/groups", strings.NewReader("{not json"))
	require.NoError(t, err)
	raw.Header.Set("Authorization", "Bearer "+token)
	badResp, err := api.srv.Client().Do(raw)
	require.NoError(t, err)
	defer badResp.Body.Close()
	require.Equal(t, http.StatusBadRequest, badResp.StatusCode)
	body, _ := io.ReadAll(badResp.Body)
	require.Contains(t, string(body), "invalid request body")
}
