package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/conversation"
	"restaurant-assistant/internal/microservices/dispatcher"
	"restaurant-assistant/internal/microservices/permission"
	"restaurant-assistant/internal/store/memory"
)

type fakeRunner struct {
	mu    sync.Mutex
	calls []dispatcher.Call
}

func (f *fakeRunner) Execute(_ context.Context, c dispatcher.Call) dispatcher.Result {
	f.mu.Lock()
	f.calls = append(f.calls, c)
	f.mu.Unlock()
	if c.TenantID == "" {
		return dispatcher.Result{Success: false, Code: "MissingTenant", Error: "A restaurant must be selected"}
	}
	return dispatcher.Result{Success: true, Message: "ok"}
}

func newServer(t *testing.T, limits map[string]int) (*httptest.Server, *fakeRunner) {
	t.Helper()
	runner := &fakeRunner{}
	tracker := conversation.NewTracker(memory.New(), nil, time.UTC, zap.NewNop())
	h := New(runner, tracker, permission.NewGateway(limits), time.UTC, zap.NewNop())
	srv := httptest.NewServer(Router(h))
	t.Cleanup(srv.Close)
	return srv, runner
}

func do(t *testing.T, srv *httptest.Server, method, path, role, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("X-Tenant-ID", "R1")
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-Role", role)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestListTools_FilteredByRole(t *testing.T) {
	srv, _ := newServer(t, nil)

	var body struct {
		Version string           `json:"version"`
		Role    string           `json:"role"`
		Tools   []map[string]any `json:"tools"`
	}
	resp := do(t, srv, http.MethodGet, "/api/v1/tools", "cashier", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)

	assert.Equal(t, permission.CatalogVersion, body.Version)
	assert.Equal(t, "cashier", body.Role)
	gw := permission.NewGateway(nil)
	assert.Len(t, body.Tools, len(gw.FilterTools(permission.Catalog(), domain.RoleCashier)))
	for _, tool := range body.Tools {
		fn := tool["function"].(map[string]any)
		assert.NotEqual(t, "place_order", fn["name"])
	}
}

func TestCallTool_PassesIdentityAndAlways200(t *testing.T) {
	srv, runner := newServer(t, nil)

	resp := do(t, srv, http.MethodPost, "/api/v1/tools/get_menu", "waiter", `{"args":{"category":"Mains"},"session_id":"s1"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var res dispatcher.Result
	decodeJSON(t, resp, &res)
	assert.True(t, res.Success)

	runner.mu.Lock()
	require.Len(t, runner.calls, 1)
	c := runner.calls[0]
	runner.mu.Unlock()
	assert.Equal(t, "get_menu", c.Tool)
	assert.Equal(t, "R1", c.TenantID)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "waiter", c.Role)
	assert.Equal(t, "s1", c.SessionID)
	assert.JSONEq(t, `{"category":"Mains"}`, string(c.Args))

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/tools/get_menu", nil)
	require.NoError(t, err)
	resp2, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, http.StatusOK, resp2.StatusCode)
	decodeJSON(t, resp2, &res)
	assert.Equal(t, "MissingTenant", res.Code)

	resp = do(t, srv, http.MethodPost, "/api/v1/tools/get_menu", "waiter", `{"args":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionLifecycleAndQuota(t *testing.T) {
	srv, _ := newServer(t, map[string]int{"waiter": 2})

	resp := do(t, srv, http.MethodPost, "/api/v1/sessions", "waiter", "")
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var started struct {
		Session domain.Session    `json:"session"`
		Quota   domain.LimitCheck `json:"quota"`
	}
	decodeJSON(t, resp, &started)
	assert.Equal(t, 2, started.Quota.Remaining)
	sid := started.Session.ID
	require.NotEmpty(t, sid)

	for _, msg := range []string{`{"content":"two paneer"}`, `{"role":"assistant","content":"done"}`} {
		resp = do(t, srv, http.MethodPost, "/api/v1/sessions/"+sid+"/messages", "waiter", msg)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	}
	resp = do(t, srv, http.MethodPost, "/api/v1/sessions/"+sid+"/messages", "waiter", `{"role":"robot","content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/sessions/"+sid+"?limit=1", "waiter", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got struct {
		Session  domain.Session   `json:"session"`
		Messages []domain.Message `json:"messages"`
	}
	decodeJSON(t, resp, &got)
	assert.Equal(t, 2, got.Session.MessageCount)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "done", got.Messages[0].Content)

	resp = do(t, srv, http.MethodPost, "/api/v1/sessions", "waiter", "")
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	var refused map[string]any
	decodeJSON(t, resp, &refused)
	assert.Equal(t, "QuotaExceeded", refused["type"])

	// Managers have their own, larger allowance.
	resp = do(t, srv, http.MethodPost, "/api/v1/sessions", "manager", "")
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, srv, http.MethodPost, "/api/v1/sessions/"+sid+"/end", "waiter", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ended domain.Session
	decodeJSON(t, resp, &ended)
	assert.Equal(t, domain.SessionCompleted, ended.Status)
	assert.Equal(t, `2 messages; opened with: "two paneer"`, ended.Summary)

	resp = do(t, srv, http.MethodPost, "/api/v1/sessions/missing/end", "waiter", `{"summary":"x"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = do(t, srv, http.MethodGet, "/api/v1/usage", "waiter", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var usage struct {
		Usage     domain.DailyUsage `json:"usage"`
		Limit     int               `json:"limit"`
		Remaining int               `json:"remaining"`
	}
	decodeJSON(t, resp, &usage)
	assert.Equal(t, 2, usage.Usage.MessageCount)
	assert.Equal(t, 2, usage.Usage.SessionCount)
	assert.Equal(t, 2, usage.Limit)
	assert.Equal(t, 0, usage.Remaining)

	resp = do(t, srv, http.MethodGet, "/api/v1/usage?date=yesterday", "waiter", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStartSession_MissingTenant(t *testing.T) {
	srv, _ := newServer(t, nil)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/sessions", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
