// Package gateway exposes the dispatcher and the session tracker over HTTP.
// Callers identify themselves with the X-Tenant-ID, X-User-ID and X-Role
// headers; authentication happens in front of this service.
package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/dispatcher"
	"restaurant-assistant/internal/microservices/permission"
)

type ToolRunner interface {
	Execute(ctx context.Context, call dispatcher.Call) dispatcher.Result
}

type Sessions interface {
	CheckLimit(ctx context.Context, tenantID, userID string, limit int) (domain.LimitCheck, error)
	StartSession(ctx context.Context, tenantID, userID string, role domain.Role) (*domain.Session, error)
	RecordMessage(ctx context.Context, tenantID, sessionID, role, content string) error
	EndSession(ctx context.Context, tenantID, sessionID, summary string) (*domain.Session, error)
	GetSession(ctx context.Context, tenantID, sessionID string) (*domain.Session, error)
	Messages(ctx context.Context, tenantID, sessionID string) ([]domain.Message, error)
	DailyUsage(ctx context.Context, tenantID, userID string, asOf time.Time) (domain.DailyUsage, error)
}

type Handler struct {
	tools    ToolRunner
	sessions Sessions
	perms    *permission.Gateway
	loc      *time.Location
	lg       *zap.Logger
}

func New(tools ToolRunner, sessions Sessions, perms *permission.Gateway, loc *time.Location, lg *zap.Logger) *Handler {
	if loc == nil {
		loc = time.UTC
	}
	return &Handler{tools: tools, sessions: sessions, perms: perms, loc: loc, lg: lg}
}

type identity struct {
	TenantID string
	UserID   string
	Role     string
}

func identify(r *http.Request) identity {
	return identity{
		TenantID: strings.TrimSpace(r.Header.Get("X-Tenant-ID")),
		UserID:   strings.TrimSpace(r.Header.Get("X-User-ID")),
		Role:     strings.TrimSpace(r.Header.Get("X-Role")),
	}
}

func (h *Handler) ListTools(w http.ResponseWriter, r *http.Request) {
	role := permission.NormalizeRole(identify(r).Role)
	tools := h.perms.FilterTools(permission.Catalog(), role)
	schemas := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		schemas = append(schemas, t.JSONSchema())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"version": permission.CatalogVersion,
		"role":    role,
		"tools":   schemas,
	})
}

type toolRequest struct {
	Args      json.RawMessage `json:"args"`
	SessionID string          `json:"session_id"`
}

// CallTool always answers 200; failures are part of the result.
func (h *Handler) CallTool(w http.ResponseWriter, r *http.Request) {
	var req toolRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identify(r)
	res := h.tools.Execute(r.Context(), dispatcher.Call{
		Tool:      r.PathValue("name"),
		Args:      req.Args,
		TenantID:  id.TenantID,
		UserID:    id.UserID,
		Role:      id.Role,
		SessionID: req.SessionID,
	})
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	id := identify(r)
	role := permission.NormalizeRole(id.Role)
	limit := h.perms.DailyLimit(role)

	check, err := h.sessions.CheckLimit(r.Context(), id.TenantID, id.UserID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if !check.Allowed {
		h.lg.Info("session_refused", zap.String("tenant_id", id.TenantID), zap.String("user_id", id.UserID),
			zap.Int("used", check.Used), zap.Int("limit", check.Limit))
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"type":   domain.CodeOf(domain.ErrQuotaExceeded),
			"title":  http.StatusText(http.StatusTooManyRequests),
			"status": http.StatusTooManyRequests,
			"detail": "You have used today's message allowance",
			"quota":  check,
		})
		return
	}

	s, err := h.sessions.StartSession(r.Context(), id.TenantID, id.UserID, role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": s, "quota": check})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id := identify(r)
	sid := r.PathValue("id")
	s, err := h.sessions.GetSession(r.Context(), id.TenantID, sid)
	if err != nil {
		writeError(w, err)
		return
	}
	msgs, err := h.sessions.Messages(r.Context(), id.TenantID, sid)
	if err != nil {
		writeError(w, err)
		return
	}
	if limit := atoiDefault(r.URL.Query().Get("limit"), 0); limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": s, "messages": msgs})
}

type messageRequest struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}
	id := identify(r)
	if err := h.sessions.RecordMessage(r.Context(), id.TenantID, r.PathValue("id"), req.Role, req.Content); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type endRequest struct {
	Summary string `json:"summary"`
}

func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	var req endRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	id := identify(r)
	s, err := h.sessions.EndSession(r.Context(), id.TenantID, r.PathValue("id"), req.Summary)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *Handler) Usage(w http.ResponseWriter, r *http.Request) {
	id := identify(r)
	var asOf time.Time
	if d := r.URL.Query().Get("date"); d != "" {
		t, err := time.ParseInLocation(domain.DayLayout, d, h.loc)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "InvalidArgument", "date must be YYYY-MM-DD")
			return
		}
		asOf = t
	}
	u, err := h.sessions.DailyUsage(r.Context(), id.TenantID, id.UserID, asOf)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := h.perms.DailyLimit(permission.NormalizeRole(id.Role))
	remaining := limit - u.MessageCount
	if remaining < 0 {
		remaining = 0
	}
	writeJSON(w, http.StatusOK, map[string]any{"usage": u, "limit": limit, "remaining": remaining})
}
