// Package dispatcher is the single entry point for tool calls. It checks the
// tenant and the caller's role, finds the typed handler registered for the
// tool and turns every outcome, panics included, into a Result.
package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/permission"
)

// Call is one tool invocation as the orchestration layer sends it.
type Call struct {
	Tool      string          `json:"tool"`
	Args      json.RawMessage `json:"args,omitempty"`
	TenantID  string          `json:"tenant_id"`
	UserID    string          `json:"user_id"`
	Role      string          `json:"role"`
	SessionID string          `json:"session_id,omitempty"`
}

// Result is always data; Execute never returns an error.
type Result struct {
	Success         bool   `json:"success"`
	Message         string `json:"message,omitempty"`
	Data            any    `json:"data,omitempty"`
	Error           string `json:"error,omitempty"`
	Code            string `json:"code,omitempty"`
	OrderID         string `json:"order_id,omitempty"`
	EndConversation bool   `json:"end_conversation,omitempty"`
}

// Invocation is what a handler sees: the call with its role resolved.
type Invocation struct {
	Call
	Role domain.Role
}

type Handler func(ctx context.Context, inv Invocation) (Result, error)

// ActionRecorder receives the outcome of every call made inside a session.
type ActionRecorder interface {
	RecordAction(ctx context.Context, tenantID, sessionID string, rec domain.ActionRecord) error
}

type Dispatcher struct {
	perms    *permission.Gateway
	handlers map[domain.Capability]Handler
	recorder ActionRecorder
	lg       *zap.Logger
	now      func() time.Time
}

// New freezes the registry; handlers added to the map afterwards are not seen.
func New(perms *permission.Gateway, handlers map[domain.Capability]Handler, recorder ActionRecorder, lg *zap.Logger) *Dispatcher {
	reg := make(map[domain.Capability]Handler, len(handlers))
	for c, h := range handlers {
		reg[c] = h
	}
	return &Dispatcher{
		perms:    perms,
		handlers: reg,
		recorder: recorder,
		lg:       lg,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (d *Dispatcher) Execute(ctx context.Context, call Call) (res Result) {
	started := d.now()
	call.Tool = strings.TrimSpace(call.Tool)
	role := permission.NormalizeRole(call.Role)

	defer func() {
		if r := recover(); r != nil {
			d.lg.Error("tool_panicked", zap.String("tool", call.Tool), zap.String("tenant_id", call.TenantID),
				zap.Any("panic", r), zap.Stack("stack"))
			res = Result{Success: false, Code: "Internal", Error: fmt.Sprintf("Something went wrong while trying to %s", humanize(call.Tool))}
		}
		d.lg.Info("tool_invoked",
			zap.String("tool", call.Tool),
			zap.String("tenant_id", call.TenantID),
			zap.String("user_id", call.UserID),
			zap.String("role", string(role)),
			zap.Bool("success", res.Success),
			zap.String("code", res.Code),
			zap.Duration("duration", d.now().Sub(started)),
		)
		d.record(ctx, call, res)
	}()

	if strings.TrimSpace(call.TenantID) == "" {
		return d.fail(call.Tool, domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected before I can %s", humanize(call.Tool)))
	}

	capability := domain.Capability(call.Tool)
	if !d.perms.Has(role, capability) {
		d.lg.Warn("tool_denied", zap.String("tool", call.Tool), zap.String("role", string(role)), zap.String("user_id", call.UserID))
		return d.fail(call.Tool, domain.Errorf(domain.ErrPermissionDenied,
			"The %s role is not allowed to %s", role, humanize(call.Tool)))
	}
	h, ok := d.handlers[capability]
	if !ok {
		return d.fail(call.Tool, domain.Errorf(domain.ErrUnknownTool, "I don't know how to %s yet", humanize(call.Tool)))
	}

	out, err := h(ctx, Invocation{Call: call, Role: role})
	if err != nil {
		return d.fail(call.Tool, err)
	}
	out.Success = true
	return out
}

func (d *Dispatcher) fail(tool string, err error) Result {
	code := domain.CodeOf(err)
	var de *domain.Error
	switch {
	case errors.As(err, &de):
		return Result{Success: false, Code: code, Error: de.Message}
	case code == "TransientStoreConflict":
		return Result{Success: false, Code: code, Error: "The system is busy right now, please try again"}
	}
	d.lg.Error("tool_failed", zap.String("tool", tool), zap.Error(err))
	return Result{Success: false, Code: code, Error: fmt.Sprintf("I couldn't %s right now", humanize(tool))}
}

func (d *Dispatcher) record(ctx context.Context, call Call, res Result) {
	if d.recorder == nil || call.SessionID == "" || strings.TrimSpace(call.TenantID) == "" {
		return
	}
	rec := domain.ActionRecord{Tool: call.Tool, Success: res.Success, OrderID: res.OrderID, At: d.now()}
	if err := d.recorder.RecordAction(ctx, call.TenantID, call.SessionID, rec); err != nil {
		d.lg.Warn("action_record_failed", zap.String("session_id", call.SessionID), zap.Error(err))
	}
}

// humanize turns place_order into "place order".
func humanize(tool string) string {
	if tool == "" {
		return "do that"
	}
	return strings.ReplaceAll(tool, "_", " ")
}
