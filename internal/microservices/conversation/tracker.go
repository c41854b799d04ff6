// Package conversation keeps assistant sessions, their message log and the
// per-user daily usage that gates new sessions.
package conversation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

const openingPreviewLen = 80

// Tracker reads and writes sessions through the store on every call. The
// optional cache only serves GetSession and is dropped after each write.
type Tracker struct {
	store store.Store
	cache SessionCache
	loc   *time.Location
	lg    *zap.Logger
	now   func() time.Time
	newID func() string
}

func NewTracker(s store.Store, cache SessionCache, loc *time.Location, lg *zap.Logger) *Tracker {
	if loc == nil {
		loc = time.UTC
	}
	if cache == nil {
		cache = nopCache{}
	}
	return &Tracker{
		store: s,
		cache: cache,
		loc:   loc,
		lg:    lg,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
}

func (t *Tracker) SetClock(now func() time.Time) { t.now = now }

func requireTenant(tenantID string) error {
	if strings.TrimSpace(tenantID) == "" {
		return domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected first")
	}
	return nil
}

func (t *Tracker) StartSession(ctx context.Context, tenantID, userID string, role domain.Role) (*domain.Session, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(userID) == "" {
		return nil, domain.Errorf(domain.ErrInvalidArgument, "A session needs a user")
	}
	s := &domain.Session{
		ID:               t.newID(),
		TenantID:         tenantID,
		UserID:           userID,
		Role:             role,
		Status:           domain.SessionActive,
		StartedAt:        t.now(),
		ActionsPerformed: []domain.ActionRecord{},
	}
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Sessions().Create(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	t.lg.Info("session_started", zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.String("session_id", s.ID))
	return s, nil
}

// RecordMessage appends one turn and bumps the message count. A missing
// session is ignored.
func (t *Tracker) RecordMessage(ctx context.Context, tenantID, sessionID, role, content string) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	role = strings.ToLower(strings.TrimSpace(role))
	if role != "user" && role != "assistant" {
		return domain.Errorf(domain.ErrInvalidArgument, "%q is not a message role; use user or assistant", role)
	}
	var found bool
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		s, err := tx.Sessions().GetForUpdate(ctx, tenantID, sessionID)
		if err != nil || s == nil {
			found = false
			return err
		}
		found = true
		now := t.now()
		if err := tx.Sessions().AppendMessage(ctx, &domain.Message{
			ID: t.newID(), SessionID: s.ID, Role: role, Content: content, CreatedAt: now,
		}); err != nil {
			return err
		}
		s.MessageCount++
		return tx.Sessions().Update(ctx, s)
	})
	if err != nil {
		return err
	}
	if !found {
		t.lg.Debug("message_for_unknown_session", zap.String("tenant_id", tenantID), zap.String("session_id", sessionID))
		return nil
	}
	t.cache.Invalidate(ctx, tenantID, sessionID)
	return nil
}

// RecordAction appends to the session's action log. A missing session is
// ignored.
func (t *Tracker) RecordAction(ctx context.Context, tenantID, sessionID string, rec domain.ActionRecord) error {
	if err := requireTenant(tenantID); err != nil {
		return err
	}
	if rec.At.IsZero() {
		rec.At = t.now()
	}
	var found bool
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		s, err := tx.Sessions().GetForUpdate(ctx, tenantID, sessionID)
		if err != nil || s == nil {
			found = false
			return err
		}
		found = true
		s.ActionsPerformed = append(s.ActionsPerformed, rec)
		return tx.Sessions().Update(ctx, s)
	})
	if err != nil {
		return err
	}
	if found {
		t.cache.Invalidate(ctx, tenantID, sessionID)
	}
	return nil
}

// EndSession completes the session. With no summary, one is built from the
// message count, the distinct tools used and the opening user message.
// Ending a completed session returns it unchanged.
func (t *Tracker) EndSession(ctx context.Context, tenantID, sessionID, summary string) (*domain.Session, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	var s *domain.Session
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		s, err = tx.Sessions().GetForUpdate(ctx, tenantID, sessionID)
		if err != nil {
			return err
		}
		if s == nil {
			return domain.Errorf(domain.ErrSessionNotFound, "I couldn't find session %s", sessionID)
		}
		if s.Status == domain.SessionCompleted {
			return nil
		}
		summary = strings.TrimSpace(summary)
		if summary == "" {
			msgs, err := tx.Sessions().ListMessages(ctx, s.ID)
			if err != nil {
				return err
			}
			summary = Summarize(s, msgs)
		}
		now := t.now()
		s.Status = domain.SessionCompleted
		s.EndedAt = &now
		s.Summary = summary
		return tx.Sessions().Update(ctx, s)
	})
	if err != nil {
		return nil, err
	}
	t.cache.Invalidate(ctx, tenantID, sessionID)
	t.lg.Info("session_ended", zap.String("tenant_id", tenantID), zap.String("session_id", s.ID),
		zap.Int("messages", s.MessageCount), zap.Int("actions", len(s.ActionsPerformed)))
	return s, nil
}

// Summarize renders e.g. `4 messages; actions: place_order; opened with: "table 5 wants..."`.
func Summarize(s *domain.Session, msgs []domain.Message) string {
	parts := []string{fmt.Sprintf("%d messages", s.MessageCount)}

	seen := map[string]bool{}
	var tools []string
	for _, a := range s.ActionsPerformed {
		if a.Tool == "" || seen[a.Tool] {
			continue
		}
		seen[a.Tool] = true
		tools = append(tools, a.Tool)
	}
	if len(tools) > 0 {
		parts = append(parts, "actions: "+strings.Join(tools, ", "))
	}

	for _, m := range msgs {
		if m.Role != "user" {
			continue
		}
		text := strings.Join(strings.Fields(m.Content), " ")
		if text == "" {
			continue
		}
		if utf8.RuneCountInString(text) > openingPreviewLen {
			text = string([]rune(text)[:openingPreviewLen]) + "…"
		}
		parts = append(parts, fmt.Sprintf("opened with: %q", text))
		break
	}
	return strings.Join(parts, "; ")
}

func (t *Tracker) GetSession(ctx context.Context, tenantID, sessionID string) (*domain.Session, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	cached, version, ok := t.cache.Get(ctx, tenantID, sessionID)
	if ok {
		return cached, nil
	}
	var s *domain.Session
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		s, err = tx.Sessions().Get(ctx, tenantID, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, domain.Errorf(domain.ErrSessionNotFound, "I couldn't find session %s", sessionID)
	}
	t.cache.Put(ctx, s, version)
	return s, nil
}

// Messages lists a session's turns in order; a missing session has none.
func (t *Tracker) Messages(ctx context.Context, tenantID, sessionID string) ([]domain.Message, error) {
	if err := requireTenant(tenantID); err != nil {
		return nil, err
	}
	out := []domain.Message{}
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		s, err := tx.Sessions().Get(ctx, tenantID, sessionID)
		if err != nil || s == nil {
			return err
		}
		msgs, err := tx.Sessions().ListMessages(ctx, s.ID)
		if err != nil {
			return err
		}
		out = append(out, msgs...)
		return nil
	})
	return out, err
}
