package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"restaurant-assistant/internal/domain"
)

const sessionColumns = `id, tenant_id, user_id, role, status, started_at, ended_at, message_count, actions_performed, summary`

type SessionsPG struct {
	db DBTX
}

func (r *SessionsPG) Create(ctx context.Context, s *domain.Session) error {
	actions, err := marshalActions(s.ActionsPerformed)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conversation_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, s.ID, s.TenantID, s.UserID, string(s.Role), string(s.Status), s.StartedAt, nullTime(s.EndedAt),
		s.MessageCount, actions, s.Summary)
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return nil
}

func (r *SessionsPG) Get(ctx context.Context, tenantID, id string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM conversation_sessions WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *SessionsPG) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Session, error) {
	return r.getOne(ctx, `SELECT `+sessionColumns+` FROM conversation_sessions WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
}

func (r *SessionsPG) getOne(ctx context.Context, query string, args ...any) (*domain.Session, error) {
	s, err := scanSession(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return s, nil
}

func (r *SessionsPG) Update(ctx context.Context, s *domain.Session) error {
	actions, err := marshalActions(s.ActionsPerformed)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE conversation_sessions SET
			status = $3, ended_at = $4, message_count = $5, actions_performed = $6, summary = $7
		WHERE tenant_id = $1 AND id = $2
	`, s.TenantID, s.ID, string(s.Status), nullTime(s.EndedAt), s.MessageCount, actions, s.Summary)
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Errorf(domain.ErrSessionNotFound, "Session %s was not found", s.ID)
	}
	return nil
}

func (r *SessionsPG) AppendMessage(ctx context.Context, m *domain.Message) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO conversation_messages (id, session_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.SessionID, m.Role, m.Content, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *SessionsPG) ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, created_at
		FROM conversation_messages WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (r *SessionsPG) ListStartedBetween(ctx context.Context, tenantID, userID string, from, to time.Time) ([]domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM conversation_sessions
		WHERE tenant_id = $1 AND user_id = $2 AND started_at >= $3 AND started_at < $4
		ORDER BY started_at ASC
	`, tenantID, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var (
		s            domain.Session
		role, status string
		endedAt      sql.NullTime
		actions      []byte
	)
	if err := row.Scan(&s.ID, &s.TenantID, &s.UserID, &role, &status, &s.StartedAt, &endedAt,
		&s.MessageCount, &actions, &s.Summary); err != nil {
		return nil, err
	}
	s.Role = domain.Role(role)
	s.Status = domain.SessionStatus(status)
	s.EndedAt = timePtr(endedAt)
	if err := unmarshalIfSet(actions, &s.ActionsPerformed); err != nil {
		return nil, fmt.Errorf("actions_performed: %w", err)
	}
	return &s, nil
}

func marshalActions(a []domain.ActionRecord) ([]byte, error) {
	if a == nil {
		a = []domain.ActionRecord{}
	}
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal actions: %w", err)
	}
	return b, nil
}
