package repository

import (
	"context"
	"database/sql"
	"time"

	"restaurant-assistant/internal/connections/database"
	"restaurant-assistant/internal/store"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements store.Store on top of database/sql.
type PostgresStore struct {
	runner *database.TxRunner
}

func NewPostgresStore(runner *database.TxRunner) *PostgresStore {
	return &PostgresStore{runner: runner}
}

func (s *PostgresStore) InTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return s.runner.WithTx(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, NewTx(tx))
	})
}

type pgTx struct{ db DBTX }

// NewTx binds the repositories to one connection or transaction.
func NewTx(db DBTX) store.Tx { return &pgTx{db: db} }

func (t *pgTx) Orders() store.OrderRepository     { return &OrdersPG{db: t.db} }
func (t *pgTx) Tables() store.TableRepository     { return &TablesPG{db: t.db} }
func (t *pgTx) Counters() store.CounterRepository { return &CountersPG{db: t.db} }
func (t *pgTx) Sessions() store.SessionRepository { return &SessionsPG{db: t.db} }

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
