package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"restaurant-assistant/internal/domain"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
)

// TxRunner wraps fn in one transaction and retries serialization conflicts.
type TxRunner struct {
	DB       *sql.DB
	Attempts int
	Backoff  time.Duration
	Opts     *sql.TxOptions
}

func NewTxRunner(db *sql.DB, attempts int) *TxRunner {
	if attempts <= 0 {
		attempts = 5
	}
	return &TxRunner{DB: db, Attempts: attempts, Backoff: 20 * time.Millisecond}
}

// WithTx commits when fn returns nil. A conflict that outlives every attempt
// comes back as domain.ErrTransientStoreConflict.
func (r *TxRunner) WithTx(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	var lastErr error
	for attempt := 1; attempt <= r.Attempts; attempt++ {
		err := r.once(ctx, fn)
		if err == nil {
			return nil
		}
		if !IsConflict(err) {
			return err
		}
		lastErr = err
		select {
		case <-time.After(r.Backoff * time.Duration(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return &domain.Error{
		Kind:    domain.ErrTransientStoreConflict,
		Message: fmt.Sprintf("The system is busy right now, please try again (%v)", lastErr),
	}
}

func (r *TxRunner) once(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, r.Opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsConflict reports whether err is a postgres serialization failure or deadlock.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
	}
	return false
}
