package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// ConnectDB opens the pool and pings until postgres answers or the attempts run out.
func ConnectDB(ctx context.Context, cfg config.DatabaseConfig, lg *zap.Logger) (*sql.DB, error) {
	const (
		maxRetries = 10
		retryDelay = 2 * time.Second
		pingTTL    = 5 * time.Second
	)

	var db *sql.DB
	var err error

	for i := 1; i <= maxRetries; i++ {
		db, err = sql.Open("pgx", cfg.DSN())
		if err == nil {
			if cfg.MaxConns > 0 {
				db.SetMaxOpenConns(cfg.MaxConns)
				db.SetMaxIdleConns(cfg.MaxConns)
			}
			pctx, cancel := context.WithTimeout(ctx, pingTTL)
			err = db.PingContext(pctx)
			cancel()
			if err == nil {
				return db, nil
			}
			_ = db.Close()
		}
		lg.Warn("db_connect_retry", zap.Int("attempt", i), zap.Error(err))

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, fmt.Errorf("db connect canceled: %w", ctx.Err())
		}
	}

	return nil, fmt.Errorf("database unreachable after %d attempts: %w", maxRetries, err)
}

// Migrate applies the schema; every statement is idempotent.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range Schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration step %d: %w", i+1, err)
		}
	}
	return nil
}
