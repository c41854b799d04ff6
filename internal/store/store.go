// Package store defines the tenant-scoped persistence contract shared by the
// engines. Every lookup takes the tenant id; there is no unscoped read.
// Getters return (nil, nil) when the record does not exist and the engines
// turn that into the matching domain error.
package store

import (
	"context"
	"time"

	"restaurant-assistant/internal/domain"
)

// Store runs fn inside one atomic transaction. A non-nil error from fn
// discards every write made through tx.
type Store interface {
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

type Tx interface {
	Orders() OrderRepository
	Tables() TableRepository
	Counters() CounterRepository
	Sessions() SessionRepository
}

type OrderFilter struct {
	Statuses    []domain.OrderStatus
	TableNumber string
	From, To    time.Time // created_at in [From, To); zero means open
	Limit       int
}

type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	Get(ctx context.Context, tenantID, id string) (*domain.Order, error)
	// GetForUpdate locks the order row until the transaction ends.
	GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Order, error)
	GetByDailyID(ctx context.Context, tenantID, day string, dailyID int64) (*domain.Order, error)
	Update(ctx context.Context, o *domain.Order) error
	List(ctx context.Context, tenantID string, f OrderFilter) ([]domain.Order, error)
}

type TableRepository interface {
	// FindByName scans every floor of the tenant (or only floor, when given)
	// and returns the first case-insensitive name match, locked for update.
	FindByName(ctx context.Context, tenantID, name, floor string) (*domain.Table, error)
	Get(ctx context.Context, tenantID, id string) (*domain.Table, error)
	Save(ctx context.Context, t *domain.Table) error
	List(ctx context.Context, tenantID, floor string) ([]domain.Table, error)
}

type CounterRepository interface {
	// Increment creates the (tenant, day) counter at 1 or bumps it by one and
	// returns the new value.
	Increment(ctx context.Context, tenantID, day string) (int64, error)
}

type SessionRepository interface {
	Create(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, tenantID, id string) (*domain.Session, error)
	// GetForUpdate locks the session row; counters and the action log are
	// read-modify-write.
	GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Session, error)
	Update(ctx context.Context, s *domain.Session) error
	AppendMessage(ctx context.Context, m *domain.Message) error
	ListMessages(ctx context.Context, sessionID string) ([]domain.Message, error)
	ListStartedBetween(ctx context.Context, tenantID, userID string, from, to time.Time) ([]domain.Session, error)
}
