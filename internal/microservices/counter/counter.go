package counter

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

// Allocator hands out daily order numbers per tenant. The sequence for a
// day starts at 1 and is keyed by the calendar day in the business
// timezone, so midnight there starts a new sequence. A number allocated by
// a transaction that later fails is skipped, never reissued.
type Allocator struct {
	store store.Store
	loc   *time.Location
	lg    *zap.Logger
}

func NewAllocator(s store.Store, loc *time.Location, lg *zap.Logger) *Allocator {
	if loc == nil {
		loc = time.UTC
	}
	return &Allocator{store: s, loc: loc, lg: lg}
}

// DayKey is the counter key for an instant.
func (a *Allocator) DayKey(t time.Time) string {
	return domain.DayKey(t, a.loc)
}

// NextOrderID allocates in a transaction of its own. Store conflicts are
// retried by the store; only an exhausted retry budget reaches the caller.
func (a *Allocator) NextOrderID(ctx context.Context, tenantID string, date time.Time) (int64, error) {
	var n int64
	err := a.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		n, err = a.NextOrderIDTx(ctx, tx, tenantID, a.DayKey(date))
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// NextOrderIDTx allocates inside the caller's transaction so the number and
// the order that uses it commit together.
func (a *Allocator) NextOrderIDTx(ctx context.Context, tx store.Tx, tenantID, day string) (int64, error) {
	if strings.TrimSpace(tenantID) == "" {
		return 0, domain.Errorf(domain.ErrMissingTenant, "A restaurant must be selected before placing orders")
	}
	n, err := tx.Counters().Increment(ctx, tenantID, day)
	if err != nil {
		return 0, fmt.Errorf("allocate order number: %w", err)
	}
	a.lg.Debug("order_number_allocated", zap.String("tenant_id", tenantID), zap.String("day", day), zap.Int64("daily_order_id", n))
	return n, nil
}

// FormatOrderNumber renders the display number, e.g. ORD_20261014_007.
func FormatOrderNumber(day string, n int64) string {
	return fmt.Sprintf("ORD_%s_%03d", strings.ReplaceAll(day, "-", ""), n)
}
