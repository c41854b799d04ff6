package conversation

import (
	"context"
	"time"

	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

// DailyUsage aggregates every session the user started in the tenant on the
// business day containing asOf.
func (t *Tracker) DailyUsage(ctx context.Context, tenantID, userID string, asOf time.Time) (domain.DailyUsage, error) {
	if err := requireTenant(tenantID); err != nil {
		return domain.DailyUsage{}, err
	}
	if asOf.IsZero() {
		asOf = t.now()
	}
	start, end := domain.DayBounds(asOf, t.loc)
	usage := domain.DailyUsage{Day: domain.DayKey(start, t.loc)}

	var sessions []domain.Session
	err := t.store.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		sessions, err = tx.Sessions().ListStartedBetween(ctx, tenantID, userID, start, end)
		return err
	})
	if err != nil {
		return usage, err
	}

	now := t.now()
	for _, s := range sessions {
		usage.SessionCount++
		usage.MessageCount += s.MessageCount
		stop := now
		if s.EndedAt != nil {
			stop = *s.EndedAt
		}
		if d := stop.Sub(s.StartedAt); d > 0 {
			usage.DurationSeconds += int64(d / time.Second)
		}
	}
	return usage, nil
}

// CheckLimit allows a new session while today's message count is below
// limit. When usage cannot be read the caller is let through.
func (t *Tracker) CheckLimit(ctx context.Context, tenantID, userID string, limit int) (domain.LimitCheck, error) {
	if err := requireTenant(tenantID); err != nil {
		return domain.LimitCheck{}, err
	}
	if limit < 0 {
		limit = 0
	}
	used := 0
	usage, err := t.DailyUsage(ctx, tenantID, userID, time.Time{})
	if err != nil {
		t.lg.Warn("usage_unavailable", zap.String("tenant_id", tenantID), zap.String("user_id", userID), zap.Error(err))
	} else {
		used = usage.MessageCount
	}

	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return domain.LimitCheck{
		Allowed:   used < limit,
		Used:      used,
		Limit:     limit,
		Remaining: remaining,
	}, nil
}
