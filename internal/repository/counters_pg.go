package repository

import (
	"context"
	"fmt"
)

type CountersPG struct {
	db DBTX
}

// Increment is a single upsert, so two writers on the same (tenant, day)
// serialize on the row lock and never read the same pre-increment value.
func (r *CountersPG) Increment(ctx context.Context, tenantID, day string) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO order_counters (tenant_id, day, last_order_id)
		VALUES ($1, $2, 1)
		ON CONFLICT (tenant_id, day) DO UPDATE SET
			last_order_id = order_counters.last_order_id + 1
		RETURNING last_order_id
	`, tenantID, day).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to increment order counter: %w", err)
	}
	return n, nil
}
