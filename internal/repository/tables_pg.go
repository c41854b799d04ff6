package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"restaurant-assistant/internal/domain"
)

const tableSelect = `
	SELECT t.id, t.tenant_id, t.name, t.floor_id, f.name, t.status, t.capacity,
	       COALESCE(t.current_order_id, ''), t.reservation, t.occupied_at, t.updated_at
	FROM restaurant_tables t
	JOIN floors f ON f.id = t.floor_id`

type TablesPG struct {
	db DBTX
}

func (r *TablesPG) FindByName(ctx context.Context, tenantID, name, floor string) (*domain.Table, error) {
	query := tableSelect + ` WHERE t.tenant_id = $1 AND lower(t.name) = lower(trim($2))`
	args := []any{tenantID, name}
	if floor != "" {
		args = append(args, floor)
		query += ` AND (f.id = $3 OR lower(f.name) = lower($3))`
	}
	query += ` ORDER BY f.sort_order, f.id, t.name, t.id LIMIT 1 FOR UPDATE OF t`

	t, err := scanTable(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find table: %w", err)
	}
	return t, nil
}

func (r *TablesPG) Get(ctx context.Context, tenantID, id string) (*domain.Table, error) {
	t, err := scanTable(r.db.QueryRowContext(ctx, tableSelect+` WHERE t.tenant_id = $1 AND t.id = $2 FOR UPDATE OF t`, tenantID, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load table: %w", err)
	}
	return t, nil
}

func (r *TablesPG) Save(ctx context.Context, t *domain.Table) error {
	var reservation any
	if t.Reservation != nil {
		b, err := json.Marshal(t.Reservation)
		if err != nil {
			return fmt.Errorf("marshal reservation: %w", err)
		}
		reservation = b
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE restaurant_tables SET
			status = $3, current_order_id = $4, reservation = $5, occupied_at = $6, updated_at = $7
		WHERE tenant_id = $1 AND id = $2
	`, t.TenantID, t.ID, string(t.Status), nullIfEmpty(t.CurrentOrderID), reservation, nullTime(t.OccupiedAt), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save table: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Errorf(domain.ErrTableNotFound, "Table %s was not found", t.Name)
	}
	return nil
}

func (r *TablesPG) List(ctx context.Context, tenantID, floor string) ([]domain.Table, error) {
	query := tableSelect + ` WHERE t.tenant_id = $1`
	args := []any{tenantID}
	if floor != "" {
		args = append(args, floor)
		query += ` AND (f.id = $2 OR lower(f.name) = lower($2))`
	}
	query += ` ORDER BY f.sort_order, f.id, t.name, t.id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	var out []domain.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTable(row rowScanner) (*domain.Table, error) {
	var (
		t           domain.Table
		status      string
		reservation []byte
		occupiedAt  sql.NullTime
	)
	if err := row.Scan(&t.ID, &t.TenantID, &t.Name, &t.FloorID, &t.FloorName, &status, &t.Capacity,
		&t.CurrentOrderID, &reservation, &occupiedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Status = domain.TableStatus(status)
	t.OccupiedAt = timePtr(occupiedAt)
	if len(reservation) > 0 {
		var res domain.Reservation
		if err := json.Unmarshal(reservation, &res); err != nil {
			return nil, fmt.Errorf("reservation: %w", err)
		}
		t.Reservation = &res
	}
	return &t, nil
}
