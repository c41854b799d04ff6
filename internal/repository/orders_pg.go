package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

const orderColumns = `id, tenant_id, to_char(day, 'YYYY-MM-DD'), daily_order_id, order_number, items,
	subtotal, tax_amount, tax_breakdown, final_amount, status, table_number, order_type,
	customer_info, special_instructions, payment_method, discount, final_total,
	created_by, updated_by, created_at, updated_at, billed_at, cancelled_at`

type OrdersPG struct {
	db DBTX
}

func (r *OrdersPG) Create(ctx context.Context, o *domain.Order) error {
	items, breakdown, customer, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO orders
			(id, tenant_id, day, daily_order_id, order_number, items, subtotal, tax_amount, tax_breakdown,
			 final_amount, status, table_number, order_type, customer_info, special_instructions,
			 payment_method, discount, final_total, created_by, updated_by, created_at, updated_at,
			 billed_at, cancelled_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
	`,
		o.ID, o.TenantID, o.Day, o.DailyOrderID, o.OrderNumber, items, o.Subtotal, o.TaxAmount, breakdown,
		o.FinalAmount, string(o.Status), o.TableNumber, string(o.OrderType), customer, o.SpecialInstructions,
		o.PaymentMethod, o.Discount, o.FinalTotal, o.CreatedBy, o.UpdatedBy, o.CreatedAt, o.UpdatedAt,
		nullTime(o.BilledAt), nullTime(o.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert order: %w", err)
	}
	return nil
}

func (r *OrdersPG) Get(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2`, tenantID, id)
}

func (r *OrdersPG) GetForUpdate(ctx context.Context, tenantID, id string) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND id = $2 FOR UPDATE`, tenantID, id)
}

func (r *OrdersPG) GetByDailyID(ctx context.Context, tenantID, day string, dailyID int64) (*domain.Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE tenant_id = $1 AND day = $2 AND daily_order_id = $3`,
		tenantID, day, dailyID)
}

func (r *OrdersPG) getOne(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order: %w", err)
	}
	return o, nil
}

func (r *OrdersPG) Update(ctx context.Context, o *domain.Order) error {
	items, breakdown, customer, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE orders SET
			items = $3, subtotal = $4, tax_amount = $5, tax_breakdown = $6, final_amount = $7,
			status = $8, table_number = $9, customer_info = $10, special_instructions = $11,
			payment_method = $12, discount = $13, final_total = $14, updated_by = $15,
			updated_at = $16, billed_at = $17, cancelled_at = $18
		WHERE tenant_id = $1 AND id = $2
	`,
		o.TenantID, o.ID, items, o.Subtotal, o.TaxAmount, breakdown, o.FinalAmount,
		string(o.Status), o.TableNumber, customer, o.SpecialInstructions,
		o.PaymentMethod, o.Discount, o.FinalTotal, o.UpdatedBy,
		o.UpdatedAt, nullTime(o.BilledAt), nullTime(o.CancelledAt),
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.Errorf(domain.ErrOrderNotFound, "Order %s was not found", o.ID)
	}
	return nil
}

func (r *OrdersPG) List(ctx context.Context, tenantID string, f store.OrderFilter) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE tenant_id = $1`
	args := []any{tenantID}
	if len(f.Statuses) > 0 {
		marks := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			args = append(args, string(s))
			marks = append(marks, fmt.Sprintf("$%d", len(args)))
		}
		query += ` AND status IN (` + strings.Join(marks, ", ") + `)`
	}
	if f.TableNumber != "" {
		args = append(args, f.TableNumber)
		query += fmt.Sprintf(` AND lower(table_number) = lower($%d)`, len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		query += fmt.Sprintf(` AND created_at >= $%d`, len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		query += fmt.Sprintf(` AND created_at < $%d`, len(args))
	}
	query += ` ORDER BY created_at ASC, daily_order_id ASC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(` LIMIT $%d`, len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                          domain.Order
		status, orderType          string
		items, breakdown, customer []byte
		billedAt, cancelledAt      sql.NullTime
	)
	if err := row.Scan(
		&o.ID, &o.TenantID, &o.Day, &o.DailyOrderID, &o.OrderNumber, &items,
		&o.Subtotal, &o.TaxAmount, &breakdown, &o.FinalAmount, &status, &o.TableNumber, &orderType,
		&customer, &o.SpecialInstructions, &o.PaymentMethod, &o.Discount, &o.FinalTotal,
		&o.CreatedBy, &o.UpdatedBy, &o.CreatedAt, &o.UpdatedAt, &billedAt, &cancelledAt,
	); err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	o.OrderType = domain.OrderType(orderType)
	o.BilledAt = timePtr(billedAt)
	o.CancelledAt = timePtr(cancelledAt)
	if err := unmarshalIfSet(items, &o.Items); err != nil {
		return nil, fmt.Errorf("items: %w", err)
	}
	if err := unmarshalIfSet(breakdown, &o.TaxBreakdown); err != nil {
		return nil, fmt.Errorf("tax_breakdown: %w", err)
	}
	if err := unmarshalIfSet(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("customer_info: %w", err)
	}
	return &o, nil
}

func marshalOrderDocs(o *domain.Order) (items, breakdown, customer []byte, err error) {
	lines := o.Items
	if lines == nil {
		lines = []domain.OrderLine{}
	}
	if items, err = json.Marshal(lines); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal items: %w", err)
	}
	tax := o.TaxBreakdown
	if tax == nil {
		tax = []domain.TaxLine{}
	}
	if breakdown, err = json.Marshal(tax); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal tax breakdown: %w", err)
	}
	if customer, err = json.Marshal(o.Customer); err != nil {
		return nil, nil, nil, fmt.Errorf("marshal customer: %w", err)
	}
	return items, breakdown, customer, nil
}

func unmarshalIfSet(b []byte, v any) error {
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, v)
}
