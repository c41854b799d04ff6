package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-assistant/internal/connections/database"
	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock
}

func TestCountersPG_Increment(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO order_counters .* ON CONFLICT \(tenant_id, day\) DO UPDATE`).
		WithArgs("R1", "2026-10-14").
		WillReturnRows(sqlmock.NewRows([]string{"last_order_id"}).AddRow(7))

	n, err := NewTx(db).Counters().Increment(context.Background(), "R1", "2026-10-14")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

var tableCols = []string{"id", "tenant_id", "name", "floor_id", "floor_name", "status", "capacity",
	"current_order_id", "reservation", "occupied_at", "updated_at"}

func TestTablesPG_FindByName_LocksFirstMatch(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`WHERE t.tenant_id = \$1 AND lower\(t.name\) = lower\(trim\(\$2\)\) ORDER BY f.sort_order.* LIMIT 1 FOR UPDATE OF t`).
		WithArgs("R1", "5").
		WillReturnRows(sqlmock.NewRows(tableCols).
			AddRow("t1", "R1", "5", "f1", "Ground", "occupied", 4, "o-1", nil, now, now))

	tb, err := NewTx(db).Tables().FindByName(context.Background(), "R1", "5", "")
	require.NoError(t, err)
	require.NotNil(t, tb)
	assert.Equal(t, domain.TableOccupied, tb.Status)
	assert.Equal(t, "o-1", tb.CurrentOrderID)
	assert.Equal(t, "Ground", tb.FloorName)
	require.NotNil(t, tb.OccupiedAt)
	assert.Nil(t, tb.Reservation)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTablesPG_FindByName_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM restaurant_tables t`).
		WithArgs("R1", "99", "Terrace").
		WillReturnRows(sqlmock.NewRows(tableCols))

	tb, err := NewTx(db).Tables().FindByName(context.Background(), "R1", "99", "Terrace")
	require.NoError(t, err)
	assert.Nil(t, tb)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTablesPG_SaveClearsOrderReference(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`UPDATE restaurant_tables SET`).
		WithArgs("R1", "t1", "available", nil, nil, nil, now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := NewTx(db).Tables().Save(context.Background(), &domain.Table{
		ID: "t1", TenantID: "R1", Name: "5", Status: domain.TableAvailable, UpdatedAt: now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTablesPG_SaveMissingRow(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE restaurant_tables SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewTx(db).Tables().Save(context.Background(), &domain.Table{ID: "t9", TenantID: "R1", Name: "9"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrTableNotFound))
}

var orderCols = []string{"id", "tenant_id", "day", "daily_order_id", "order_number", "items",
	"subtotal", "tax_amount", "tax_breakdown", "final_amount", "status", "table_number", "order_type",
	"customer_info", "special_instructions", "payment_method", "discount", "final_total",
	"created_by", "updated_by", "created_at", "updated_at", "billed_at", "cancelled_at"}

func TestOrdersPG_GetScansDocuments(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	now := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM orders WHERE tenant_id = \$1 AND id = \$2$`).
		WithArgs("R1", "o-1").
		WillReturnRows(sqlmock.NewRows(orderCols).AddRow(
			"o-1", "R1", "2026-10-14", 1, "ORD_20261014_001",
			[]byte(`[{"menu_item_id":"m1","name":"Paneer","unit_price":200,"quantity":2,"line_total":400}]`),
			400.0, 0.0, []byte(`[]`), 400.0, "pending", "5", "dine-in",
			[]byte(`{"name":"Asha"}`), "", "", 0.0, 0.0,
			"u1", "", now, now, nil, nil,
		))

	o, err := NewTx(db).Orders().Get(context.Background(), "R1", "o-1")
	require.NoError(t, err)
	require.NotNil(t, o)
	assert.Equal(t, int64(1), o.DailyOrderID)
	require.Len(t, o.Items, 1)
	assert.Equal(t, "Paneer", o.Items[0].Name)
	assert.Equal(t, 400.0, o.Items[0].LineTotal)
	assert.Equal(t, "Asha", o.Customer.Name)
	assert.Equal(t, domain.StatusPending, o.Status)
	assert.Nil(t, o.BilledAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOrdersPG_GetMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM orders`).WithArgs("R1", "nope").WillReturnRows(sqlmock.NewRows(orderCols))

	o, err := NewTx(db).Orders().Get(context.Background(), "R1", "nope")
	require.NoError(t, err)
	assert.Nil(t, o)
}

func TestOrdersPG_ListBuildsTenantScopedFilter(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	from := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 1)
	mock.ExpectQuery(`WHERE tenant_id = \$1 AND status IN \(\$2, \$3\) AND lower\(table_number\) = lower\(\$4\) AND created_at >= \$5 AND created_at < \$6 ORDER BY created_at ASC, daily_order_id ASC LIMIT \$7`).
		WithArgs("R1", "pending", "preparing", "5", from, to, 10).
		WillReturnRows(sqlmock.NewRows(orderCols))

	out, err := NewTx(db).Orders().List(context.Background(), "R1", store.OrderFilter{
		Statuses:    []domain.OrderStatus{domain.StatusPending, domain.StatusPreparing},
		TableNumber: "5",
		From:        from,
		To:          to,
		Limit:       10,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionsPG_UpdateMissing(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`UPDATE conversation_sessions SET`).WillReturnResult(sqlmock.NewResult(0, 0))

	err := NewTx(db).Sessions().Update(context.Background(), &domain.Session{ID: "s1", TenantID: "R1"})
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

var sessionCols = []string{"id", "tenant_id", "user_id", "role", "status", "started_at", "ended_at",
	"message_count", "actions_performed", "summary"}

func TestSessionsPG_GetForUpdateLocksRow(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	started := time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	mock.ExpectQuery(`FROM conversation_sessions WHERE tenant_id = \$1 AND id = \$2 FOR UPDATE`).
		WithArgs("R1", "s1").
		WillReturnRows(sqlmock.NewRows(sessionCols).
			AddRow("s1", "R1", "u1", "waiter", "active", started, nil, 4, []byte(`[{"tool":"get_menu","success":true}]`), ""))

	s, err := NewTx(db).Sessions().GetForUpdate(context.Background(), "R1", "s1")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 4, s.MessageCount)
	require.Len(t, s.ActionsPerformed, 1)
	assert.Equal(t, "get_menu", s.ActionsPerformed[0].Tool)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMenuPG_ListMenuItems(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`FROM menu_items WHERE tenant_id = \$1`).
		WithArgs("R1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "category", "price", "variants", "is_available", "is_deleted"}).
			AddRow("m1", "Paneer", "Mains", 200.0, []byte(`[{"name":"Half","price":120}]`), true, false))

	items, err := NewMenuPG(db).ListMenuItems(context.Background(), "R1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.Len(t, items[0].Variants, 1)
	assert.Equal(t, 120.0, items[0].Variants[0].Price)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InTxCommitsCounterAndOrder(t *testing.T) {
	db, mock := setupMockDB(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO order_counters`).
		WillReturnRows(sqlmock.NewRows([]string{"last_order_id"}).AddRow(1))
	mock.ExpectExec(`INSERT INTO orders`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	s := NewPostgresStore(database.NewTxRunner(db, 1))
	err := s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		n, err := tx.Counters().Increment(ctx, "R1", "2026-10-14")
		if err != nil {
			return err
		}
		return tx.Orders().Create(ctx, &domain.Order{ID: "o-1", TenantID: "R1", Day: "2026-10-14", DailyOrderID: n})
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
