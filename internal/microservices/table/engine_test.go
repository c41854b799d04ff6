package table

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/microservices/events"
	"restaurant-assistant/internal/store"
	"restaurant-assistant/internal/store/memory"
)

var fixedNow = time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)

func setupEngine(t *testing.T) (*Engine, *memory.Store, *events.Recorder) {
	t.Helper()
	s := memory.New()
	s.AddFloor(memory.Floor{ID: "f-ground", TenantID: "R1", Name: "Ground", SortOrder: 1})
	s.AddFloor(memory.Floor{ID: "f-terrace", TenantID: "R1", Name: "Terrace", SortOrder: 2})
	s.AddTable(domain.Table{ID: "t-g5", TenantID: "R1", Name: "5", FloorID: "f-ground", Capacity: 4})
	s.AddTable(domain.Table{ID: "t-t5", TenantID: "R1", Name: "5", FloorID: "f-terrace", Capacity: 6})
	s.AddTable(domain.Table{ID: "t-t7", TenantID: "R1", Name: "7", FloorID: "f-terrace", Capacity: 2})
	s.AddTable(domain.Table{ID: "t-other", TenantID: "R2", Name: "9", FloorID: "f-x"})

	rec := &events.Recorder{}
	e := NewEngine(s, rec, zap.NewNop())
	e.SetClock(func() time.Time { return fixedNow })
	return e, s, rec
}

func seedOrder(t *testing.T, s *memory.Store, id string, status domain.OrderStatus) {
	t.Helper()
	require.NoError(t, s.InTx(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.Orders().Create(ctx, &domain.Order{ID: id, TenantID: "R1", DailyOrderID: 1, Status: status})
	}))
}

func TestApplyStatus_KeepsOrderReferenceInvariant(t *testing.T) {
	tb := &domain.Table{Name: "5", Status: domain.TableAvailable}

	err := applyStatus(tb, domain.TableOccupied, "", fixedNow)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	assert.Equal(t, domain.TableAvailable, tb.Status)

	require.NoError(t, applyStatus(tb, domain.TableOccupied, "o-1", fixedNow))
	assert.Equal(t, "o-1", tb.CurrentOrderID)
	require.NotNil(t, tb.OccupiedAt)

	tb.Reservation = &domain.Reservation{GuestCount: 2}
	for _, s := range []domain.TableStatus{domain.TableAvailable, domain.TableCleaning} {
		require.NoError(t, applyStatus(tb, domain.TableOccupied, "o-1", fixedNow))
		require.NoError(t, applyStatus(tb, s, "o-1", fixedNow))
		assert.Equal(t, s, tb.Status)
		assert.Empty(t, tb.CurrentOrderID)
		assert.Nil(t, tb.OccupiedAt)
		assert.Nil(t, tb.Reservation)
	}

	assert.ErrorIs(t, applyStatus(tb, "broken", "", fixedNow), domain.ErrInvalidArgument)
}

func TestValidateAvailable(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()

	require.NoError(t, e.ValidateAvailable(ctx, "R1", "5", ""))

	err := e.ValidateAvailable(ctx, "R1", "42", "")
	assert.ErrorIs(t, err, domain.ErrTableNotFound)
	assert.Equal(t, "Table 42 was not found", err.Error())

	seedOrder(t, s, "o-1", domain.StatusPending)
	_, err = e.Occupy(ctx, "R1", "5", "", "o-1", "u1")
	require.NoError(t, err)

	err = e.ValidateAvailable(ctx, "R1", "5", "")
	assert.ErrorIs(t, err, domain.ErrTableUnavailable)
	assert.Contains(t, err.Error(), "occupied")

	// The same name on another floor is still free.
	require.NoError(t, e.ValidateAvailable(ctx, "R1", "5", "Terrace"))
}

func TestValidateAvailable_TenantIsolation(t *testing.T) {
	e, _, _ := setupEngine(t)
	err := e.ValidateAvailable(context.Background(), "R1", "9", "")
	assert.ErrorIs(t, err, domain.ErrTableNotFound)

	err = e.ValidateAvailable(context.Background(), "", "9", "")
	assert.ErrorIs(t, err, domain.ErrMissingTenant)
}

func TestFindByName_FirstFloorWins(t *testing.T) {
	e, _, _ := setupEngine(t)
	tb, err := e.Get(context.Background(), "R1", "5", "")
	require.NoError(t, err)
	assert.Equal(t, "t-g5", tb.ID)

	tb, err = e.Get(context.Background(), "R1", "5", "f-terrace")
	require.NoError(t, err)
	assert.Equal(t, "t-t5", tb.ID)
}

func TestOccupyAndRelease(t *testing.T) {
	e, s, rec := setupEngine(t)
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.StatusPending)

	tb, err := e.Occupy(ctx, "R1", "5", "", "o-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TableOccupied, tb.Status)
	assert.Equal(t, "o-1", tb.CurrentOrderID)
	assert.Equal(t, fixedNow, *tb.OccupiedAt)

	_, err = e.Occupy(ctx, "R1", "5", "", "o-2", "u1")
	assert.ErrorIs(t, err, domain.ErrTableUnavailable)

	tb, err = e.Release(ctx, "R1", "5", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TableAvailable, tb.Status)
	assert.Empty(t, tb.CurrentOrderID)
	assert.Nil(t, tb.OccupiedAt)

	assert.Equal(t, []string{domain.EventTableStatusChanged, domain.EventTableStatusChanged}, rec.Kinds())
	last := rec.Events()[1]
	assert.Equal(t, "occupied", last.OldStatus)
	assert.Equal(t, "available", last.NewStatus)
}

func TestOccupy_RejectsMissingOrClosedOrder(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()

	_, err := e.Occupy(ctx, "R1", "5", "", "ghost", "u1")
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)

	seedOrder(t, s, "o-done", domain.StatusCompleted)
	_, err = e.Occupy(ctx, "R1", "5", "", "o-done", "u1")
	assert.ErrorIs(t, err, domain.ErrOrderClosed)
}

func TestReserve(t *testing.T) {
	e, _, _ := setupEngine(t)
	ctx := context.Background()
	at := fixedNow.Add(2 * time.Hour)

	_, err := e.Reserve(ctx, domain.ReserveRequest{TenantID: "R1", TableNumber: "7", GuestCount: 3}, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.Reserve(ctx, domain.ReserveRequest{TenantID: "R1", TableNumber: "7", GuestCount: 0}, "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	tb, err := e.Reserve(ctx, domain.ReserveRequest{
		TenantID: "R1", TableNumber: "7", GuestCount: 2, Time: &at, CustomerName: "Asha",
	}, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TableReserved, tb.Status)
	require.NotNil(t, tb.Reservation)
	assert.Equal(t, "Asha", tb.Reservation.CustomerName)

	_, err = e.Reserve(ctx, domain.ReserveRequest{TenantID: "R1", TableNumber: "7", GuestCount: 1}, "u1")
	assert.ErrorIs(t, err, domain.ErrTableUnavailable)

	tb, err = e.Release(ctx, "R1", "7", "", "u1")
	require.NoError(t, err)
	assert.Nil(t, tb.Reservation)
	assert.Equal(t, domain.TableAvailable, tb.Status)
}

func TestSetStatus(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()

	_, err := e.SetStatus(ctx, "R1", "5", "", "dirty", "", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.SetStatus(ctx, "R1", "5", "", "reserved", "", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = e.SetStatus(ctx, "R1", "5", "", "occupied", "", "u1")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	seedOrder(t, s, "o-1", domain.StatusPreparing)
	tb, err := e.SetStatus(ctx, "R1", "5", "", "Occupied", "o-1", "u1")
	require.NoError(t, err)
	assert.Equal(t, "o-1", tb.CurrentOrderID)

	tb, err = e.SetStatus(ctx, "R1", "5", "", "cleaning", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TableCleaning, tb.Status)
	assert.Empty(t, tb.CurrentOrderID)

	tb, err = e.SetStatus(ctx, "R1", "5", "", "available", "", "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.TableAvailable, tb.Status)
}

func TestReleaseForOrderTx(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.StatusPending)
	_, err := e.Occupy(ctx, "R1", "5", "Terrace", "o-1", "u1")
	require.NoError(t, err)

	var changes []Change
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		changes, err = e.ReleaseForOrderTx(ctx, tx, "R1", "o-1", domain.TableCleaning, "u1")
		return err
	}))
	require.Len(t, changes, 1)
	assert.Equal(t, "t-t5", changes[0].Table.ID)
	assert.Equal(t, domain.TableOccupied, changes[0].OldStatus)

	tb, err := e.Get(ctx, "R1", "5", "Terrace")
	require.NoError(t, err)
	assert.Equal(t, domain.TableCleaning, tb.Status)
	assert.Empty(t, tb.CurrentOrderID)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes, err := e.ReleaseForOrderTx(ctx, tx, "R1", "o-1", domain.TableAvailable, "u1")
		assert.Empty(t, changes)
		return err
	}))
}

func TestReleaseForOrderTx_FreesEveryTableOfTheOrder(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.StatusPending)

	// Rows written before seating was exclusive can still point two tables at one order.
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, id := range []string{"t-g5", "t-t7"} {
			tb, err := tx.Tables().Get(ctx, "R1", id)
			if err != nil {
				return err
			}
			tb.Status = domain.TableOccupied
			tb.CurrentOrderID = "o-1"
			if err := tx.Tables().Save(ctx, tb); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changes, err := e.ReleaseForOrderTx(ctx, tx, "R1", "o-1", domain.TableAvailable, "u1")
		assert.Len(t, changes, 2)
		return err
	}))

	tables, err := e.List(ctx, "R1", "", "")
	require.NoError(t, err)
	for _, tb := range tables {
		assert.Equal(t, domain.TableAvailable, tb.Status, tb.ID)
		assert.Empty(t, tb.CurrentOrderID, tb.ID)
	}
}

func TestSeating_OneTablePerOrder(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.StatusPending)

	_, err := e.Occupy(ctx, "R1", "5", "Ground", "o-1", "u1")
	require.NoError(t, err)

	_, err = e.SetStatus(ctx, "R1", "7", "", "occupied", "o-1", "u1")
	assert.ErrorIs(t, err, domain.ErrTableUnavailable)
	_, err = e.Occupy(ctx, "R1", "5", "Terrace", "o-1", "u1")
	assert.ErrorIs(t, err, domain.ErrTableUnavailable)

	tb, err := e.Get(ctx, "R1", "7", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TableAvailable, tb.Status)
	assert.Empty(t, tb.CurrentOrderID)

	// Re-seating at the same table is idempotent.
	_, err = e.SetStatus(ctx, "R1", "5", "Ground", "occupied", "o-1", "u1")
	require.NoError(t, err)

	var seatedAt string
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, "R1", "o-1")
		if err != nil {
			return err
		}
		seatedAt = o.TableNumber
		return nil
	}))
	assert.Equal(t, "5", seatedAt)
}

func TestListAndSummary(t *testing.T) {
	e, s, _ := setupEngine(t)
	ctx := context.Background()
	seedOrder(t, s, "o-1", domain.StatusPending)
	_, err := e.Occupy(ctx, "R1", "5", "", "o-1", "u1")
	require.NoError(t, err)
	_, err = e.SetStatus(ctx, "R1", "7", "", "cleaning", "", "u1")
	require.NoError(t, err)

	all, err := e.List(ctx, "R1", "", "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "t-g5", all[0].ID)

	terrace, err := e.List(ctx, "R1", "terrace", "")
	require.NoError(t, err)
	assert.Len(t, terrace, 2)

	occupied, err := e.List(ctx, "R1", "", "occupied")
	require.NoError(t, err)
	require.Len(t, occupied, 1)

	_, err = e.List(ctx, "R1", "", "flying")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	sum, err := e.Summary(ctx, "R1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.TablesSummary{Total: 3, Available: 1, Occupied: 1, Cleaning: 1}, sum)
}
