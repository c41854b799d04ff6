package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"restaurant-assistant/internal/domain"
	"restaurant-assistant/internal/store"
)

func seeded() *Store {
	s := New()
	s.AddFloor(Floor{ID: "f1", TenantID: "R1", Name: "Ground", SortOrder: 0})
	s.AddFloor(Floor{ID: "f2", TenantID: "R1", Name: "Terrace", SortOrder: 1})
	s.AddTable(domain.Table{ID: "t1", TenantID: "R1", FloorID: "f1", Name: "5", Capacity: 4})
	s.AddTable(domain.Table{ID: "t2", TenantID: "R1", FloorID: "f2", Name: "5", Capacity: 2})
	s.AddTable(domain.Table{ID: "t3", TenantID: "R2", FloorID: "x", Name: "5"})
	return s
}

func TestInTx_RollbackDiscardsWrites(t *testing.T) {
	s := seeded()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		_, err := tx.Counters().Increment(ctx, "R1", "2026-01-01")
		require.NoError(t, err)
		require.NoError(t, tx.Orders().Create(ctx, &domain.Order{ID: "o1", TenantID: "R1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, "R1", "o1")
		require.NoError(t, err)
		assert.Nil(t, o)
		n, err := tx.Counters().Increment(ctx, "R1", "2026-01-01")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
		return nil
	}))
}

func TestTables_FirstMatchAcrossFloorsAndTenantScope(t *testing.T) {
	s := seeded()
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		tb, err := tx.Tables().FindByName(ctx, "R1", " 5 ", "")
		require.NoError(t, err)
		require.NotNil(t, tb)
		assert.Equal(t, "t1", tb.ID)
		assert.Equal(t, "Ground", tb.FloorName)

		tb, err = tx.Tables().FindByName(ctx, "R1", "5", "terrace")
		require.NoError(t, err)
		require.NotNil(t, tb)
		assert.Equal(t, "t2", tb.ID)

		tb, err = tx.Tables().Get(ctx, "R1", "t3")
		require.NoError(t, err)
		assert.Nil(t, tb, "other tenant's table must be invisible")

		all, err := tx.Tables().List(ctx, "R1", "")
		require.NoError(t, err)
		assert.Len(t, all, 2)
		return nil
	}))
}

func TestOrders_ReturnedCopiesAreDetached(t *testing.T) {
	s := New()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.Orders().Create(ctx, &domain.Order{ID: "o1", TenantID: "R1",
			Items: []domain.OrderLine{{Name: "Paneer", Quantity: 1}}})
	}))
	require.Error(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, "R1", "o1")
		require.NoError(t, err)
		o.Items[0].Quantity = 99
		return errors.New("discard")
	}))
	require.NoError(t, s.InTx(ctx, func(ctx context.Context, tx store.Tx) error {
		o, err := tx.Orders().Get(ctx, "R1", "o1")
		require.NoError(t, err)
		assert.Equal(t, 1, o.Items[0].Quantity)
		return nil
	}))
}
