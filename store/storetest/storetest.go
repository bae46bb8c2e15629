// Package storetest holds the behaviour every warehouse.SnapshotStore must
// share. Store packages call Run from their own tests.
package storetest

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/warehouse-engine/warehouse"
)

// SampleWarehouse builds a warehouse touching every kind of state: tied
// batches, a derivate recipe, all three transaction kinds, a paid sale,
// a rank change, an unsubscribed pair and pending notifications.
func SampleWarehouse(t *testing.T) *warehouse.Warehouse {
	t.Helper()
	price := decimal.RequireFromString
	w := warehouse.New()

	for _, key := range []string{"C1", "C2"} {
		_, err := w.RegisterProduct(key)
		require.NoError(t, err)
	}
	_, err := w.RegisterPartner("A", "Alice", "Rua 1")
	require.NoError(t, err)
	_, err = w.RegisterPartner("B", "Bob", "Rua 2")
	require.NoError(t, err)

	_, err = w.RegisterAcquisition("A", "C1", 10, price("3"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("B", "C1", 5, price("3"))
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "C2", 8, price("4.25"))
	require.NoError(t, err)

	_, err = w.RegisterDerivateProduct("KIT", price("0.1"), []string{"C1", "C2"}, []int{2, 1})
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("B", "KIT", 3, price("2"))
	require.NoError(t, err)
	_, err = w.RegisterBreakdown("A", "KIT", 1)
	require.NoError(t, err)

	sale, err := w.RegisterSale("B", "C1", 30, 4)
	require.NoError(t, err)
	_, err = w.ReceiveSalePayment(sale.ID())
	require.NoError(t, err)
	_, err = w.RegisterSale("A", "C2", 1, 2)
	require.NoError(t, err)

	_, err = w.ToggleNotification("B", "C2")
	require.NoError(t, err)
	_, err = w.RegisterAcquisition("A", "C2", 1, price("1.5"))
	require.NoError(t, err)

	require.NoError(t, w.AdvanceDate(9))
	return w
}

func encode(t *testing.T, s *warehouse.State) string {
	t.Helper()
	data, err := json.Marshal(s)
	require.NoError(t, err)
	return string(data)
}

// Run exercises a store created fresh for every subtest by open.
func Run(t *testing.T, open func(t *testing.T) warehouse.SnapshotStore) {
	ctx := context.Background()

	t.Run("save then load returns the same state", func(t *testing.T) {
		// GIVEN
		store := open(t)
		w := SampleWarehouse(t)
		want := w.Snapshot()

		// WHEN
		info, err := store.Save(ctx, "main", want)
		require.NoError(t, err)
		got, err := store.Load(ctx, "main")
		require.NoError(t, err)

		// THEN
		assert.Equal(t, "main", info.Name)
		assert.Equal(t, want.Date, info.Date)
		assert.Equal(t, len(want.Transactions), info.Transactions)
		assert.JSONEq(t, encode(t, want), encode(t, got))

		restored, err := warehouse.Restore(got)
		require.NoError(t, err)
		assert.True(t, w.AvailableBalance().Equal(restored.AvailableBalance()))
		assert.True(t, w.AccountingBalance().Equal(restored.AccountingBalance()))
	})

	t.Run("save replaces an existing snapshot", func(t *testing.T) {
		store := open(t)
		first, err := store.Save(ctx, "main", SampleWarehouse(t).Snapshot())
		require.NoError(t, err)

		empty := warehouse.New()
		require.NoError(t, empty.AdvanceDate(2))
		second, err := store.Save(ctx, "main", empty.Snapshot())
		require.NoError(t, err)
		assert.NotEqual(t, first.Revision, second.Revision)

		got, err := store.Load(ctx, "main")
		require.NoError(t, err)
		assert.Equal(t, warehouse.Date(2), got.Date)
		assert.Empty(t, got.Products)
		assert.Empty(t, got.Partners)
		assert.Empty(t, got.Transactions)
	})

	t.Run("names are independent", func(t *testing.T) {
		store := open(t)
		_, err := store.Save(ctx, "one", SampleWarehouse(t).Snapshot())
		require.NoError(t, err)
		_, err = store.Save(ctx, "two", warehouse.New().Snapshot())
		require.NoError(t, err)

		one, err := store.Load(ctx, "one")
		require.NoError(t, err)
		assert.NotEmpty(t, one.Transactions)
	})

	t.Run("missing snapshot", func(t *testing.T) {
		store := open(t)

		ok, err := store.Exists(ctx, "nope")
		require.NoError(t, err)
		assert.False(t, ok)

		_, err = store.Load(ctx, "nope")
		assert.ErrorIs(t, err, warehouse.ErrSnapshotNotFound)
	})

	t.Run("exists after save", func(t *testing.T) {
		store := open(t)
		_, err := store.Save(ctx, "main", warehouse.New().Snapshot())
		require.NoError(t, err)

		ok, err := store.Exists(ctx, "main")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}
