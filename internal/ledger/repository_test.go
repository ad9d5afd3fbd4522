package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medstore/m/domain"
	"medstore/m/internal/store"
)

func TestAppendThenList(t *testing.T) {
	ctx := context.Background()
	repo := New(store.New(store.NewMemory()))

	sales, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, sales)

	ts := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	first := domain.Sale{ID: "s1", Timestamp: ts, Total: 10, Items: []domain.SaleItem{{MedicineID: "m1", Name: "A", Quantity: 1, UnitPrice: 10, LineTotal: 10}}}
	second := domain.Sale{ID: "s2", Timestamp: ts.Add(time.Minute), Total: 5, Items: []domain.SaleItem{{MedicineID: "m2", Name: "B", Quantity: 1, UnitPrice: 5, LineTotal: 5}}}
	require.NoError(t, repo.Append(ctx, first))
	require.NoError(t, repo.Append(ctx, second))

	sales, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.Sale{first, second}, sales)
}

func TestInit(t *testing.T) {
	ctx := context.Background()

	t.Run("writes empty collection", func(t *testing.T) {
		mem := store.NewMemory()
		require.NoError(t, New(store.New(mem)).Init(ctx))
		raw, err := mem.Read(ctx, Key)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(raw))
	})

	t.Run("keeps existing sales", func(t *testing.T) {
		s := store.New(store.NewMemory())
		repo := New(s)
		require.NoError(t, repo.Append(ctx, domain.Sale{ID: "s1"}))
		require.NoError(t, repo.Init(ctx))
		sales, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Len(t, sales, 1)
	})

	t.Run("replaces unreadable content", func(t *testing.T) {
		mem := store.NewMemory()
		require.NoError(t, mem.WriteBatch(ctx, map[string][]byte{Key: []byte("oops")}))
		require.NoError(t, New(store.New(mem)).Init(ctx))
		raw, err := mem.Read(ctx, Key)
		require.NoError(t, err)
		assert.JSONEq(t, `[]`, string(raw))
	})
}
