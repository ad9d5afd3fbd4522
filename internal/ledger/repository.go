// Package ledger holds the append-only sales history.
package ledger

import (
	"context"
	"errors"

	"medstore/m/domain"
	"medstore/m/internal/store"
)

// Key is the storage key of the sales collection.
const Key = "ms_sales_v1"

type Repository struct {
	rw store.Accessor
}

func New(rw store.Accessor) *Repository {
	return &Repository{rw: rw}
}

// List returns every recorded sale in the order it was appended.
func (r *Repository) List(ctx context.Context) ([]domain.Sale, error) {
	return store.Load(ctx, r.rw, Key, []domain.Sale{})
}

func (r *Repository) Append(ctx context.Context, sale domain.Sale) error {
	sales, err := r.List(ctx)
	if err != nil {
		return err
	}
	return r.rw.Set(ctx, Key, append(sales, sale))
}

// Init writes an empty collection when none is stored or the stored one is
// unreadable.
func (r *Repository) Init(ctx context.Context) error {
	var existing []domain.Sale
	err := r.rw.Get(ctx, Key, &existing)
	var decErr *store.DecodeError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound), errors.As(err, &decErr):
		return r.rw.Set(ctx, Key, []domain.Sale{})
	default:
		return err
	}
}
