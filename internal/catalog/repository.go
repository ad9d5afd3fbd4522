// Package catalog holds the medicine collection.
package catalog

import (
	"context"
	"time"

	"github.com/google/uuid"

	"medstore/m/domain"
	"medstore/m/internal/store"
)

// Key is the storage key of the medicine collection.
const Key = "ms_medicines_v1"

type Repository struct {
	rw  store.Accessor
	now func() time.Time
}

type Option func(*Repository)

// WithClock overrides the creation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) { r.now = now }
}

// New builds a repository on a store or an open transaction.
func New(rw store.Accessor, opts ...Option) *Repository {
	r := &Repository{rw: rw, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// List returns every medicine in insertion order. Unreadable stored content
// yields an empty catalog.
func (r *Repository) List(ctx context.Context) ([]domain.Medicine, error) {
	return store.Load(ctx, r.rw, Key, []domain.Medicine{})
}

func (r *Repository) Get(ctx context.Context, id string) (domain.Medicine, error) {
	meds, err := r.List(ctx)
	if err != nil {
		return domain.Medicine{}, err
	}
	for _, m := range meds {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Medicine{}, &domain.NotFoundError{ID: id}
}

// Add validates m, assigns it a fresh id and creation time, and appends it.
func (r *Repository) Add(ctx context.Context, m domain.Medicine) (domain.Medicine, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return domain.Medicine{}, err
	}
	meds, err := r.List(ctx)
	if err != nil {
		return domain.Medicine{}, err
	}
	m.ID = uuid.NewString()
	m.CreatedAt = r.now().UTC()
	meds = append(meds, m)
	if err := r.ReplaceAll(ctx, meds); err != nil {
		return domain.Medicine{}, err
	}
	return m, nil
}

// Update replaces the entry with m's id, keeping its original CreatedAt.
// It reports false and writes nothing when no entry matches.
func (r *Repository) Update(ctx context.Context, m domain.Medicine) (bool, error) {
	m.Normalize()
	if err := m.Validate(); err != nil {
		return false, err
	}
	meds, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	found := false
	for i := range meds {
		if meds[i].ID == m.ID {
			m.CreatedAt = meds[i].CreatedAt
			meds[i] = m
			found = true
			break
		}
	}
	if !found {
		return false, nil
	}
	return true, r.ReplaceAll(ctx, meds)
}

// Delete removes the entry with the given id. It reports false when absent.
func (r *Repository) Delete(ctx context.Context, id string) (bool, error) {
	meds, err := r.List(ctx)
	if err != nil {
		return false, err
	}
	kept := meds[:0]
	for _, m := range meds {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	if len(kept) == len(meds) {
		return false, nil
	}
	return true, r.ReplaceAll(ctx, kept)
}

// ReplaceAll overwrites the whole collection.
func (r *Repository) ReplaceAll(ctx context.Context, meds []domain.Medicine) error {
	if meds == nil {
		meds = []domain.Medicine{}
	}
	return r.rw.Set(ctx, Key, meds)
}
