// Package cart assembles sale lines and commits them against the catalog
// and the ledger.
package cart

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/catalog"
	"medstore/m/internal/ledger"
	"medstore/m/internal/store"
)

type State int

const (
	Empty State = iota
	Accumulating
)

func (s State) String() string {
	if s == Accumulating {
		return "accumulating"
	}
	return "empty"
}

// Cart is one sale session. It is owned by a single caller and is not safe
// for concurrent use.
type Cart struct {
	store *store.Store
	lines []domain.LineItem
	now   func() time.Time
	newID func() string
}

type Option func(*Cart)

func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

func WithIDGenerator(newID func() string) Option {
	return func(c *Cart) { c.newID = newID }
}

func New(s *store.Store, opts ...Option) *Cart {
	c := &Cart{store: s, now: time.Now, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddLine adds quantity units of a medicine, merging with an existing line.
// Stock is checked against the catalog now; nothing is reserved. On error
// the cart is unchanged.
func (c *Cart) AddLine(ctx context.Context, medicineID string, quantity int64) error {
	if quantity < 1 {
		return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
	}
	med, err := catalog.New(c.store).Get(ctx, medicineID)
	if err != nil {
		return err
	}
	if quantity > med.Stock {
		return &domain.InsufficientStockError{MedicineID: med.ID, Name: med.Name, Requested: quantity, Available: med.Stock}
	}

	for i := range c.lines {
		if c.lines[i].MedicineID == medicineID {
			if c.lines[i].Quantity > math.MaxInt64-quantity {
				return &domain.ValidationError{Field: "quantity", Reason: "exceeds the largest quantity a line can hold"}
			}
			c.lines[i].Quantity += quantity
			return nil
		}
	}
	c.lines = append(c.lines, domain.LineItem{
		MedicineID: med.ID,
		Name:       med.Name,
		UnitPrice:  med.Price,
		Quantity:   quantity,
	})
	return nil
}

// RemoveLine drops the line for the medicine, if any.
func (c *Cart) RemoveLine(medicineID string) {
	for i := range c.lines {
		if c.lines[i].MedicineID == medicineID {
			c.lines = append(c.lines[:i], c.lines[i+1:]...)
			return
		}
	}
}

// Lines returns a copy of the current lines in insertion order.
func (c *Cart) Lines() []domain.LineItem {
	return append([]domain.LineItem(nil), c.lines...)
}

func (c *Cart) State() State {
	if len(c.lines) == 0 {
		return Empty
	}
	return Accumulating
}

func (c *Cart) Total() float64 {
	var total float64
	for _, l := range c.lines {
		total += l.Subtotal()
	}
	return total
}

func (c *Cart) Clear() {
	c.lines = nil
}

// Commit re-checks every line against current stock, deducts the stock and
// records the sale. The catalog and ledger are written as one batch, and the
// cart is emptied only when that write succeeds.
func (c *Cart) Commit(ctx context.Context) (domain.Sale, error) {
	if len(c.lines) == 0 {
		return domain.Sale{}, domain.ErrEmptyCart
	}

	var sale domain.Sale
	err := c.store.Update(ctx, func(tx *store.Tx) error {
		cat := catalog.New(tx)
		meds, err := cat.List(ctx)
		if err != nil {
			return err
		}
		index := make(map[string]int, len(meds))
		for i, m := range meds {
			index[m.ID] = i
		}

		for _, l := range c.lines {
			if l.Quantity < 1 {
				return &domain.ValidationError{Field: "quantity", Reason: "must be at least 1"}
			}
			i, ok := index[l.MedicineID]
			if !ok {
				return &domain.NotFoundError{ID: l.MedicineID}
			}
			if meds[i].Stock < l.Quantity {
				return &domain.InsufficientStockError{MedicineID: l.MedicineID, Name: l.Name, Requested: l.Quantity, Available: meds[i].Stock}
			}
		}
		for _, l := range c.lines {
			meds[index[l.MedicineID]].Stock -= l.Quantity
		}
		if err := cat.ReplaceAll(ctx, meds); err != nil {
			return fmt.Errorf("save catalog: %w", err)
		}

		sale = c.buildSale()
		if err := ledger.New(tx).Append(ctx, sale); err != nil {
			return fmt.Errorf("record sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return domain.Sale{}, err
	}

	zap.S().Infow("sale committed", "sale_id", sale.ID, "items", len(sale.Items), "total", sale.Total)
	c.Clear()
	return sale, nil
}

func (c *Cart) buildSale() domain.Sale {
	sale := domain.Sale{
		ID:        c.newID(),
		Timestamp: c.now().UTC(),
		Items:     make([]domain.SaleItem, 0, len(c.lines)),
	}
	for _, l := range c.lines {
		lineTotal := l.Subtotal()
		sale.Items = append(sale.Items, domain.SaleItem{
			MedicineID: l.MedicineID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			LineTotal:  lineTotal,
		})
		sale.Total += lineTotal
	}
	return sale
}
