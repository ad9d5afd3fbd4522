package seed

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/gocarina/gocsv"
	"go.uber.org/zap"

	"medstore/m/domain"
	"medstore/m/internal/catalog"
	"medstore/m/internal/ledger"
	"medstore/m/internal/store"
)

type medicineRow struct {
	Name     string  `csv:"name"`
	Category string  `csv:"category"`
	Batch    string  `csv:"batch"`
	Expiry   string  `csv:"expiry"`
	Supplier string  `csv:"supplier"`
	Price    float64 `csv:"price"`
	MRP      float64 `csv:"mrp"`
	Stock    int64   `csv:"stock"`
}

// Defaults is the starter catalog used when no CSV is configured.
var Defaults = []domain.Medicine{
	{Name: "Paracetamol 500mg", Category: "Tablet", Batch: "PARA-01", Expiry: "2026-03-31", Supplier: "ACME Pharma", Price: 18.5, MRP: 25, Stock: 120},
	{Name: "Cough Syrup 100ml", Category: "Syrup", Batch: "CS-22A", Expiry: "2026-11-30", Supplier: "Wellness Labs", Price: 55, MRP: 70, Stock: 60},
	{Name: "Vitamin C 1000mg", Category: "Tablet", Batch: "VC-1000", Expiry: "2027-01-15", Supplier: "NutriCare", Price: 3.2, MRP: 5, Stock: 500},
}

// LoadMedicines fills an empty catalog from csvPath, or from Defaults when
// csvPath is empty or missing, and makes sure the sales collection exists.
// Rows that fail validation are skipped. It returns the number of medicines
// added.
func LoadMedicines(ctx context.Context, s *store.Store, csvPath string) (int, error) {
	source, err := readSource(csvPath)
	if err != nil {
		return 0, err
	}

	added := 0
	err = s.Update(ctx, func(tx *store.Tx) error {
		if err := ledger.New(tx).Init(ctx); err != nil {
			return err
		}
		cat := catalog.New(tx)
		existing, err := cat.List(ctx)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			zap.S().Infof("catalog already holds %d medicines, skipping seed", len(existing))
			return nil
		}
		for _, m := range source {
			if _, err := cat.Add(ctx, m); err != nil {
				if errors.Is(err, domain.ErrValidation) {
					zap.S().Warnf("unable to seed medicine %q: %v", m.Name, err)
					continue
				}
				return err
			}
			added++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	if added > 0 {
		zap.S().Infof("seeded medicine catalog with %d rows", added)
	}
	return added, nil
}

func readSource(csvPath string) ([]domain.Medicine, error) {
	if csvPath == "" {
		return Defaults, nil
	}
	file, err := os.Open(csvPath)
	if errors.Is(err, os.ErrNotExist) {
		zap.S().Warnf("medicine catalog %s not found, using defaults", csvPath)
		return Defaults, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open medicine catalog %s: %w", csvPath, err)
	}
	defer file.Close()

	var rows []*medicineRow
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("read medicine catalog %s: %w", csvPath, err)
	}
	meds := make([]domain.Medicine, 0, len(rows))
	for _, r := range rows {
		meds = append(meds, domain.Medicine{
			Name:     r.Name,
			Category: r.Category,
			Batch:    r.Batch,
			Expiry:   r.Expiry,
			Supplier: r.Supplier,
			Price:    r.Price,
			MRP:      r.MRP,
			Stock:    r.Stock,
		})
	}
	return meds, nil
}
