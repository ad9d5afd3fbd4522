package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicineValidate(t *testing.T) {
	tests := []struct {
		name  string
		med   Medicine
		field string
	}{
		{"valid", Medicine{Name: "Paracetamol", Price: 1, Stock: 3, Expiry: "2027-01-01"}, ""},
		{"no expiry", Medicine{Name: "Bandage"}, ""},
		{"blank name", Medicine{Name: "   "}, "name"},
		{"negative price", Medicine{Name: "A", Price: -1}, "price"},
		{"negative mrp", Medicine{Name: "A", MRP: -0.5}, "mrp"},
		{"negative stock", Medicine{Name: "A", Stock: -1}, "stock"},
		{"bad expiry", Medicine{Name: "A", Expiry: "31/12/2026"}, "expiry"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.med.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, ErrValidation)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
		})
	}
}

func TestMedicineExpiry(t *testing.T) {
	today := time.Date(2026, 10, 18, 15, 0, 0, 0, time.UTC)

	assert.Equal(t, NoExpiry, Medicine{}.ExpiryOrMax())
	assert.True(t, Medicine{Expiry: "2026-10-17"}.ExpiredOn(today))
	assert.False(t, Medicine{Expiry: "2026-10-18"}.ExpiredOn(today))
	assert.False(t, Medicine{}.ExpiredOn(today))
}

func TestNormalize(t *testing.T) {
	m := Medicine{Name: " A ", Category: "\tTablet", Batch: "B1 ", Expiry: " 2026-01-01", Supplier: " S "}
	m.Normalize()
	assert.Equal(t, Medicine{Name: "A", Category: "Tablet", Batch: "B1", Expiry: "2026-01-01", Supplier: "S"}, m)
}

func TestErrorsMatchSentinels(t *testing.T) {
	assert.ErrorIs(t, &NotFoundError{ID: "x"}, ErrNotFound)
	assert.ErrorIs(t, &InsufficientStockError{Name: "A", Requested: 3, Available: 1}, ErrInsufficientStock)
	assert.NotErrorIs(t, &NotFoundError{ID: "x"}, ErrValidation)
	assert.Equal(t, "insufficient stock for A: requested 3, available 1",
		(&InsufficientStockError{Name: "A", Requested: 3, Available: 1}).Error())
}
