package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"medstore/m/domain"
)

func TestObserveSale(t *testing.T) {
	m := New()
	m.ObserveSale(domain.Sale{Total: 25, Items: []domain.SaleItem{{Quantity: 2}, {Quantity: 1}}})
	m.ObserveSale(domain.Sale{Total: 5, Items: []domain.SaleItem{{Quantity: 1}}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.SalesTotal))
	assert.Equal(t, 30.0, testutil.ToFloat64(m.RevenueTotal))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.UnitsSold))
}
