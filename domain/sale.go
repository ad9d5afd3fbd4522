package domain

import "time"

// LineItem is a cart line. Name and UnitPrice are copied from the catalog
// when the line is first added.
type LineItem struct {
	MedicineID string  `json:"medicineId"`
	Name       string  `json:"name"`
	UnitPrice  float64 `json:"unitPrice"`
	Quantity   int64   `json:"quantity"`
}

func (l LineItem) Subtotal() float64 {
	return float64(l.Quantity) * l.UnitPrice
}

type Sale struct {
	ID        string     `json:"id"`
	Timestamp time.Time  `json:"timestamp"`
	Items     []SaleItem `json:"items"`
	Total     float64    `json:"total"`
}

type SaleItem struct {
	MedicineID string  `json:"medicineId"`
	Name       string  `json:"name"`
	Quantity   int64   `json:"quantity"`
	UnitPrice  float64 `json:"unitPrice"`
	LineTotal  float64 `json:"lineTotal"`
}

// Quantity returns the number of units across all items of the sale.
func (s Sale) Quantity() int64 {
	var qty int64
	for _, it := range s.Items {
		qty += it.Quantity
	}
	return qty
}
