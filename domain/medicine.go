package domain

import (
	"strings"
	"time"
)

// DateLayout is the calendar date format used for expiry dates.
const DateLayout = "2006-01-02"

// NoExpiry stands in for a missing expiry date when comparing dates.
const NoExpiry = "9999-12-31"

type Medicine struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Category  string    `json:"category"`
	Batch     string    `json:"batch"`
	Expiry    string    `json:"expiry"`
	Supplier  string    `json:"supplier"`
	Price     float64   `json:"price"`
	MRP       float64   `json:"mrp"`
	Stock     int64     `json:"stock"`
	CreatedAt time.Time `json:"createdAt"`
}

// ExpiryOrMax returns the expiry date, or NoExpiry when none is set.
func (m Medicine) ExpiryOrMax() string {
	if strings.TrimSpace(m.Expiry) == "" {
		return NoExpiry
	}
	return m.Expiry
}

// ExpiredOn reports whether the medicine expired strictly before the given day.
func (m Medicine) ExpiredOn(today time.Time) bool {
	return m.ExpiryOrMax() < today.Format(DateLayout)
}

// Normalize trims the free-text fields in place.
func (m *Medicine) Normalize() {
	m.Name = strings.TrimSpace(m.Name)
	m.Category = strings.TrimSpace(m.Category)
	m.Batch = strings.TrimSpace(m.Batch)
	m.Expiry = strings.TrimSpace(m.Expiry)
	m.Supplier = strings.TrimSpace(m.Supplier)
}

// Validate checks the fields a catalog entry must satisfy.
func (m Medicine) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}
	if m.Price < 0 {
		return &ValidationError{Field: "price", Reason: "must not be negative"}
	}
	if m.MRP < 0 {
		return &ValidationError{Field: "mrp", Reason: "must not be negative"}
	}
	if m.Stock < 0 {
		return &ValidationError{Field: "stock", Reason: "must not be negative"}
	}
	if exp := strings.TrimSpace(m.Expiry); exp != "" {
		if _, err := time.Parse(DateLayout, exp); err != nil {
			return &ValidationError{Field: "expiry", Reason: "must be in YYYY-MM-DD format"}
		}
	}
	return nil
}
