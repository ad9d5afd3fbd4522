// Package query derives read-only views over the catalog and the ledger.
package query

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"medstore/m/domain"
)

// LowStockThreshold is the highest stock level still counted as low.
const LowStockThreshold = 5

type StockState string

const (
	StockAny     StockState = ""
	StockIn      StockState = "in"
	StockLow     StockState = "low"
	StockOut     StockState = "out"
	StockExpired StockState = "expired"
)

// ParseStockState accepts "", "any", "in", "low", "out" and "expired".
func ParseStockState(s string) (StockState, error) {
	switch st := StockState(strings.ToLower(strings.TrimSpace(s))); st {
	case StockAny, StockIn, StockLow, StockOut, StockExpired:
		return st, nil
	case "any":
		return StockAny, nil
	default:
		return StockAny, &domain.ValidationError{Field: "stock", Reason: fmt.Sprintf("unknown stock filter %q", s)}
	}
}

type MedicineFilter struct {
	// Search matches name, batch or supplier.
	Search   string
	Category string
	Stock    StockState
}

// FilterMedicines keeps the medicines matching every criterion of f, in
// their original order.
func FilterMedicines(meds []domain.Medicine, f MedicineFilter, today time.Time) []domain.Medicine {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	category := strings.ToLower(strings.TrimSpace(f.Category))

	out := make([]domain.Medicine, 0, len(meds))
	for _, m := range meds {
		if search != "" &&
			!strings.Contains(strings.ToLower(m.Name), search) &&
			!strings.Contains(strings.ToLower(m.Batch), search) &&
			!strings.Contains(strings.ToLower(m.Supplier), search) {
			continue
		}
		if category != "" && !strings.Contains(strings.ToLower(m.Category), category) {
			continue
		}
		if !matchStock(m, f.Stock, today) {
			continue
		}
		out = append(out, m)
	}
	return out
}

func matchStock(m domain.Medicine, state StockState, today time.Time) bool {
	switch state {
	case StockIn:
		return m.Stock > 0
	case StockLow:
		return isLow(m)
	case StockOut:
		return m.Stock <= 0
	case StockExpired:
		return m.ExpiredOn(today)
	default:
		return true
	}
}

func isLow(m domain.Medicine) bool {
	return m.Stock > 0 && m.Stock <= LowStockThreshold
}

type SaleFilter struct {
	// From and To are calendar days; zero means unbounded. Both ends are
	// inclusive.
	From   time.Time
	To     time.Time
	Search string
}

// FilterSales keeps the matching sales, newest first.
func FilterSales(sales []domain.Sale, f SaleFilter) []domain.Sale {
	var from, until time.Time
	if !f.From.IsZero() {
		from = startOfDay(f.From)
	}
	if !f.To.IsZero() {
		until = startOfDay(f.To).AddDate(0, 0, 1)
	}
	search := strings.ToLower(strings.TrimSpace(f.Search))

	out := make([]domain.Sale, 0, len(sales))
	for _, s := range sales {
		if !from.IsZero() && s.Timestamp.Before(from) {
			continue
		}
		if !until.IsZero() && !s.Timestamp.Before(until) {
			continue
		}
		if search != "" && !anyItemMatches(s, search) {
			continue
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	return out
}

func anyItemMatches(s domain.Sale, search string) bool {
	for _, it := range s.Items {
		if strings.Contains(strings.ToLower(it.Name), search) {
			return true
		}
	}
	return false
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

type Summary struct {
	Count    int     `json:"count"`
	Quantity int64   `json:"quantity"`
	Revenue  float64 `json:"revenue"`
}

func Summarize(sales []domain.Sale) Summary {
	sum := Summary{Count: len(sales)}
	for _, s := range sales {
		sum.Revenue += s.Total
		sum.Quantity += s.Quantity()
	}
	return sum
}

type Counts struct {
	Total   int `json:"total"`
	Low     int `json:"low"`
	Out     int `json:"out"`
	Expired int `json:"expired"`
}

// Dashboard counts the catalog by stock and expiry state.
func Dashboard(meds []domain.Medicine, today time.Time) Counts {
	c := Counts{Total: len(meds)}
	for _, m := range meds {
		if isLow(m) {
			c.Low++
		}
		if m.Stock <= 0 {
			c.Out++
		}
		if m.ExpiredOn(today) {
			c.Expired++
		}
	}
	return c
}

// ExpiringWithin returns the medicines with an expiry between today and
// today+days inclusive, soonest first.
func ExpiringWithin(meds []domain.Medicine, today time.Time, days int) []domain.Medicine {
	lo := today.Format(domain.DateLayout)
	hi := today.AddDate(0, 0, days).Format(domain.DateLayout)

	out := make([]domain.Medicine, 0)
	for _, m := range meds {
		if m.Expiry == "" {
			continue
		}
		if m.Expiry >= lo && m.Expiry <= hi {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Expiry < out[j].Expiry })
	return out
}

// SortByName orders a copy of meds by name, ignoring case.
func SortByName(meds []domain.Medicine) []domain.Medicine {
	out := append([]domain.Medicine(nil), meds...)
	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	return out
}
