// Package export renders datasets as delimited or structured text.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"medstore/m/domain"
)

type Dataset string

const (
	Medicines Dataset = "medicines"
	Sales     Dataset = "sales"
)

type Format string

const (
	CSV  Format = "csv"
	JSON Format = "json"
)

// Field is one named cell of a row.
type Field struct {
	Name  string
	Value any
}

// Row is an ordered record; field order is the column order.
type Row []Field

// ToDelimitedText renders rows as comma separated text. The header comes
// from the first row's field names. Every value is double quoted, embedded
// quotes are doubled and newlines become spaces. An empty input yields "".
func ToDelimitedText(rows []Row) string {
	if len(rows) == 0 {
		return ""
	}
	headers := make([]string, len(rows[0]))
	for i, f := range rows[0] {
		headers[i] = f.Name
	}

	var b strings.Builder
	b.WriteString(strings.Join(headers, ","))
	for _, row := range rows {
		b.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(escape(row.value(h)))
			b.WriteByte('"')
		}
	}
	return b.String()
}

func (r Row) value(name string) any {
	for _, f := range r {
		if f.Name == name {
			return f.Value
		}
	}
	return nil
}

func escape(v any) string {
	s := strings.ReplaceAll(formatValue(v), `"`, `""`)
	return strings.ReplaceAll(s, "\n", " ")
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	default:
		return fmt.Sprint(x)
	}
}

// ToStructuredText renders v as JSON indented by two spaces.
func ToStructuredText(v any) (string, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode json: %w", err)
	}
	return string(out), nil
}

func MedicineRows(meds []domain.Medicine) []Row {
	rows := make([]Row, 0, len(meds))
	for _, m := range meds {
		rows = append(rows, Row{
			{"id", m.ID},
			{"name", m.Name},
			{"category", m.Category},
			{"batch", m.Batch},
			{"expiry", m.Expiry},
			{"supplier", m.Supplier},
			{"price", m.Price},
			{"mrp", m.MRP},
			{"stock", m.Stock},
			{"createdAt", m.CreatedAt},
		})
	}
	return rows
}

// SaleRows flattens sales into one row per sold item.
func SaleRows(sales []domain.Sale) []Row {
	var rows []Row
	for _, s := range sales {
		for _, it := range s.Items {
			rows = append(rows, Row{
				{"saleId", s.ID},
				{"ts", s.Timestamp},
				{"item", it.Name},
				{"qty", it.Quantity},
				{"price", it.UnitPrice},
				{"total", it.LineTotal},
				{"billTotal", s.Total},
			})
		}
	}
	return rows
}

// File is a rendered export ready to be offered for download.
type File struct {
	Name        string
	ContentType string
	Body        string
}

// Render produces the export file for a dataset in the given format.
func Render(dataset Dataset, format Format, meds []domain.Medicine, sales []domain.Sale) (File, error) {
	f := File{Name: string(dataset) + "." + string(format)}

	var (
		value any
		rows  []Row
	)
	switch dataset {
	case Medicines:
		value, rows = meds, MedicineRows(meds)
	case Sales:
		value, rows = sales, SaleRows(sales)
	default:
		return File{}, &domain.ValidationError{Field: "dataset", Reason: fmt.Sprintf("unknown dataset %q", dataset)}
	}

	switch format {
	case CSV:
		f.ContentType = "text/csv"
		f.Body = ToDelimitedText(rows)
	case JSON:
		body, err := ToStructuredText(value)
		if err != nil {
			return File{}, err
		}
		f.ContentType = "application/json"
		f.Body = body
	default:
		return File{}, &domain.ValidationError{Field: "format", Reason: fmt.Sprintf("unknown format %q", format)}
	}
	return f, nil
}
