// Package report renders per-customer overdue statements.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/gosimple/slug"
)

// Line is one overdue invoice on a statement.
type Line struct {
	InvoiceNumber string
	AmountMinor   int64
	Currency      string
	DaysOverdue   int
}

// Statement is the per-customer input to the renderers. Lines keep the order
// of the overdue query.
type Statement struct {
	CustomerName  string
	CustomerEmail string
	Lines         []Line
}

// Options control optional statement columns.
type Options struct {
	IncludeCustomerColumns bool
}

// FormatMinorUnits renders an amount held in minor units as a plain decimal
// with two fraction digits and no currency symbol.
func FormatMinorUnits(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

// FileName derives a filesystem-safe attachment name from the customer name,
// suffixed with the run timestamp so repeated runs do not collide.
func FileName(customerName string, now time.Time, ext string) string {
	base := slug.Make(customerName)
	if base == "" {
		base = "customer"
	}
	ext = strings.TrimPrefix(ext, ".")
	return fmt.Sprintf("%s-%s.%s", base, now.UTC().Format("20060102T150405"), ext)
}
