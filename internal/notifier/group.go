package notifier

import (
	"time"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
)

// InvoiceSummary is one deduplicated overdue invoice inside a customer group.
type InvoiceSummary struct {
	InvoiceNumber string
	AmountMinor   int64
	Currency      string
	DaysOverdue   int
}

// CustomerGroup collects a customer's overdue invoices in query order. Name
// and Email stay empty until the customer record is resolved during dispatch.
type CustomerGroup struct {
	CustomerID snowflake.ID
	Name       string
	Email      string
	SalesRepID *snowflake.ID
	Invoices   []InvoiceSummary
}

// GroupStats counts rows dropped while folding the query result.
type GroupStats struct {
	SkippedNoCustomer     int
	SkippedDuplicate      int
	SkippedBelowThreshold int
}

// DaysOverdue is the number of whole days between the due date and now on
// UTC instants, rounded toward negative infinity.
func DaysOverdue(now, due time.Time) int {
	diff := now.UTC().Sub(due.UTC())
	days := diff / (24 * time.Hour)
	if diff < 0 && diff%(24*time.Hour) != 0 {
		days--
	}
	return int(days)
}

// BuildGroups folds overdue rows into one group per customer, preserving the
// first-seen customer order and the row order within each group. Rows without
// a customer reference are dropped, and a (customer, invoice number) pair is
// kept only once even when the backing query yields joined duplicates.
func BuildGroups(rows []invoicedomain.OverdueInvoice, now time.Time, minDaysOverdue int) ([]*CustomerGroup, GroupStats) {
	var stats GroupStats
	groups := make([]*CustomerGroup, 0)
	byCustomer := make(map[snowflake.ID]*CustomerGroup)
	seen := make(map[snowflake.ID]map[string]struct{})

	for _, row := range rows {
		if row.CustomerID == 0 {
			stats.SkippedNoCustomer++
			continue
		}

		numbers, ok := seen[row.CustomerID]
		if !ok {
			numbers = make(map[string]struct{})
			seen[row.CustomerID] = numbers
		}
		if _, dup := numbers[row.InvoiceNumber]; dup {
			stats.SkippedDuplicate++
			continue
		}

		days := DaysOverdue(now, row.DueAt)
		if days < minDaysOverdue {
			stats.SkippedBelowThreshold++
			continue
		}

		numbers[row.InvoiceNumber] = struct{}{}

		group, ok := byCustomer[row.CustomerID]
		if !ok {
			group = &CustomerGroup{CustomerID: row.CustomerID}
			byCustomer[row.CustomerID] = group
			groups = append(groups, group)
		}
		if group.SalesRepID == nil && row.SalesRepID != nil {
			group.SalesRepID = row.SalesRepID
		}
		group.Invoices = append(group.Invoices, InvoiceSummary{
			InvoiceNumber: row.InvoiceNumber,
			AmountMinor:   row.AmountMinor,
			Currency:      row.Currency,
			DaysOverdue:   days,
		})
	}

	return groups, stats
}
