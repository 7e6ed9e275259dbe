// Package seed creates a small demo data set so a fresh install produces
// visible notifications without hand-loading the database.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/ledgerline/dunning/internal/customer/domain"
	employeedomain "github.com/ledgerline/dunning/internal/employee/domain"
	invoicedomain "github.com/ledgerline/dunning/internal/invoice/domain"
	"github.com/ledgerline/dunning/pkg/db"
	"gorm.io/gorm"
)

type demoInvoice struct {
	number      string
	amountMinor int64
	monthsLate  int
}

type demoCustomer struct {
	company  string
	email    string
	withRep  bool
	invoices []demoInvoice
}

var demoCustomers = []demoCustomer{
	{
		company: "Acme Corp",
		email:   "ap@acme.example",
		withRep: true,
		invoices: []demoInvoice{
			{number: "DEMO-1001", amountMinor: 125_000, monthsLate: 3},
			{number: "DEMO-1002", amountMinor: 48_050, monthsLate: 2},
		},
	},
	{
		company: "Globex",
		email:   "finance@globex.example",
		invoices: []demoInvoice{
			{number: "DEMO-2001", amountMinor: 9_900, monthsLate: 1},
		},
	},
	{
		// No mailbox on file: exercises the skip-and-continue path.
		company: "Initech",
		invoices: []demoInvoice{
			{number: "DEMO-3001", amountMinor: 310_000, monthsLate: 4},
		},
	},
}

// EnsureDemoData inserts the demo directory and invoices once. Re-running is
// a no-op keyed on the demo invoice numbers.
func EnsureDemoData(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&invoicedomain.Invoice{}).
			Where("invoice_number LIKE ?", "DEMO-%").
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		rep := employeedomain.Employee{
			ID:    node.Generate(),
			Name:  "Dana Reyes",
			Email: "dana.reyes@corp.example",
		}
		if err := tx.Create(&rep).Error; err != nil {
			return err
		}

		now := time.Now().UTC()
		for _, dc := range demoCustomers {
			customer := customerdomain.Customer{
				ID:          node.Generate(),
				CompanyName: dc.company,
				Email:       dc.email,
			}
			if dc.withRep {
				repID := rep.ID
				customer.SalesRepID = &repID
			}
			if err := tx.Create(&customer).Error; err != nil {
				return err
			}

			for _, di := range dc.invoices {
				inv := invoicedomain.Invoice{
					ID:            node.Generate(),
					InvoiceNumber: di.number,
					CustomerID:    customer.ID,
					Status:        invoicedomain.InvoiceStatusOpen,
					AmountMinor:   di.amountMinor,
					Currency:      "USD",
					DueAt:         now.AddDate(0, -di.monthsLate, 0),
				}
				if err := tx.Create(&inv).Error; err != nil {
					// Two replicas starting together can race past the count
					// guard; the invoice number carries the uniqueness.
					if db.IsDuplicateKeyErr(err) {
						continue
					}
					return err
				}
			}
		}
		return nil
	})
}
