// Package domain contains persistence models for the mirrored ERP invoices.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states as mirrored from the ERP.
type InvoiceStatus string

const (
	InvoiceStatusOpen InvoiceStatus = "OPEN"
	InvoiceStatusPaid InvoiceStatus = "PAID"
	InvoiceStatusVoid InvoiceStatus = "VOID"
)

// Invoice is one receivable. Amounts are minor units of Currency.
type Invoice struct {
	ID            snowflake.ID      `gorm:"primaryKey"`
	InvoiceNumber string            `gorm:"type:text;not null;uniqueIndex:ux_invoices_number"`
	CustomerID    snowflake.ID      `gorm:"index"`
	Status        InvoiceStatus     `gorm:"type:text;not null;default:'OPEN'"`
	AmountMinor   int64             `gorm:"not null;default:0"`
	Currency      string            `gorm:"type:text;not null"`
	DueAt         time.Time         `gorm:"not null;index"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt     time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// OverdueInvoice is one row of the overdue query: the invoice joined with the
// owning customer's assigned sales representative. CustomerID may be zero for
// rows whose customer reference is broken upstream; callers skip those.
type OverdueInvoice struct {
	CustomerID    snowflake.ID
	InvoiceNumber string
	AmountMinor   int64
	Currency      string
	DueAt         time.Time
	SalesRepID    *snowflake.ID
}
