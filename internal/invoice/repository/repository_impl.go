package repository

import (
	"context"
	"time"

	"github.com/ledgerline/dunning/internal/invoice/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindOpenOverdue(ctx context.Context, db *gorm.DB, before time.Time) ([]domain.OverdueInvoice, error) {
	var rows []domain.OverdueInvoice
	err := db.WithContext(ctx).Raw(
		`SELECT i.customer_id, i.invoice_number, i.amount_minor, i.currency, i.due_at, c.sales_rep_id
		 FROM invoices i
		 LEFT JOIN customers c ON c.id = i.customer_id
		 WHERE i.status = ? AND i.due_at < ?
		 ORDER BY i.due_at ASC, i.id ASC`,
		domain.InvoiceStatusOpen,
		before.UTC(),
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
