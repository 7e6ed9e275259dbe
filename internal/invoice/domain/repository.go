package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	// FindOpenOverdue returns every OPEN invoice whose due date is strictly
	// before the cutoff, ordered as the backing query yields them.
	FindOpenOverdue(ctx context.Context, db *gorm.DB, before time.Time) ([]OverdueInvoice, error)
}
