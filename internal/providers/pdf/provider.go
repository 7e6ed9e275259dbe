package pdf

import (
	"context"

	"github.com/ledgerline/dunning/internal/report"
)

// Provider renders an overdue statement as PDF bytes.
type Provider interface {
	GenerateStatement(ctx context.Context, st report.Statement) ([]byte, error)
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateStatement(ctx context.Context, st report.Statement) ([]byte, error) {
	return nil, nil
}
