package pdf

import (
	"context"
	"fmt"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/ledgerline/dunning/internal/report"
)

type StatementProvider struct{}

func New() Provider {
	return &StatementProvider{}
}

func (p *StatementProvider) GenerateStatement(ctx context.Context, st report.Statement) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Overdue Invoice Statement", props.Text{
			Size:  18,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(16,
		col.New(12).Add(
			text.New(st.CustomerName, props.Text{Style: fontstyle.Bold}),
			text.New(st.CustomerEmail, props.Text{Top: 5, Size: 9}),
		),
	)

	m.AddRow(10,
		text.NewCol(6, "Invoice number", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(3, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(3, "Days overdue", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, line := range st.Lines {
		m.AddRow(8,
			text.NewCol(6, line.InvoiceNumber, props.Text{Size: 9}),
			text.NewCol(3, report.FormatMinorUnits(line.AmountMinor), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(3, fmt.Sprintf("%d", line.DaysOverdue), props.Text{Size: 9, Align: align.Right}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return doc.GetBytes(), nil
}
