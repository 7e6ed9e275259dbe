package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
)

var (
	csvHeader         = []string{"Invoice Number", "Amount", "Days Overdue"}
	csvHeaderExtended = []string{"Customer Name", "Customer Email", "Invoice Number", "Amount", "Days Overdue"}
)

// RenderCSV renders a statement as CSV text: a constant header row followed
// by one row per invoice line. Fields containing the delimiter are quoted by
// the writer; invoice numbers and amounts never need it.
func RenderCSV(st Statement, opts Options) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := csvHeader
	if opts.IncludeCustomerColumns {
		header = csvHeaderExtended
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}

	for _, line := range st.Lines {
		record := []string{
			line.InvoiceNumber,
			FormatMinorUnits(line.AmountMinor),
			strconv.Itoa(line.DaysOverdue),
		}
		if opts.IncludeCustomerColumns {
			record = append([]string{st.CustomerName, st.CustomerEmail}, record...)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
