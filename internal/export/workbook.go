// Package export renders a finance month as an XLSX workbook.
package export

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"yeardash/internal/aggregate"
	"yeardash/internal/core"
	"yeardash/internal/sheets"
)

const (
	SummarySheet      = "Summary"
	TransactionsSheet = "Transactions"

	// ContentType is the media type of the bytes returned by MonthXLSX.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// MonthWorkbook builds a workbook with a Summary sheet (per-currency totals
// and the category breakdown) and a Transactions sheet listing the view's
// transactions in the order given.
func MonthWorkbook(view aggregate.FinanceView, loc *time.Location) (*excelize.File, error) {
	f := excelize.NewFile()

	// NewFile starts with "Sheet1"; rename it rather than leave it empty.
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(TransactionsSheet); err != nil {
		return nil, fmt.Errorf("new sheet: %w", err)
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return nil, fmt.Errorf("amount style: %w", err)
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}

	w := &sheetWriter{f: f, amountStyle: amountStyle, boldStyle: boldStyle}
	writeSummary(w, view)
	writeTransactions(w, view.Transactions, loc)
	if w.err != nil {
		f.Close()
		return nil, w.err
	}

	idx, _ := f.GetSheetIndex(SummarySheet)
	f.SetActiveSheet(idx)
	return f, nil
}

// MonthXLSX is MonthWorkbook serialized to bytes.
func MonthXLSX(view aggregate.FinanceView, loc *time.Location) ([]byte, error) {
	f, err := MonthWorkbook(view, loc)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// FileName is the suggested download name for a month.
func FileName(view aggregate.FinanceView) string {
	return fmt.Sprintf("finance-%s.xlsx", view.Period)
}

func writeSummary(w *sheetWriter, view aggregate.FinanceView) {
	const sheet = SummarySheet
	w.header(sheet, 1, "Period")
	w.set(sheet, 2, 1, view.Period)
	w.header(sheet, 2, "Transactions")
	w.set(sheet, 2, 2, view.Summary.Count)

	row := 4
	w.header(sheet, row, "Currency", "Income", "Expenses", "Balance", "Count")
	row++
	for _, c := range view.Summary.Currencies {
		t := view.Summary.ByCurrency[c]
		w.set(sheet, 1, row, string(c))
		w.amount(sheet, 2, row, t.Income)
		w.amount(sheet, 3, row, t.Expenses)
		w.amount(sheet, 4, row, t.Balance)
		w.set(sheet, 5, row, t.Count)
		row++
	}

	row++
	w.header(sheet, row, "Type", "Category", "Total", "Count")
	row++
	for _, b := range view.Breakdown {
		w.set(sheet, 1, row, string(b.Type))
		w.set(sheet, 2, row, b.Category)
		w.amount(sheet, 3, row, b.Total)
		w.set(sheet, 4, row, b.Count)
		row++
	}

	w.width(sheet, "A", "B", 16)
	w.width(sheet, "C", "E", 14)
}

func writeTransactions(w *sheetWriter, txs []core.Transaction, loc *time.Location) {
	const sheet = TransactionsSheet
	header := make([]any, len(sheets.Header))
	for i, h := range sheets.Header {
		header[i] = h
	}
	w.header(sheet, 1, header...)

	amountCol := len(sheets.Header)
	for i, t := range txs {
		row := i + 2
		cells := sheets.Row(t, loc)
		for col, v := range cells[:amountCol-1] {
			w.set(sheet, col+1, row, v)
		}
		w.amount(sheet, amountCol, row, t.Amount)
	}

	w.width(sheet, "A", "A", 12)
	w.width(sheet, "B", "B", 36)
	w.width(sheet, "C", "E", 14)
	w.width(sheet, "F", "F", 14)
}

// sheetWriter remembers the first error so cell writes stay readable.
type sheetWriter struct {
	f           *excelize.File
	amountStyle int
	boldStyle   int
	err         error
}

func (w *sheetWriter) set(sheet string, col, row int, v any) {
	if w.err != nil {
		return
	}
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		w.err = err
		return
	}
	w.err = w.f.SetCellValue(sheet, cell, v)
}

func (w *sheetWriter) amount(sheet string, col, row int, d decimal.Decimal) {
	w.set(sheet, col, row, d.InexactFloat64())
	if w.err != nil {
		return
	}
	cell, _ := excelize.CoordinatesToCellName(col, row)
	w.err = w.f.SetCellStyle(sheet, cell, cell, w.amountStyle)
}

func (w *sheetWriter) header(sheet string, row int, values ...any) {
	for i, v := range values {
		w.set(sheet, i+1, row, v)
	}
	if w.err != nil || len(values) == 0 {
		return
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	w.err = w.f.SetCellStyle(sheet, first, last, w.boldStyle)
}

func (w *sheetWriter) width(sheet, from, to string, width float64) {
	if w.err == nil {
		w.err = w.f.SetColWidth(sheet, from, to, width)
	}
}
