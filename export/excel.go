/*
Package export builds the Excel workbook that travels with the monthly
document email.

PURPOSE:
  Produces a three-sheet workbook from a month's transactions and
  their enriched contexts:
    Transactions - full detail with signed amounts
    Summary      - income/expense totals and bucket counts
    Tax Notes    - only the rows carrying accountant-relevant notes

SIGNED AMOUNTS:
  Stored amounts are unsigned; the workbook shows expenses negative so
  column sums line up for the accountant. The sign is applied at write
  time, never persisted.

SEE ALSO:
  - document/service.go: Calls BuildWorkbook when sending
  - notify/email.go: Attaches the saved file
*/
package export

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/lumo/taxdesk/ledger"
)

const (
	sheetTransactions = "Transactions"
	sheetSummary      = "Summary"
	sheetTaxNotes     = "Tax Notes"
)

// Row is the flat per-transaction form used both for the workbook and
// for the JSON preview endpoint.
type Row struct {
	ID           string `json:"id"`
	Date         string `json:"date"`
	Bank         string `json:"bank"`
	Account      string `json:"account"` // masked
	Counterparty string `json:"counterparty"`
	SignedAmount string `json:"signed_amount"`
	Direction    string `json:"direction"`
	Category     string `json:"category"`
	Memo         string `json:"memo"`
	Recurring    bool   `json:"recurring"`
	TaxNotes     string `json:"tax_notes"`
}

// Rows flattens transactions and contexts into preview rows.
func Rows(txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) []Row {
	rows := make([]Row, 0, len(txs))
	for _, tx := range txs {
		row := Row{
			ID:           tx.ID,
			Date:         tx.Date.Format("2006-01-02"),
			Bank:         tx.BankName,
			Account:      tx.AccountMasked,
			Counterparty: tx.Counterparty,
			SignedAmount: tx.SignedAmount().StringFixed(0),
			Direction:    string(tx.Direction),
			Memo:         tx.BankMemo,
			Recurring:    tx.IsRecurring,
		}
		if ec := contexts[tx.ID]; ec != nil {
			row.Category = ec.Category
			if ec.UserMemo != "" {
				row.Memo = ec.UserMemo
			}
			row.TaxNotes = ec.TaxNotes
		}
		rows = append(rows, row)
	}
	return rows
}

// BuildWorkbook renders the three-sheet workbook. The caller owns the
// returned file and should Close it.
func BuildWorkbook(m ledger.Month, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) (*excelize.File, error) {
	f := excelize.NewFile()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"DDDDDD"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create style: %w", err)
	}

	if err := writeTransactionSheet(f, headerStyle, txs, contexts); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, headerStyle, m, txs); err != nil {
		return nil, err
	}
	if err := writeTaxNotesSheet(f, headerStyle, txs, contexts); err != nil {
		return nil, err
	}

	f.DeleteSheet("Sheet1")
	idx, err := f.GetSheetIndex(sheetTransactions)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(idx)
	return f, nil
}

// WriteFile renders the workbook and saves it at path.
func WriteFile(path string, m ledger.Month, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) error {
	f, err := BuildWorkbook(m, txs, contexts)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

// Bytes renders the workbook into memory, for serving as a download.
func Bytes(m ledger.Month, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) ([]byte, error) {
	f, err := BuildWorkbook(m, txs, contexts)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeTransactionSheet(f *excelize.File, headerStyle int, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) error {
	if _, err := f.NewSheet(sheetTransactions); err != nil {
		return err
	}

	headers := []string{"ID", "Date", "Bank", "Account", "Counterparty", "Amount (KRW)", "Category", "Memo", "Recurring"}
	if err := writeHeaderRow(f, sheetTransactions, headerStyle, headers); err != nil {
		return err
	}

	for i, row := range Rows(txs, contexts) {
		r := i + 2
		amount, _ := tryFloat(row.SignedAmount)
		recurring := ""
		if row.Recurring {
			recurring = "Y"
		}
		values := []any{row.ID, row.Date, row.Bank, row.Account, row.Counterparty, amount, row.Category, row.Memo, recurring}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetTransactions, cell, v); err != nil {
				return err
			}
		}
	}

	f.SetColWidth(sheetTransactions, "A", "A", 26)
	f.SetColWidth(sheetTransactions, "E", "E", 20)
	f.SetColWidth(sheetTransactions, "H", "H", 32)
	return nil
}

func writeSummarySheet(f *excelize.File, headerStyle int, m ledger.Month, txs []ledger.Transaction) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}

	totals := ledger.Sum(txs)
	buckets := ledger.Classify(txs)

	if err := writeHeaderRow(f, sheetSummary, headerStyle, []string{"Item", "Value"}); err != nil {
		return err
	}

	lines := [][2]any{
		{"Month", m.String()},
		{"Transactions", len(txs)},
		{"Total income (KRW)", totals.Income},
		{"Total expense (KRW)", totals.Expense},
		{"Recurring", len(buckets.Recurring)},
		{"Non-recurring (enriched)", len(buckets.NonRecurring)},
		{"Pending enrichment", len(buckets.Pending)},
		{"Banks", joinBanks(totals.Banks)},
	}
	for i, line := range lines {
		r := i + 2
		cellA, _ := excelize.CoordinatesToCellName(1, r)
		cellB, _ := excelize.CoordinatesToCellName(2, r)
		if err := f.SetCellValue(sheetSummary, cellA, line[0]); err != nil {
			return err
		}
		if err := f.SetCellValue(sheetSummary, cellB, line[1]); err != nil {
			return err
		}
	}

	f.SetColWidth(sheetSummary, "A", "A", 28)
	f.SetColWidth(sheetSummary, "B", "B", 24)
	return nil
}

func writeTaxNotesSheet(f *excelize.File, headerStyle int, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) error {
	if _, err := f.NewSheet(sheetTaxNotes); err != nil {
		return err
	}

	if err := writeHeaderRow(f, sheetTaxNotes, headerStyle, []string{"ID", "Date", "Counterparty", "Tax Notes"}); err != nil {
		return err
	}

	r := 2
	for _, tx := range txs {
		ec := contexts[tx.ID]
		if ec == nil || ec.TaxNotes == "" {
			continue
		}
		values := []any{tx.ID, tx.Date.Format("2006-01-02"), tx.Counterparty, ec.TaxNotes}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, r)
			if err != nil {
				return err
			}
			if err := f.SetCellValue(sheetTaxNotes, cell, v); err != nil {
				return err
			}
		}
		r++
	}

	f.SetColWidth(sheetTaxNotes, "A", "A", 26)
	f.SetColWidth(sheetTaxNotes, "D", "D", 50)
	return nil
}

func writeHeaderRow(f *excelize.File, sheet string, style int, headers []string) error {
	for col, h := range headers {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(headers), 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func tryFloat(s string) (float64, bool) {
	var v float64
	if _, err := fmt.Sscanf(s, "%f", &v); err != nil {
		return 0, false
	}
	return v, true
}

func joinBanks(banks []string) string {
	out := ""
	for i, b := range banks {
		if i > 0 {
			out += ", "
		}
		out += b
	}
	return out
}
