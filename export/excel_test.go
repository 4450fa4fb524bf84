package export

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumo/taxdesk/ledger"
)

func sampleMonth() (ledger.Month, []ledger.Transaction, map[string]*ledger.EnrichedContext) {
	m := ledger.Month{Year: 2026, Mon: time.February}
	txs := []ledger.Transaction{
		{
			ID:            "2026-02-03-003-CLI-001",
			BankName:      "기업은행",
			AccountMasked: "***-***-789",
			Date:          time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC),
			Amount:        500000,
			Direction:     ledger.Income,
			Counterparty:  "Client Co",
			Status:        ledger.StatusEnriched,
		},
		{
			ID:            "2026-02-05-003-AWS-001",
			BankName:      "기업은행",
			AccountMasked: "***-***-789",
			Date:          time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC),
			Amount:        50000,
			Direction:     ledger.Expense,
			Counterparty:  "AWS Korea",
			BankMemo:      "cloud bill",
			IsRecurring:   true,
			Status:        ledger.StatusEnriched,
		},
	}
	contexts := map[string]*ledger.EnrichedContext{
		"2026-02-05-003-AWS-001": {
			ID:            "EC-1",
			TransactionID: "2026-02-05-003-AWS-001",
			UserMemo:      "Development/research",
			Category:      "Development - Cloud",
			TaxNotes:      "Recurring infrastructure cost",
		},
	}
	return m, txs, contexts
}

func TestRowsSignedAmountsAndContextOverlay(t *testing.T) {
	_, txs, contexts := sampleMonth()

	rows := Rows(txs, contexts)
	require.Len(t, rows, 2)

	// Income stays positive, expense goes negative
	assert.Equal(t, "500000", rows[0].SignedAmount)
	assert.Equal(t, "-50000", rows[1].SignedAmount)

	// Context memo overrides the bank memo when present
	assert.Equal(t, "Development/research", rows[1].Memo)
	assert.Equal(t, "Development - Cloud", rows[1].Category)
	assert.Equal(t, "cloud bill", txs[1].BankMemo)

	// No context means bank fields pass through untouched
	assert.Empty(t, rows[0].Category)
	assert.Empty(t, rows[0].TaxNotes)
}

func TestBuildWorkbookSheets(t *testing.T) {
	m, txs, contexts := sampleMonth()

	f, err := BuildWorkbook(m, txs, contexts)
	require.NoError(t, err)
	defer f.Close()

	assert.ElementsMatch(t, []string{"Transactions", "Summary", "Tax Notes"}, f.GetSheetList())

	// Transaction detail carries the signed amount
	got, err := f.GetCellValue("Transactions", "F3")
	require.NoError(t, err)
	assert.Equal(t, "-50000", got)

	// Summary totals
	month, err := f.GetCellValue("Summary", "B2")
	require.NoError(t, err)
	assert.Equal(t, "2026-02", month)
	income, err := f.GetCellValue("Summary", "B4")
	require.NoError(t, err)
	assert.Equal(t, "500000", income)
}

func TestBuildWorkbookTaxNotesOnlyNotedRows(t *testing.T) {
	m, txs, contexts := sampleMonth()

	f, err := BuildWorkbook(m, txs, contexts)
	require.NoError(t, err)
	defer f.Close()

	// Only the AWS row carries tax notes; row 3 stays empty
	id, err := f.GetCellValue("Tax Notes", "A2")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-05-003-AWS-001", id)

	next, err := f.GetCellValue("Tax Notes", "A3")
	require.NoError(t, err)
	assert.Empty(t, next)
}
