package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumo/taxdesk/ledger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testTransaction(id string, date time.Time, amount int64, dir ledger.Direction) ledger.Transaction {
	return ledger.Transaction{
		ID:               id,
		BankName:         "기업은행",
		AccountEncrypted: "ciphertext",
		AccountMasked:    "***-***-789",
		Date:             date,
		Time:             "14:30:00",
		Amount:           amount,
		Direction:        dir,
		Counterparty:     "AWS Korea",
		BankMemo:         "cloud bill",
		Status:           ledger.StatusPendingEnrichment,
	}
}

func TestSaveAndGetTransaction(t *testing.T) {
	// GIVEN a stored transaction
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("2026-02-05-003-AWS-001", date, 50000, ledger.Expense)))

	// WHEN reading it back
	got, err := store.GetTransaction(ctx, "2026-02-05-003-AWS-001")
	require.NoError(t, err)
	require.NotNil(t, got)

	// THEN all fields survive the roundtrip
	assert.Equal(t, "기업은행", got.BankName)
	assert.Equal(t, "***-***-789", got.AccountMasked)
	assert.Equal(t, int64(50000), got.Amount)
	assert.Equal(t, ledger.Expense, got.Direction)
	assert.Equal(t, "AWS Korea", got.Counterparty)
	assert.Equal(t, "cloud bill", got.BankMemo)
	assert.Equal(t, ledger.StatusPendingEnrichment, got.Status)
	assert.True(t, got.Date.Equal(date))
}

func TestGetTransactionMissing(t *testing.T) {
	store := newTestStore(t)

	got, err := store.GetTransaction(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTransactionExists(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Income)))

	exists, err := store.TransactionExists(ctx, "tx-1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = store.TransactionExists(ctx, "tx-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestListMonthExcludesInternalTransfers(t *testing.T) {
	// GIVEN a month with a normal transaction and an internal transfer
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	normal := testTransaction("tx-normal", date, 50000, ledger.Expense)
	transfer := testTransaction("tx-transfer", date, 100000, ledger.Expense)
	transfer.IsInternalTransfer = true
	require.NoError(t, store.SaveTransaction(ctx, normal))
	require.NoError(t, store.SaveTransaction(ctx, transfer))

	// WHEN listing the month
	m := ledger.Month{Year: 2026, Mon: time.February}
	txs, err := store.ListMonth(ctx, m)
	require.NoError(t, err)

	// THEN only the normal transaction appears
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-normal", txs[0].ID)
}

func TestListMonthChronological(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	late := testTransaction("tx-late", time.Date(2026, 2, 20, 0, 0, 0, 0, time.UTC), 1000, ledger.Income)
	early := testTransaction("tx-early", time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC), 2000, ledger.Expense)
	outside := testTransaction("tx-march", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 3000, ledger.Expense)
	require.NoError(t, store.SaveTransaction(ctx, late))
	require.NoError(t, store.SaveTransaction(ctx, early))
	require.NoError(t, store.SaveTransaction(ctx, outside))

	txs, err := store.ListMonth(ctx, ledger.Month{Year: 2026, Mon: time.February})
	require.NoError(t, err)

	require.Len(t, txs, 2)
	assert.Equal(t, "tx-early", txs[0].ID)
	assert.Equal(t, "tx-late", txs[1].ID)
}

func TestListPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	pending := testTransaction("tx-pending", date, 1000, ledger.Expense)
	enriched := testTransaction("tx-enriched", date, 2000, ledger.Expense)
	enriched.Status = ledger.StatusEnriched
	transfer := testTransaction("tx-transfer", date, 3000, ledger.Expense)
	transfer.IsInternalTransfer = true
	require.NoError(t, store.SaveTransaction(ctx, pending))
	require.NoError(t, store.SaveTransaction(ctx, enriched))
	require.NoError(t, store.SaveTransaction(ctx, transfer))

	txs, err := store.ListPending(ctx)
	require.NoError(t, err)

	require.Len(t, txs, 1)
	assert.Equal(t, "tx-pending", txs[0].ID)
}

func TestListByCounterpartyLimit(t *testing.T) {
	// GIVEN seven past AWS transactions plus the one being enriched
	store := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 7; i++ {
		tx := testTransaction(
			time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")+"-003-AWS-001",
			time.Date(2026, 1, i, 0, 0, 0, 0, time.UTC), 50000, ledger.Expense)
		require.NoError(t, store.SaveTransaction(ctx, tx))
	}
	current := testTransaction("tx-current", time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC), 50000, ledger.Expense)
	require.NoError(t, store.SaveTransaction(ctx, current))

	// WHEN looking up past patterns with a limit of 5
	txs, err := store.ListByCounterparty(ctx, "AWS Korea", "tx-current", 5)
	require.NoError(t, err)

	// THEN the current transaction is excluded and the limit applies,
	// newest first
	require.Len(t, txs, 5)
	for _, tx := range txs {
		assert.NotEqual(t, "tx-current", tx.ID)
	}
	assert.Equal(t, "2026-01-07-003-AWS-001", txs[0].ID)
}

func TestSetTransactionEnriched(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Expense)))

	require.NoError(t, store.SetTransactionEnriched(ctx, "tx-1", ledger.StatusEnriched, true))

	got, err := store.GetTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusEnriched, got.Status)
	assert.True(t, got.IsRecurring)

	// Unknown id surfaces as not-found
	err = store.SetTransactionEnriched(ctx, "nope", ledger.StatusEnriched, false)
	assert.ErrorIs(t, err, ledger.ErrTransactionNotFound)
}

func TestListTransactionsFilterAndPaging(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	for i := 1; i <= 6; i++ {
		tx := testTransaction(
			time.Date(2026, 2, i, 0, 0, 0, 0, time.UTC).Format("2006-01-02")+"-003-AWS-001",
			time.Date(2026, 2, i, 0, 0, 0, 0, time.UTC), 1000, ledger.Expense)
		require.NoError(t, store.SaveTransaction(ctx, tx))
	}
	other := testTransaction("tx-march", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), 1000, ledger.Expense)
	other.BankName = "국민은행"
	require.NoError(t, store.SaveTransaction(ctx, other))

	m := ledger.Month{Year: 2026, Mon: time.February}
	txs, total, err := store.ListTransactions(ctx, ledger.TransactionFilter{
		Month: &m, Page: 1, PageSize: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, txs, 4)

	txs, total, err = store.ListTransactions(ctx, ledger.TransactionFilter{
		Month: &m, Page: 2, PageSize: 4,
	})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Len(t, txs, 2)

	txs, total, err = store.ListTransactions(ctx, ledger.TransactionFilter{Bank: "국민은행"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, txs, 1)
	assert.Equal(t, "tx-march", txs[0].ID)
}

// =============================================================================
// CONTEXT STORE
// =============================================================================

func testContext(id, txID string) *ledger.EnrichedContext {
	return &ledger.EnrichedContext{
		ID:            id,
		TransactionID: txID,
		UserMemo:      "Development/research",
		Category:      "Development - Cloud",
		IsRecurring:   true,
		Frequency:     "monthly",
		Documents:     ledger.DefaultDocuments(),
	}
}

func TestSaveAndGetContext(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 50000, ledger.Expense)))

	ec := testContext("EC-1", "tx-1")
	ec.RelatedTransactionIDs = []string{"tx-2"}
	require.NoError(t, store.SaveContext(ctx, ec))

	got, err := store.GetContextByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Development/research", got.UserMemo)
	assert.True(t, got.IsRecurring)
	assert.Equal(t, "monthly", got.Frequency)
	assert.Equal(t, []string{"tx-2"}, got.RelatedTransactionIDs)
	assert.Equal(t, ledger.DocsNeedsPrep, got.Documents.Status)
}

func TestSaveContextDuplicate(t *testing.T) {
	// GIVEN a transaction that already has a context
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Expense)))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-1", "tx-1")))

	// WHEN saving a second context for the same transaction
	err := store.SaveContext(ctx, testContext("EC-2", "tx-1"))

	// THEN the unique constraint surfaces as ErrContextExists
	assert.ErrorIs(t, err, ledger.ErrContextExists)
}

func TestGetContextsByTransactions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Expense)))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-2", date, 2000, ledger.Expense)))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-1", "tx-1")))

	got, err := store.GetContextsByTransactions(ctx, []string{"tx-1", "tx-2", "tx-3"})
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, "EC-1", got["tx-1"].ID)
}

func TestUpdateContextsAtomic(t *testing.T) {
	// GIVEN two stored contexts
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Expense)))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-2", date, 2000, ledger.Expense)))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-1", "tx-1")))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-2", "tx-2")))

	// WHEN one row in the batch targets a nonexistent context
	good := testContext("EC-1", "tx-1")
	good.RelatedTransactionIDs = []string{"tx-2"}
	missing := testContext("EC-ghost", "tx-ghost")
	err := store.UpdateContexts(ctx, []*ledger.EnrichedContext{good, missing})

	// THEN the whole batch rolls back and EC-1 is untouched
	assert.ErrorIs(t, err, ledger.ErrContextNotFound)
	got, err := store.GetContextByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	assert.Empty(t, got.RelatedTransactionIDs)
}

func TestUpdateContextsBidirectionalLink(t *testing.T) {
	// GIVEN two linked contexts updated in one batch
	store := newTestStore(t)
	ctx := context.Background()
	date := time.Date(2026, 2, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-1", date, 1000, ledger.Expense)))
	require.NoError(t, store.SaveTransaction(ctx, testTransaction("tx-2", date, 2000, ledger.Expense)))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-1", "tx-1")))
	require.NoError(t, store.SaveContext(ctx, testContext("EC-2", "tx-2")))

	a := testContext("EC-1", "tx-1")
	a.RelatedTransactionIDs = []string{"tx-2"}
	b := testContext("EC-2", "tx-2")
	b.RelatedTransactionIDs = []string{"tx-1"}
	require.NoError(t, store.UpdateContexts(ctx, []*ledger.EnrichedContext{a, b}))

	// THEN both directions are persisted
	gotA, err := store.GetContextByTransaction(ctx, "tx-1")
	require.NoError(t, err)
	gotB, err := store.GetContextByTransaction(ctx, "tx-2")
	require.NoError(t, err)
	assert.Equal(t, []string{"tx-2"}, gotA.RelatedTransactionIDs)
	assert.Equal(t, []string{"tx-1"}, gotB.RelatedTransactionIDs)
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

func testDocument(m ledger.Month) *ledger.MonthlyDocument {
	return &ledger.MonthlyDocument{
		ID:                ledger.DocumentID(m),
		UserID:            "default",
		Month:             m,
		TotalTransactions: 10,
		TotalIncome:       500000,
		TotalExpense:      300000,
		RecurringCount:    4,
		NonRecurringCount: 5,
		PendingCount:      1,
		Body:              "# February",
		Status:            ledger.DocGenerated,
		GeneratedAt:       time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestUpsertDocumentVersionBump(t *testing.T) {
	// GIVEN a freshly generated document
	store := newTestStore(t)
	ctx := context.Background()
	m := ledger.Month{Year: 2026, Mon: time.February}

	first, err := store.UpsertDocument(ctx, testDocument(m))
	require.NoError(t, err)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, "MD-2026-02", first.ID)

	// WHEN regenerating twice with changed content
	doc := testDocument(m)
	doc.Body = "# February (v2)"
	second, err := store.UpsertDocument(ctx, doc)
	require.NoError(t, err)
	third, err := store.UpsertDocument(ctx, doc)
	require.NoError(t, err)

	// THEN the ID is stable and the version increments each time
	assert.Equal(t, "MD-2026-02", second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 3, third.Version)
	assert.Equal(t, "# February (v2)", third.Body)
}

func TestUpsertDocumentPreservesStatus(t *testing.T) {
	// GIVEN a reviewed document
	store := newTestStore(t)
	ctx := context.Background()
	m := ledger.Month{Year: 2026, Mon: time.February}
	doc, err := store.UpsertDocument(ctx, testDocument(m))
	require.NoError(t, err)
	reviewedAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetDocumentStatus(ctx, doc.ID, ledger.DocReviewed, reviewedAt, ""))

	// WHEN the document is regenerated
	updated, err := store.UpsertDocument(ctx, testDocument(m))
	require.NoError(t, err)

	// THEN review state survives the regeneration
	assert.Equal(t, ledger.DocReviewed, updated.Status)
	assert.True(t, updated.ReviewedAt.Equal(reviewedAt))
	assert.Equal(t, 2, updated.Version)
}

func TestSetDocumentStatusSent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	m := ledger.Month{Year: 2026, Mon: time.February}
	doc, err := store.UpsertDocument(ctx, testDocument(m))
	require.NoError(t, err)

	sentAt := time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC)
	require.NoError(t, store.SetDocumentStatus(ctx, doc.ID, ledger.DocSent, sentAt, "cpa@example.com"))

	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.DocSent, got.Status)
	assert.Equal(t, "cpa@example.com", got.AccountantEmail)
	assert.True(t, got.SentAt.Equal(sentAt))

	err = store.SetDocumentStatus(ctx, "MD-1999-01", ledger.DocSent, sentAt, "")
	assert.ErrorIs(t, err, ledger.ErrDocumentNotFound)
}

func TestListDocuments(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, mon := range []time.Month{time.January, time.February, time.March} {
		m := ledger.Month{Year: 2026, Mon: mon}
		_, err := store.UpsertDocument(ctx, testDocument(m))
		require.NoError(t, err)
	}
	old := testDocument(ledger.Month{Year: 2025, Mon: time.December})
	_, err := store.UpsertDocument(ctx, old)
	require.NoError(t, err)

	docs, err := store.ListDocuments(ctx, "default", 2026)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "MD-2026-03", docs[0].ID)
	assert.Equal(t, "MD-2026-01", docs[2].ID)

	all, err := store.ListDocuments(ctx, "default", 0)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

// =============================================================================
// USER CONFIG
// =============================================================================

func TestGetUserConfigDefaults(t *testing.T) {
	// GIVEN an empty store
	store := newTestStore(t)
	ctx := context.Background()

	// WHEN reading the config before anything was saved
	uc, err := store.GetUserConfig(ctx, "default")
	require.NoError(t, err)

	// THEN the default record comes back
	assert.Equal(t, "default", uc.UserID)
	assert.Equal(t, "excel", uc.DocumentFormat)
	assert.Empty(t, uc.AccountantEmail)
}

func TestSaveUserConfigRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	uc := &ledger.UserConfig{
		UserID:          "default",
		AccountantEmail: "cpa@example.com",
		DocumentFormat:  "markdown",
		SlackChannelID:  "C012345",
		DocumentsPath:   "/data/docs",
	}
	require.NoError(t, store.SaveUserConfig(ctx, uc))

	got, err := store.GetUserConfig(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "cpa@example.com", got.AccountantEmail)
	assert.Equal(t, "markdown", got.DocumentFormat)
	assert.Equal(t, "C012345", got.SlackChannelID)
	assert.Equal(t, "/data/docs", got.DocumentsPath)
	assert.False(t, got.UpdatedAt.IsZero())
}

func TestSaveUserConfigReplaces(t *testing.T) {
	// GIVEN a saved config
	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.SaveUserConfig(ctx, &ledger.UserConfig{
		UserID:          "default",
		AccountantEmail: "first@example.com",
	}))

	// WHEN saving again for the same user
	require.NoError(t, store.SaveUserConfig(ctx, &ledger.UserConfig{
		UserID:          "default",
		AccountantEmail: "second@example.com",
	}))

	// THEN the single row holds the newer values
	got, err := store.GetUserConfig(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, "second@example.com", got.AccountantEmail)
	assert.Equal(t, "excel", got.DocumentFormat)
}
