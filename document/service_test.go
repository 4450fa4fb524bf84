package document

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumo/taxdesk/ledger"
	"github.com/lumo/taxdesk/notify"
	"github.com/lumo/taxdesk/store/sqlite"
	"github.com/lumo/taxdesk/textgen"
)

type recordingSink struct {
	delivered bool
	last      notify.Delivery
}

func (r *recordingSink) Deliver(ctx context.Context, d notify.Delivery) notify.Result {
	r.last = d
	return notify.Result{Channel: "test", Delivered: r.delivered}
}

func newTestService(t *testing.T, sink notify.Sink) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	fanout := notify.Fanout{}
	if sink != nil {
		fanout.Sinks = []notify.Sink{sink}
	}
	svc := New(store, textgen.NewTemplate(), fanout, t.TempDir(), zerolog.Nop())
	return svc, store
}

func seed(t *testing.T, store *sqlite.Store, id string, day int, status ledger.Status, recurring bool) {
	t.Helper()
	tx := ledger.Transaction{
		ID:               id,
		BankName:         "기업은행",
		AccountEncrypted: "ciphertext",
		AccountMasked:    "***-***-789",
		Date:             time.Date(2026, 2, day, 0, 0, 0, 0, time.UTC),
		Time:             "10:00:00",
		Amount:           50000,
		Direction:        ledger.Expense,
		Counterparty:     "AWS Korea",
		IsRecurring:      recurring,
		Status:           status,
	}
	require.NoError(t, store.SaveTransaction(context.Background(), tx))
}

func feb() ledger.Month { return ledger.Month{Year: 2026, Mon: time.February} }

func TestGenerateAndRegenerateBumpsVersion(t *testing.T) {
	// GIVEN a month with one pending transaction
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusPendingEnrichment, false)

	first, err := svc.Generate(ctx, feb())
	require.NoError(t, err)
	assert.Equal(t, "MD-2026-02", first.ID)
	assert.Equal(t, 1, first.Version)
	assert.Equal(t, 1, first.PendingCount)
	assert.Equal(t, ledger.DocGenerated, first.Status)

	// WHEN the transaction gets enriched and the month is regenerated
	require.NoError(t, store.SetTransactionEnriched(ctx, "tx-1", ledger.StatusEnriched, true))
	second, err := svc.Generate(ctx, feb())
	require.NoError(t, err)

	// THEN the ID is stable, the version moved, the counts changed
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Version)
	assert.Equal(t, 0, second.PendingCount)
	assert.Equal(t, 1, second.RecurringCount)
}

func TestGenerateEmptyMonth(t *testing.T) {
	svc, _ := newTestService(t, nil)

	doc, err := svc.Generate(context.Background(), feb())
	require.NoError(t, err)

	assert.Equal(t, 0, doc.TotalTransactions)
	assert.Contains(t, doc.Body, "No transactions recorded for 2026-02.")
}

func TestGenerateExcludesInternalTransfers(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	seed(t, store, "tx-normal", 5, ledger.StatusEnriched, false)
	transfer := ledger.Transaction{
		ID: "tx-transfer", BankName: "기업은행", AccountEncrypted: "c", AccountMasked: "m",
		Date: time.Date(2026, 2, 6, 0, 0, 0, 0, time.UTC), Amount: 100000,
		Direction: ledger.Expense, Counterparty: "내부이체",
		IsInternalTransfer: true, Status: ledger.StatusAutoClassified,
	}
	require.NoError(t, store.SaveTransaction(ctx, transfer))

	doc, err := svc.Generate(ctx, feb())
	require.NoError(t, err)

	assert.Equal(t, 1, doc.TotalTransactions)
	assert.NotContains(t, doc.Body, "내부이체")
}

func TestMarkReviewedForwardOnly(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusEnriched, false)
	doc, err := svc.Generate(ctx, feb())
	require.NoError(t, err)

	reviewed, err := svc.MarkReviewed(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.DocReviewed, reviewed.Status)
	assert.False(t, reviewed.ReviewedAt.IsZero())

	// Reviewing again is not a forward move
	_, err = svc.MarkReviewed(ctx, doc.ID)
	assert.ErrorIs(t, err, ledger.ErrInvalidStatusTransition)
	assert.True(t, ledger.IsStateConflict(err))
}

func TestSendUnreviewedConflicts(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusEnriched, false)
	doc, err := svc.Generate(ctx, feb())
	require.NoError(t, err)

	_, _, err = svc.Send(ctx, doc.ID, "cpa@example.com")
	assert.ErrorIs(t, err, ledger.ErrNotReviewed)
	assert.True(t, ledger.IsStateConflict(err))
}

func TestSendDeliversAndMarksSent(t *testing.T) {
	// GIVEN a reviewed document and a working channel
	sink := &recordingSink{delivered: true}
	svc, store := newTestService(t, sink)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusEnriched, false)
	doc, err := svc.Generate(ctx, feb())
	require.NoError(t, err)
	_, err = svc.MarkReviewed(ctx, doc.ID)
	require.NoError(t, err)

	// WHEN sending
	sent, results, err := svc.Send(ctx, doc.ID, "cpa@example.com")
	require.NoError(t, err)

	// THEN the document is marked sent and the workbook was attached
	assert.True(t, notify.Delivered(results))
	assert.Equal(t, ledger.DocSent, sent.Status)
	assert.Equal(t, "cpa@example.com", sent.AccountantEmail)
	assert.Equal(t, "tax_documents_2026-02.xlsx", filepath.Base(sink.last.AttachmentPath))
	_, statErr := os.Stat(sink.last.AttachmentPath)
	require.NoError(t, statErr)

	// Sending again is not a forward move
	_, _, err = svc.Send(ctx, doc.ID, "cpa@example.com")
	assert.ErrorIs(t, err, ledger.ErrInvalidStatusTransition)
}

func TestSendAllChannelsFailedStaysReviewed(t *testing.T) {
	sink := &recordingSink{delivered: false}
	svc, store := newTestService(t, sink)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusEnriched, false)
	doc, err := svc.Generate(ctx, feb())
	require.NoError(t, err)
	_, err = svc.MarkReviewed(ctx, doc.ID)
	require.NoError(t, err)

	got, results, err := svc.Send(ctx, doc.ID, "cpa@example.com")
	require.NoError(t, err)

	assert.False(t, notify.Delivered(results))
	assert.Equal(t, ledger.DocReviewed, got.Status)
}

func TestPreviewRows(t *testing.T) {
	svc, store := newTestService(t, nil)
	ctx := context.Background()
	seed(t, store, "tx-1", 5, ledger.StatusEnriched, true)

	rows, err := svc.Preview(ctx, feb())
	require.NoError(t, err)

	require.Len(t, rows, 1)
	assert.Equal(t, "tx-1", rows[0].ID)
	assert.Equal(t, "-50000", rows[0].SignedAmount)
	assert.True(t, rows[0].Recurring)
}
