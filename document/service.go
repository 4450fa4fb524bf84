/*
Package document generates, reviews, and delivers the monthly tax
document.

PURPOSE:
  Owns the document lifecycle. Generation is idempotent per month: the
  (user, month) record is upserted and its version bumped, so "generate"
  doubles as "regenerate" after late enrichment. Review and send are
  strictly forward status moves; sending an unreviewed document is a
  state conflict, never a silent auto-review.

SEE ALSO:
  - render.go: Body rendering and section caps
  - store/sqlite: Version-bump upsert
  - notify/: Delivery channels
*/
package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lumo/taxdesk/export"
	"github.com/lumo/taxdesk/ledger"
	"github.com/lumo/taxdesk/notify"
	"github.com/lumo/taxdesk/textgen"
)

// Store is the persistence slice the document flow needs.
type Store interface {
	ledger.TransactionStore
	ledger.ContextStore
	ledger.DocumentStore
}

// Service implements the document lifecycle.
type Service struct {
	store    Store
	gen      textgen.Generator
	sinks    notify.Fanout
	filesDir string
	log      zerolog.Logger
}

func New(store Store, gen textgen.Generator, sinks notify.Fanout, filesDir string, log zerolog.Logger) *Service {
	return &Service{store: store, gen: gen, sinks: sinks, filesDir: filesDir, log: log}
}

// Generate builds (or rebuilds) the month's document. The stored
// record keeps its ID across regenerations; only the version moves.
func (s *Service) Generate(ctx context.Context, m ledger.Month) (*ledger.MonthlyDocument, error) {
	txs, contexts, err := s.monthData(ctx, m)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	body := Render(RenderInput{
		Month:        m,
		Transactions: txs,
		Contexts:     contexts,
		Describe: func(group []ledger.Transaction) string {
			return s.gen.DescribeRelationship(ctx, group)
		},
		GeneratedAt: now,
	})

	totals := ledger.Sum(txs)
	buckets := ledger.Classify(txs)
	doc := &ledger.MonthlyDocument{
		ID:                ledger.DocumentID(m),
		UserID:            ledger.DefaultUserID,
		Month:             m,
		TotalTransactions: len(txs),
		TotalIncome:       totals.Income,
		TotalExpense:      totals.Expense,
		RecurringCount:    len(buckets.Recurring),
		NonRecurringCount: len(buckets.NonRecurring),
		PendingCount:      len(buckets.Pending),
		Body:              body,
		Status:            ledger.DocGenerated,
		GeneratedAt:       now,
	}

	saved, err := s.store.UpsertDocument(ctx, doc)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("document", saved.ID).Int("version", saved.Version).
		Int("transactions", saved.TotalTransactions).Msg("document generated")
	return saved, nil
}

// Get returns a document by ID.
func (s *Service) Get(ctx context.Context, id string) (*ledger.MonthlyDocument, error) {
	doc, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ledger.ErrDocumentNotFound
	}
	return doc, nil
}

// List returns the stored documents, optionally filtered by year.
func (s *Service) List(ctx context.Context, year int) ([]ledger.MonthlyDocument, error) {
	return s.store.ListDocuments(ctx, ledger.DefaultUserID, year)
}

// Preview returns the month's flat transaction rows without touching
// the stored document.
func (s *Service) Preview(ctx context.Context, m ledger.Month) ([]export.Row, error) {
	txs, contexts, err := s.monthData(ctx, m)
	if err != nil {
		return nil, err
	}
	return export.Rows(txs, contexts), nil
}

// Workbook renders the document's Excel workbook in memory. Used by the
// download endpoint; Send writes its own copy to disk for attachment.
func (s *Service) Workbook(ctx context.Context, id string) ([]byte, string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	txs, contexts, err := s.monthData(ctx, doc.Month)
	if err != nil {
		return nil, "", err
	}
	data, err := export.Bytes(doc.Month, txs, contexts)
	if err != nil {
		return nil, "", err
	}
	return data, fmt.Sprintf("tax_documents_%s.xlsx", doc.Month), nil
}

// MarkReviewed moves a generated document to reviewed.
func (s *Service) MarkReviewed(ctx context.Context, id string) (*ledger.MonthlyDocument, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !doc.Status.CanTransition(ledger.DocReviewed) {
		return nil, &ledger.StatusTransitionError{DocumentID: id, From: doc.Status, To: ledger.DocReviewed}
	}

	if err := s.store.SetDocumentStatus(ctx, id, ledger.DocReviewed, time.Now().UTC(), ""); err != nil {
		return nil, err
	}
	return s.Get(ctx, id)
}

// Send delivers a reviewed document: writes the Excel workbook, fans
// out over the configured channels, and marks the document sent when
// at least one channel succeeded. Sending an unreviewed document is a
// state conflict.
func (s *Service) Send(ctx context.Context, id, recipient string) (*ledger.MonthlyDocument, []notify.Result, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !doc.Status.CanTransition(ledger.DocSent) {
		return nil, nil, &ledger.StatusTransitionError{DocumentID: id, From: doc.Status, To: ledger.DocSent}
	}

	attachment, err := s.writeWorkbook(ctx, doc.Month)
	if err != nil {
		// Channel trouble must not fail the operation; the workbook is
		// local though, so a write failure is a real error.
		return nil, nil, err
	}

	results := s.sinks.DeliverAll(ctx, notify.Delivery{
		Month:          doc.Month,
		Subject:        fmt.Sprintf("[Tax] %s monthly documents", doc.Month),
		Body:           doc.Body,
		AttachmentPath: attachment,
		Recipient:      recipient,
	})

	if !notify.Delivered(results) {
		s.log.Warn().Str("document", id).Msg("no delivery channel succeeded; document stays reviewed")
		return doc, results, nil
	}

	if err := s.store.SetDocumentStatus(ctx, id, ledger.DocSent, time.Now().UTC(), recipient); err != nil {
		return nil, results, err
	}
	doc, err = s.Get(ctx, id)
	return doc, results, err
}

func (s *Service) monthData(ctx context.Context, m ledger.Month) ([]ledger.Transaction, map[string]*ledger.EnrichedContext, error) {
	txs, err := s.store.ListMonth(ctx, m)
	if err != nil {
		return nil, nil, err
	}
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	contexts, err := s.store.GetContextsByTransactions(ctx, ids)
	if err != nil {
		return nil, nil, err
	}
	return txs, contexts, nil
}

func (s *Service) writeWorkbook(ctx context.Context, m ledger.Month) (string, error) {
	txs, contexts, err := s.monthData(ctx, m)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.filesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create documents dir: %w", err)
	}
	path := filepath.Join(s.filesDir, fmt.Sprintf("tax_documents_%s.xlsx", m))
	if err := export.WriteFile(path, m, txs, contexts); err != nil {
		return "", err
	}
	return path, nil
}
