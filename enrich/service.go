/*
Package enrich runs the transaction enrichment flow: question
generation, answer submission, context updates, and document uploads.

PURPOSE:
  Turns a bare bank transaction into an accountant-ready record. The
  flow is question-driven: the text generator proposes questions, the
  user answers, and the answers become an EnrichedContext plus status
  and recurring-flag updates on the transaction itself.

LINK SYMMETRY:
  Related-transaction links are stored on both sides. UpdateContext
  computes the full closure (forward list plus every peer's back-link)
  and hands it to the store as ONE atomic batch, so no observable state
  ever contains a one-way link.

SEE ALSO:
  - textgen/: Question and summary generation
  - ledger/store.go: UpdateContexts atomicity contract
*/
package enrich

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lumo/taxdesk/ledger"
	"github.com/lumo/taxdesk/textgen"
)

const (
	// pastPatternLimit bounds the same-counterparty history fed to
	// question generation.
	pastPatternLimit = 5

	maxUploadBytes = 10 << 20
)

var allowedUploadExts = map[string]bool{
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
	".png":  true,
}

// Store is the persistence slice the enrichment flow needs.
type Store interface {
	ledger.TransactionStore
	ledger.ContextStore
}

// Service implements the enrichment flow.
type Service struct {
	store    Store
	gen      textgen.Generator
	filesDir string
	log      zerolog.Logger
}

func New(store Store, gen textgen.Generator, filesDir string, log zerolog.Logger) *Service {
	return &Service{store: store, gen: gen, filesDir: filesDir, log: log}
}

// Questions builds the enrichment questions for a transaction,
// informed by its counterparty history.
func (s *Service) Questions(ctx context.Context, txID string) (textgen.QuestionSet, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return textgen.QuestionSet{}, err
	}
	if tx == nil {
		return textgen.QuestionSet{}, ledger.ErrTransactionNotFound
	}

	past, err := s.store.ListByCounterparty(ctx, tx.Counterparty, tx.ID, pastPatternLimit)
	if err != nil {
		return textgen.QuestionSet{}, err
	}

	return s.gen.GenerateQuestions(ctx, *tx, past), nil
}

// SubmitAnswers creates the enriched context from the user's answers
// and flips the transaction to enriched. A second submission for the
// same transaction is a state conflict.
func (s *Service) SubmitAnswers(ctx context.Context, txID string, answers []textgen.Answer) (*ledger.EnrichedContext, error) {
	tx, err := s.store.GetTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if tx == nil {
		return nil, ledger.ErrTransactionNotFound
	}

	ec := contextFromAnswers(tx, answers)

	summary := s.gen.Summarize(ctx, *tx, answers)
	ec.AISummary = summary.Summary
	ec.AccountClassification = summary.AccountClassification
	if ec.TaxNotes == "" {
		ec.TaxNotes = summary.TaxNotes
	}

	if err := s.store.SaveContext(ctx, ec); err != nil {
		return nil, err
	}
	if err := s.store.SetTransactionEnriched(ctx, tx.ID, ledger.StatusEnriched, ec.IsRecurring); err != nil {
		return nil, err
	}

	s.log.Info().Str("transaction", tx.ID).Bool("recurring", ec.IsRecurring).Msg("transaction enriched")
	return ec, nil
}

// contextFromAnswers derives the structured context fields from the
// question answers. Question IDs follow the generator's fixed scheme.
func contextFromAnswers(tx *ledger.Transaction, answers []textgen.Answer) *ledger.EnrichedContext {
	now := time.Now().UTC()
	ec := &ledger.EnrichedContext{
		ID:            contextID(tx.Date),
		TransactionID: tx.ID,
		Documents:     ledger.DefaultDocuments(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	for _, a := range answers {
		switch a.QuestionID {
		case "Q1":
			ec.UserMemo = a.Answer
		case "Q2":
			if strings.HasPrefix(a.Answer, "Yes") {
				ec.IsRecurring = true
				if strings.Contains(a.Answer, "weekly") {
					ec.Frequency = "weekly"
				} else {
					ec.Frequency = "monthly"
				}
			}
		case "Q4":
			switch {
			case strings.HasPrefix(a.Answer, "Yes"):
				ec.Documents.InvoiceReceived = true
				ec.Documents.Status = ledger.DocsReady
			case a.Answer == "No":
				ec.Documents.Status = ledger.DocsUnavailable
			}
		case "Q_AWS", "Q_SALARY", "Q_MARKETING":
			ec.Category = a.Answer
		}
	}

	return ec
}

func contextID(date time.Time) string {
	return fmt.Sprintf("EC-%s-%s", date.Format("2006-01-02"), uuid.NewString()[:6])
}

// ContextUpdate is the allow-listed mutable surface of a context.
// Nil fields are left untouched.
type ContextUpdate struct {
	UserMemo              *string
	Category              *string
	AccountClassification *string
	IsRecurring           *bool
	Frequency             *string
	RelatedTransactionIDs *[]string
	TaxNotes              *string
}

// UpdateContext applies an allow-listed update and maintains link
// symmetry: every peer gaining or losing a forward link gets its
// back-link adjusted in the same store transaction.
func (s *Service) UpdateContext(ctx context.Context, txID string, upd ContextUpdate) (*ledger.EnrichedContext, error) {
	ec, err := s.store.GetContextByTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if ec == nil {
		return nil, ledger.ErrContextNotFound
	}

	if upd.UserMemo != nil {
		ec.UserMemo = *upd.UserMemo
	}
	if upd.Category != nil {
		ec.Category = *upd.Category
	}
	if upd.AccountClassification != nil {
		ec.AccountClassification = *upd.AccountClassification
	}
	if upd.IsRecurring != nil {
		ec.IsRecurring = *upd.IsRecurring
	}
	if upd.Frequency != nil {
		ec.Frequency = *upd.Frequency
	}
	if upd.TaxNotes != nil {
		ec.TaxNotes = *upd.TaxNotes
	}

	batch := []*ledger.EnrichedContext{ec}
	if upd.RelatedTransactionIDs != nil {
		peers, err := s.relink(ctx, ec, *upd.RelatedTransactionIDs)
		if err != nil {
			return nil, err
		}
		batch = append(batch, peers...)
	}

	ec.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateContexts(ctx, batch); err != nil {
		return nil, err
	}
	return ec, nil
}

// relink replaces ec's forward links and returns the peer contexts
// whose back-links changed. Targets without a context yet cannot hold
// a back-link and are dropped from the forward list with a warning.
func (s *Service) relink(ctx context.Context, ec *ledger.EnrichedContext, wanted []string) ([]*ledger.EnrichedContext, error) {
	old := make(map[string]bool, len(ec.RelatedTransactionIDs))
	for _, id := range ec.RelatedTransactionIDs {
		old[id] = true
	}

	var kept []string
	next := make(map[string]bool, len(wanted))
	var peers []*ledger.EnrichedContext

	touch := func(id string) (*ledger.EnrichedContext, error) {
		peer, err := s.store.GetContextByTransaction(ctx, id)
		if err != nil {
			return nil, err
		}
		return peer, nil
	}

	for _, id := range wanted {
		if id == ec.TransactionID || next[id] {
			continue
		}
		peer, err := touch(id)
		if err != nil {
			return nil, err
		}
		if peer == nil {
			s.log.Warn().Str("transaction", ec.TransactionID).Str("target", id).
				Msg("dropping link to transaction without context")
			continue
		}
		next[id] = true
		kept = append(kept, id)
		if !old[id] && !peer.Linked(ec.TransactionID) {
			peer.RelatedTransactionIDs = append(peer.RelatedTransactionIDs, ec.TransactionID)
			peers = append(peers, peer)
		}
	}

	// Removed links lose their back-link too
	for _, id := range ec.RelatedTransactionIDs {
		if next[id] {
			continue
		}
		peer, err := touch(id)
		if err != nil {
			return nil, err
		}
		if peer == nil {
			continue
		}
		if peer.Linked(ec.TransactionID) {
			peer.RelatedTransactionIDs = removeID(peer.RelatedTransactionIDs, ec.TransactionID)
			peers = append(peers, peer)
		}
	}

	ec.RelatedTransactionIDs = kept
	return peers, nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// AttachFile validates and stores an uploaded supporting document,
// then marks the context's documents ready. Returns the stored file
// name.
func (s *Service) AttachFile(ctx context.Context, txID, filename string, data []byte) (string, error) {
	ec, err := s.store.GetContextByTransaction(ctx, txID)
	if err != nil {
		return "", err
	}
	if ec == nil {
		return "", ledger.ErrContextNotFound
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExts[ext] {
		return "", fmt.Errorf("%w: %s", ledger.ErrFileType, ext)
	}
	if len(data) > maxUploadBytes {
		return "", fmt.Errorf("%w: %d bytes", ledger.ErrFileTooLarge, len(data))
	}

	stored := fmt.Sprintf("invoice_%s_%s%s", txID, time.Now().UTC().Format("20060102"), ext)
	if err := os.MkdirAll(s.filesDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create upload dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.filesDir, stored), data, 0o644); err != nil {
		return "", fmt.Errorf("failed to store upload: %w", err)
	}

	ec.Documents.Files = append(ec.Documents.Files, stored)
	ec.Documents.InvoiceReceived = true
	ec.Documents.Status = ledger.DocsReady
	ec.UpdatedAt = time.Now().UTC()
	if err := s.store.UpdateContexts(ctx, []*ledger.EnrichedContext{ec}); err != nil {
		return "", err
	}

	s.log.Info().Str("transaction", txID).Str("file", stored).Msg("document attached")
	return stored, nil
}
