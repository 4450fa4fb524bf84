/*
store.go - Persistence interfaces for the reconciliation engine

PURPOSE:
  Defines the contract between domain services and the database. The
  sqlite package implements everything; services depend only on the
  narrow slice they use.

MUTATION CONTRACT:
  - Transactions are inserted once and never deleted. Only the internal-
    transfer flag, the recurring flag, and the status ever change.
  - Contexts are inserted once per transaction (unique FK) and updated
    in place. UpdateContexts is ATOMIC across all rows it is given; the
    bidirectional-link closure depends on that to avoid a half-linked
    state after a crash.
  - Monthly documents are upserted per (user, month). UpsertDocument
    bumps the version counter inside the UPDATE statement itself, so
    racing writers may clobber each other's body (accepted, last writer
    wins) but can never corrupt the counter.

SEE ALSO:
  - store/sqlite/sqlite.go: Concrete implementation
*/
package ledger

import (
	"context"
	"time"
)

// TransactionFilter narrows ListTransactions. Zero values mean "no
// filter". Paging is 1-based.
type TransactionFilter struct {
	Month    *Month
	Status   Status
	Bank     string
	Page     int
	PageSize int
}

// TransactionStore persists bank transaction records.
type TransactionStore interface {
	// SaveTransaction inserts a new record. Duplicate IDs are an error;
	// callers check TransactionExists first during sync.
	SaveTransaction(ctx context.Context, tx Transaction) error

	// TransactionExists reports whether the id is already stored.
	TransactionExists(ctx context.Context, id string) (bool, error)

	// GetTransaction returns nil when the id is unknown.
	GetTransaction(ctx context.Context, id string) (*Transaction, error)

	// ListTransactions applies the filter and returns the page plus the
	// unpaged total, newest first.
	ListTransactions(ctx context.Context, f TransactionFilter) ([]Transaction, int, error)

	// ListMonth returns the month's transactions excluding internal
	// transfers, in chronological order. This is the document input.
	ListMonth(ctx context.Context, m Month) ([]Transaction, error)

	// ListPending returns pending-enrichment transactions excluding
	// internal transfers, newest first.
	ListPending(ctx context.Context) ([]Transaction, error)

	// ListByCounterparty returns up to limit past transactions with the
	// same counterparty, excluding the given id, newest first.
	ListByCounterparty(ctx context.Context, counterparty, excludeID string, limit int) ([]Transaction, error)

	// SetTransactionEnriched updates status and the recurring flag after
	// answer submission.
	SetTransactionEnriched(ctx context.Context, id string, status Status, recurring bool) error

	// CountTransactions returns the total stored record count.
	CountTransactions(ctx context.Context) (int, error)
}

// ContextStore persists enriched contexts.
type ContextStore interface {
	// SaveContext inserts a new context. A second context for the same
	// transaction violates the unique FK and surfaces as ErrContextExists.
	SaveContext(ctx context.Context, ec *EnrichedContext) error

	// GetContextByTransaction returns nil when the transaction has no
	// context yet.
	GetContextByTransaction(ctx context.Context, txID string) (*EnrichedContext, error)

	// GetContextsByTransactions bulk-loads contexts keyed by
	// transaction id. Missing transactions are simply absent.
	GetContextsByTransactions(ctx context.Context, txIDs []string) (map[string]*EnrichedContext, error)

	// UpdateContexts writes all given contexts in ONE transaction.
	// Either every row is updated or none is.
	UpdateContexts(ctx context.Context, ecs []*EnrichedContext) error
}

// DocumentStore persists monthly documents.
type DocumentStore interface {
	// GetDocument returns nil when the id is unknown.
	GetDocument(ctx context.Context, id string) (*MonthlyDocument, error)

	// ListDocuments returns a user's documents, newest month first.
	// year 0 means all years.
	ListDocuments(ctx context.Context, userID string, year int) ([]MonthlyDocument, error)

	// UpsertDocument inserts the document at version 1, or updates the
	// existing row in place with version = version + 1. Status fields
	// are preserved on update. Returns the persisted record.
	UpsertDocument(ctx context.Context, doc *MonthlyDocument) (*MonthlyDocument, error)

	// SetDocumentStatus records a forward status transition and its
	// timestamp. Legality is checked by the document service.
	SetDocumentStatus(ctx context.Context, id string, status DocumentStatus, at time.Time, accountantEmail string) error
}

// ConfigStore persists the per-user settings record.
type ConfigStore interface {
	// GetUserConfig returns the stored record, or defaults when none has
	// been saved yet. Never returns nil with a nil error.
	GetUserConfig(ctx context.Context, userID string) (*UserConfig, error)

	// SaveUserConfig inserts or replaces the record.
	SaveUserConfig(ctx context.Context, uc *UserConfig) error
}

// Store is the full persistence surface.
type Store interface {
	TransactionStore
	ContextStore
	DocumentStore
	ConfigStore
}
