/*
Package ledger provides the core reconciliation engine.

PURPOSE:
  This package contains the data model and pure algorithms for turning a
  month of bank activity into accountant-ready material: internal-transfer
  detection, recurring/non-recurring/pending classification, and
  relationship grouping. It performs no I/O; persistence and rendering
  live in other packages.

KEY CONCEPTS IN THIS FILE (types.go):
  - Transaction: A bank transaction record (amount always non-negative;
    direction carries the sign convention, applied only at presentation)
  - RawTransaction: The wire shape delivered by a transaction source
  - EnrichedContext: User/AI-supplied context attached 1:1 to a transaction
  - MonthlyDocument: The versioned per-(user, month) report record

DESIGN PRINCIPLES:
  1. Amounts are stored unsigned; expense-negative signing happens in
     export/rendering, never in storage
  2. Transactions are created by ingestion and mutated only in
     is_internal_transfer and status; they are never deleted
  3. Type safety: direction, status, and readiness are closed string enums

SEE ALSO:
  - transfer.go: Internal-transfer detection
  - classify.go: Monthly bucket classification
  - group.go: Relationship grouping
  - month.go: Month parsing and date-range math
*/
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// DIRECTION & STATUS
// =============================================================================

// Direction marks a transaction as money in or money out.
type Direction string

const (
	Income  Direction = "income"
	Expense Direction = "expense"
)

// Sign returns the presentation-time sign multiplier for the direction.
// Stored amounts are always non-negative; expenses render negative.
func (d Direction) Sign() decimal.Decimal {
	if d == Expense {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// Status is the enrichment lifecycle of a transaction.
type Status string

const (
	StatusPendingEnrichment   Status = "pending_enrichment"
	StatusEnriched            Status = "enriched"
	StatusPendingManualReview Status = "pending_manual_review"
	StatusAutoClassified      Status = "auto_classified"
)

// IsPending reports whether the status still requires user attention.
func (s Status) IsPending() bool {
	return s == StatusPendingEnrichment || s == StatusPendingManualReview
}

// =============================================================================
// TRANSACTION
// =============================================================================

// Transaction is a persisted bank transaction record.
// ID format: "2026-02-05-003-AWS-001" (date-bankcode-counterparty-seq).
type Transaction struct {
	ID string

	BankName         string
	AccountEncrypted string // ciphertext, never rendered
	AccountMasked    string // "***-**-789"

	Date         time.Time
	Time         string // "14:30:00", optional
	Amount       int64  // always >= 0, KRW
	Direction    Direction
	Counterparty string
	BankMemo     string

	IsInternalTransfer bool
	IsRecurring        bool
	Status             Status

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SignedAmount returns the presentation-time signed amount.
func (t Transaction) SignedAmount() decimal.Decimal {
	return decimal.NewFromInt(t.Amount).Mul(t.Direction.Sign())
}

// RawTransaction is the shape a transaction source delivers before
// persistence. The ID here is the final identifier (derived by the source
// from date+bank+counterparty+sequence); encryption and masking of the
// account reference happen during ingestion.
type RawTransaction struct {
	ID            string
	BankName      string
	AccountNumber string // plaintext at this stage only
	Date          time.Time
	Time          string
	Amount        int64
	Direction     Direction
	Counterparty  string
	BankMemo      string
}

// =============================================================================
// ENRICHED CONTEXT
// =============================================================================

// DocReadiness is the tri-state supporting-paperwork indicator.
type DocReadiness string

const (
	DocsReady       DocReadiness = "ready"
	DocsNeedsPrep   DocReadiness = "needs_preparation"
	DocsUnavailable DocReadiness = "unavailable"
)

// Glyph returns the compact rendering of the readiness state.
func (d DocReadiness) Glyph() string {
	switch d {
	case DocsReady:
		return "✅"
	case DocsUnavailable:
		return "❌"
	default:
		return "⚠️"
	}
}

// Documents tracks collected supporting paperwork for one context.
type Documents struct {
	InvoiceReceived bool         `json:"invoice_received"`
	Files           []string     `json:"files"`
	Status          DocReadiness `json:"status"`
}

// DefaultDocuments is the state before any paperwork has arrived.
func DefaultDocuments() Documents {
	return Documents{Status: DocsNeedsPrep, Files: []string{}}
}

// EnrichedContext holds user-supplied and AI-derived context for exactly
// one transaction (unique foreign key on TransactionID).
//
// RelatedTransactionIDs must stay symmetric: linking A→B must also record
// B→A. The closure is maintained by the enrichment service on every edit,
// not by a database constraint.
type EnrichedContext struct {
	ID            string // "EC-2026-02-05-a1b2c3"
	TransactionID string

	UserMemo              string
	Category              string
	AccountClassification string

	IsRecurring           bool
	Frequency             string
	RelatedTransactionIDs []string

	TaxNotes  string
	AISummary string

	Documents Documents

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Linked reports whether the context already references the given id.
func (c *EnrichedContext) Linked(txID string) bool {
	for _, id := range c.RelatedTransactionIDs {
		if id == txID {
			return true
		}
	}
	return false
}

// =============================================================================
// MONTHLY DOCUMENT
// =============================================================================

// DocumentStatus is the delivery lifecycle of a monthly document.
// Transitions are strictly forward: generated → reviewed → sent.
type DocumentStatus string

const (
	DocGenerated DocumentStatus = "generated"
	DocReviewed  DocumentStatus = "reviewed"
	DocSent      DocumentStatus = "sent"
)

// CanTransition reports whether moving to next is a legal forward step.
func (s DocumentStatus) CanTransition(next DocumentStatus) bool {
	switch s {
	case DocGenerated:
		return next == DocReviewed
	case DocReviewed:
		return next == DocSent
	default:
		return false
	}
}

// MonthlyDocument is the versioned report record keyed by (user, month).
// Regeneration updates in place and bumps Version; the key never yields
// a second row.
type MonthlyDocument struct {
	ID     string // "MD-2026-02"
	UserID string
	Month  Month

	TotalTransactions int
	TotalIncome       int64
	TotalExpense      int64
	RecurringCount    int
	NonRecurringCount int
	PendingCount      int

	Body    string
	Version int

	Status          DocumentStatus
	GeneratedAt     time.Time
	ReviewedAt      time.Time
	SentAt          time.Time
	AccountantEmail string
}

// DocumentID returns the canonical document identifier for a month.
func DocumentID(m Month) string {
	return fmt.Sprintf("MD-%s", m)
}

// =============================================================================
// USER CONFIG
// =============================================================================

// DefaultUserID identifies the single settings record of a one-person
// deployment. Storage is keyed by user so a multi-tenant setup needs no
// schema change.
const DefaultUserID = "default"

// UserConfig is the per-user settings record: where documents go and who
// receives them.
type UserConfig struct {
	UserID          string
	AccountantEmail string
	DocumentFormat  string // "markdown" or "excel"
	SlackChannelID  string
	DocumentsPath   string
	UpdatedAt       time.Time
}

// DefaultUserConfig returns the record used before anything is saved.
func DefaultUserConfig(userID string) *UserConfig {
	return &UserConfig{
		UserID:         userID,
		DocumentFormat: "excel",
	}
}
