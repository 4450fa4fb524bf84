/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements ledger.Store (transactions, enriched contexts, monthly
  documents) using SQLite. In production, the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  transactions:      Bank transaction records. Inserted once during
                     sync; only status and the recurring/internal flags
                     ever change after that.
  enriched_contexts: One row per enriched transaction (unique FK).
                     Related-ID lists and document metadata are stored
                     as JSON columns.
  monthly_documents: One row per (user, month). Regeneration updates
                     the row in place and bumps version inside the
                     UPDATE statement.

ATOMICITY:
  UpdateContexts wraps all rows in a single database transaction. The
  bidirectional-link closure writes both sides of every link through
  it, so a crash can never leave a one-way link behind.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/taxdesk.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - document/service.go: Version-bump semantics on regeneration
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lumo/taxdesk/ledger"
)

// Store implements ledger.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Bank transactions (synced from the feed)
	CREATE TABLE IF NOT EXISTS transactions (
		id TEXT PRIMARY KEY,
		bank_name TEXT NOT NULL,
		account_encrypted TEXT NOT NULL,
		account_masked TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT NOT NULL,
		amount INTEGER NOT NULL,
		direction TEXT NOT NULL,
		counterparty TEXT NOT NULL,
		bank_memo TEXT,
		is_internal_transfer BOOLEAN DEFAULT FALSE,
		is_recurring BOOLEAN DEFAULT FALSE,
		status TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Monthly document generation and pending lists query by date
	CREATE INDEX IF NOT EXISTS idx_transactions_date
		ON transactions(date);
	CREATE INDEX IF NOT EXISTS idx_transactions_status
		ON transactions(status);
	CREATE INDEX IF NOT EXISTS idx_transactions_counterparty
		ON transactions(counterparty, date DESC);

	-- Enriched contexts (one per transaction)
	CREATE TABLE IF NOT EXISTS enriched_contexts (
		id TEXT PRIMARY KEY,
		transaction_id TEXT NOT NULL UNIQUE,
		user_memo TEXT,
		category TEXT,
		account_classification TEXT,
		is_recurring BOOLEAN DEFAULT FALSE,
		recurring_frequency TEXT,
		related_transaction_ids_json TEXT,
		tax_notes TEXT,
		ai_summary TEXT,
		documents_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		FOREIGN KEY (transaction_id) REFERENCES transactions(id)
	);

	CREATE INDEX IF NOT EXISTS idx_contexts_transaction
		ON enriched_contexts(transaction_id);

	-- Monthly documents (one per user+month, version-counted)
	CREATE TABLE IF NOT EXISTS monthly_documents (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		month TEXT NOT NULL,
		total_transactions INTEGER NOT NULL,
		total_income INTEGER NOT NULL,
		total_expense INTEGER NOT NULL,
		recurring_count INTEGER NOT NULL,
		non_recurring_count INTEGER NOT NULL,
		pending_count INTEGER NOT NULL,
		body TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		status TEXT NOT NULL,
		accountant_email TEXT,
		generated_at TEXT NOT NULL,
		reviewed_at TEXT,
		sent_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(user_id, month)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_user_month
		ON monthly_documents(user_id, month DESC);

	-- Per-user settings (single row per user)
	CREATE TABLE IF NOT EXISTS user_configs (
		user_id TEXT PRIMARY KEY,
		accountant_email TEXT,
		document_format TEXT NOT NULL DEFAULT 'excel',
		slack_channel_id TEXT,
		documents_path TEXT,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// TRANSACTION STORE (ledger.TransactionStore interface)
// =============================================================================

// SaveTransaction inserts a transaction record.
func (s *Store) SaveTransaction(ctx context.Context, tx ledger.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions
		(id, bank_name, account_encrypted, account_masked, date, time, amount,
		 direction, counterparty, bank_memo, is_internal_transfer, is_recurring,
		 status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		tx.ID,
		tx.BankName,
		tx.AccountEncrypted,
		tx.AccountMasked,
		tx.Date.Format("2006-01-02"),
		tx.Time,
		tx.Amount,
		string(tx.Direction),
		tx.Counterparty,
		nullString(tx.BankMemo),
		tx.IsInternalTransfer,
		tx.IsRecurring,
		string(tx.Status),
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to save transaction: %w", err)
	}
	return nil
}

// TransactionExists reports whether the given id is already stored.
func (s *Store) TransactionExists(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE id = ?", id,
	).Scan(&count)
	return count > 0, err
}

const transactionColumns = `id, bank_name, account_encrypted, account_masked, date, time, amount,
	direction, counterparty, bank_memo, is_internal_transfer, is_recurring,
	status, created_at, updated_at`

// GetTransaction returns a transaction by ID, or nil if not found.
func (s *Store) GetTransaction(ctx context.Context, id string) (*ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	txs, err := s.queryTransactions(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}
	return &txs[0], nil
}

// ListTransactions applies the filter and returns the page plus the
// unpaged total, newest first.
func (s *Store) ListTransactions(ctx context.Context, f ledger.TransactionFilter) ([]ledger.Transaction, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var conds []string
	var args []any
	if f.Month != nil {
		start, end := f.Month.Range()
		conds = append(conds, "date >= ? AND date < ?")
		args = append(args, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if f.Bank != "" {
		conds = append(conds, "bank_name = ?")
		args = append(args, f.Bank)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions"+where, args...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}

	page := f.Page
	if page < 1 {
		page = 1
	}
	size := f.PageSize
	if size < 1 {
		size = 50
	}

	query := "SELECT " + transactionColumns + " FROM transactions" + where +
		" ORDER BY date DESC, time DESC LIMIT ? OFFSET ?"
	args = append(args, size, (page-1)*size)

	txs, err := s.queryTransactions(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// ListMonth returns the month's transactions excluding internal
// transfers, in chronological order.
func (s *Store) ListMonth(ctx context.Context, m ledger.Month) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	start, end := m.Range()
	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE date >= ? AND date < ? AND is_internal_transfer = FALSE
		ORDER BY date ASC, time ASC`

	return s.queryTransactions(ctx, query,
		start.Format("2006-01-02"), end.Format("2006-01-02"))
}

// ListPending returns pending-enrichment transactions excluding
// internal transfers, newest first.
func (s *Store) ListPending(ctx context.Context) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE status IN (?, ?) AND is_internal_transfer = FALSE
		ORDER BY date DESC, time DESC`

	return s.queryTransactions(ctx, query,
		string(ledger.StatusPendingEnrichment), string(ledger.StatusPendingManualReview))
}

// ListByCounterparty returns up to limit past transactions with the
// same counterparty, excluding the given id, newest first.
func (s *Store) ListByCounterparty(ctx context.Context, counterparty, excludeID string, limit int) ([]ledger.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + transactionColumns + ` FROM transactions
		WHERE counterparty = ? AND id != ?
		ORDER BY date DESC, time DESC
		LIMIT ?`

	return s.queryTransactions(ctx, query, counterparty, excludeID, limit)
}

// SetTransactionEnriched updates status and the recurring flag after
// answer submission.
func (s *Store) SetTransactionEnriched(ctx context.Context, id string, status ledger.Status, recurring bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		"UPDATE transactions SET status = ?, is_recurring = ?, updated_at = ? WHERE id = ?",
		string(status), recurring, time.Now().UTC().Format(time.RFC3339), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrTransactionNotFound
	}
	return nil
}

// CountTransactions returns the total stored record count.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count)
	return count, err
}

func (s *Store) queryTransactions(ctx context.Context, query string, args ...any) ([]ledger.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []ledger.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}

	return transactions, rows.Err()
}

func scanTransaction(rows *sql.Rows) (ledger.Transaction, error) {
	var (
		tx        ledger.Transaction
		date      string
		direction string
		status    string
		bankMemo  sql.NullString
		createdAt string
		updatedAt string
	)

	err := rows.Scan(
		&tx.ID, &tx.BankName, &tx.AccountEncrypted, &tx.AccountMasked,
		&date, &tx.Time, &tx.Amount, &direction, &tx.Counterparty,
		&bankMemo, &tx.IsInternalTransfer, &tx.IsRecurring, &status,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return tx, fmt.Errorf("failed to scan transaction: %w", err)
	}

	tx.Date, _ = time.Parse("2006-01-02", date)
	tx.Direction = ledger.Direction(direction)
	tx.Status = ledger.Status(status)
	tx.BankMemo = bankMemo.String
	tx.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	tx.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return tx, nil
}

// =============================================================================
// CONTEXT STORE (ledger.ContextStore interface)
// =============================================================================

// SaveContext inserts a new enriched context.
func (s *Store) SaveContext(ctx context.Context, ec *ledger.EnrichedContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	relatedJSON, _ := json.Marshal(ec.RelatedTransactionIDs)
	docsJSON, _ := json.Marshal(ec.Documents)

	query := `
		INSERT INTO enriched_contexts
		(id, transaction_id, user_memo, category, account_classification,
		 is_recurring, recurring_frequency, related_transaction_ids_json,
		 tax_notes, ai_summary, documents_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		ec.ID,
		ec.TransactionID,
		nullString(ec.UserMemo),
		nullString(ec.Category),
		nullString(ec.AccountClassification),
		ec.IsRecurring,
		nullString(ec.Frequency),
		string(relatedJSON),
		nullString(ec.TaxNotes),
		nullString(ec.AISummary),
		string(docsJSON),
		now,
		now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrContextExists
		}
		return fmt.Errorf("failed to save context: %w", err)
	}
	return nil
}

const contextColumns = `id, transaction_id, user_memo, category, account_classification,
	is_recurring, recurring_frequency, related_transaction_ids_json,
	tax_notes, ai_summary, documents_json, created_at, updated_at`

// GetContextByTransaction returns the context for a transaction, or
// nil if it has none.
func (s *Store) GetContextByTransaction(ctx context.Context, txID string) (*ledger.EnrichedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+contextColumns+" FROM enriched_contexts WHERE transaction_id = ?", txID)

	ec, err := scanContext(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ec, nil
}

// GetContextsByTransactions bulk-loads contexts keyed by transaction id.
func (s *Store) GetContextsByTransactions(ctx context.Context, txIDs []string) (map[string]*ledger.EnrichedContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]*ledger.EnrichedContext, len(txIDs))
	if len(txIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(txIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(txIDs))
	for i, id := range txIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+contextColumns+" FROM enriched_contexts WHERE transaction_id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query contexts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		ec, err := scanContext(rows)
		if err != nil {
			return nil, err
		}
		result[ec.TransactionID] = ec
	}
	return result, rows.Err()
}

// UpdateContexts writes all given contexts in one database transaction.
func (s *Store) UpdateContexts(ctx context.Context, ecs []*ledger.EnrichedContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	query := `
		UPDATE enriched_contexts SET
			user_memo = ?,
			category = ?,
			account_classification = ?,
			is_recurring = ?,
			recurring_frequency = ?,
			related_transaction_ids_json = ?,
			tax_notes = ?,
			ai_summary = ?,
			documents_json = ?,
			updated_at = ?
		WHERE id = ?
	`

	now := time.Now().UTC().Format(time.RFC3339)
	for _, ec := range ecs {
		relatedJSON, _ := json.Marshal(ec.RelatedTransactionIDs)
		docsJSON, _ := json.Marshal(ec.Documents)

		res, err := sqlTx.ExecContext(ctx, query,
			nullString(ec.UserMemo),
			nullString(ec.Category),
			nullString(ec.AccountClassification),
			ec.IsRecurring,
			nullString(ec.Frequency),
			string(relatedJSON),
			nullString(ec.TaxNotes),
			nullString(ec.AISummary),
			string(docsJSON),
			now,
			ec.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update context %s: %w", ec.ID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return ledger.ErrContextNotFound
		}
	}

	return sqlTx.Commit()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContext(row rowScanner) (*ledger.EnrichedContext, error) {
	var (
		ec          ledger.EnrichedContext
		userMemo    sql.NullString
		category    sql.NullString
		accountCls  sql.NullString
		frequency   sql.NullString
		relatedJSON sql.NullString
		taxNotes    sql.NullString
		aiSummary   sql.NullString
		docsJSON    sql.NullString
		createdAt   string
		updatedAt   string
	)

	err := row.Scan(
		&ec.ID, &ec.TransactionID, &userMemo, &category, &accountCls,
		&ec.IsRecurring, &frequency, &relatedJSON, &taxNotes, &aiSummary,
		&docsJSON, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	ec.UserMemo = userMemo.String
	ec.Category = category.String
	ec.AccountClassification = accountCls.String
	ec.Frequency = frequency.String
	ec.TaxNotes = taxNotes.String
	ec.AISummary = aiSummary.String
	if relatedJSON.Valid && relatedJSON.String != "" {
		json.Unmarshal([]byte(relatedJSON.String), &ec.RelatedTransactionIDs)
	}
	ec.Documents = ledger.DefaultDocuments()
	if docsJSON.Valid && docsJSON.String != "" {
		json.Unmarshal([]byte(docsJSON.String), &ec.Documents)
	}
	ec.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	ec.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	return &ec, nil
}

// =============================================================================
// DOCUMENT STORE (ledger.DocumentStore interface)
// =============================================================================

const documentColumns = `id, user_id, month, total_transactions, total_income,
	total_expense, recurring_count, non_recurring_count, pending_count, body,
	version, status, accountant_email, generated_at, reviewed_at, sent_at,
	created_at, updated_at`

// GetDocument returns a document by ID, or nil if not found.
func (s *Store) GetDocument(ctx context.Context, id string) (*ledger.MonthlyDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM monthly_documents WHERE id = ?", id)

	doc, err := scanDocument(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// ListDocuments returns a user's documents, newest month first.
// year 0 means all years.
func (s *Store) ListDocuments(ctx context.Context, userID string, year int) ([]ledger.MonthlyDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + documentColumns + " FROM monthly_documents WHERE user_id = ?"
	args := []any{userID}
	if year > 0 {
		query += " AND month LIKE ?"
		args = append(args, fmt.Sprintf("%04d-%%", year))
	}
	query += " ORDER BY month DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []ledger.MonthlyDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// UpsertDocument inserts at version 1 or updates the existing row with
// version = version + 1. Status and status timestamps are preserved on
// update. Returns the persisted record.
func (s *Store) UpsertDocument(ctx context.Context, doc *ledger.MonthlyDocument) (*ledger.MonthlyDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO monthly_documents
		(id, user_id, month, total_transactions, total_income, total_expense,
		 recurring_count, non_recurring_count, pending_count, body, version,
		 status, accountant_email, generated_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, month) DO UPDATE SET
			total_transactions = excluded.total_transactions,
			total_income = excluded.total_income,
			total_expense = excluded.total_expense,
			recurring_count = excluded.recurring_count,
			non_recurring_count = excluded.non_recurring_count,
			pending_count = excluded.pending_count,
			body = excluded.body,
			version = monthly_documents.version + 1,
			generated_at = excluded.generated_at,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		doc.ID,
		doc.UserID,
		doc.Month.String(),
		doc.TotalTransactions,
		doc.TotalIncome,
		doc.TotalExpense,
		doc.RecurringCount,
		doc.NonRecurringCount,
		doc.PendingCount,
		doc.Body,
		string(doc.Status),
		nullString(doc.AccountantEmail),
		doc.GeneratedAt.UTC().Format(time.RFC3339),
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert document: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		"SELECT "+documentColumns+" FROM monthly_documents WHERE user_id = ? AND month = ?",
		doc.UserID, doc.Month.String())
	return scanDocument(row)
}

// SetDocumentStatus records a forward status transition.
func (s *Store) SetDocumentStatus(ctx context.Context, id string, status ledger.DocumentStatus, at time.Time, accountantEmail string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var query string
	args := []any{string(status)}
	switch status {
	case ledger.DocReviewed:
		query = "UPDATE monthly_documents SET status = ?, reviewed_at = ?, updated_at = ? WHERE id = ?"
		args = append(args, at.UTC().Format(time.RFC3339))
	case ledger.DocSent:
		query = "UPDATE monthly_documents SET status = ?, sent_at = ?, accountant_email = ?, updated_at = ? WHERE id = ?"
		args = append(args, at.UTC().Format(time.RFC3339), accountantEmail)
	default:
		query = "UPDATE monthly_documents SET status = ?, updated_at = ? WHERE id = ?"
	}
	args = append(args, time.Now().UTC().Format(time.RFC3339), id)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrDocumentNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (*ledger.MonthlyDocument, error) {
	var (
		doc             ledger.MonthlyDocument
		month           string
		status          string
		accountantEmail sql.NullString
		generatedAt     string
		reviewedAt      sql.NullString
		sentAt          sql.NullString
		createdAt       string
		updatedAt       string
	)

	err := row.Scan(
		&doc.ID, &doc.UserID, &month, &doc.TotalTransactions, &doc.TotalIncome,
		&doc.TotalExpense, &doc.RecurringCount, &doc.NonRecurringCount,
		&doc.PendingCount, &doc.Body, &doc.Version, &status, &accountantEmail,
		&generatedAt, &reviewedAt, &sentAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	doc.Month, _ = ledger.ParseMonth(month)
	doc.Status = ledger.DocumentStatus(status)
	doc.AccountantEmail = accountantEmail.String
	doc.GeneratedAt, _ = time.Parse(time.RFC3339, generatedAt)
	if reviewedAt.Valid {
		doc.ReviewedAt, _ = time.Parse(time.RFC3339, reviewedAt.String)
	}
	if sentAt.Valid {
		doc.SentAt, _ = time.Parse(time.RFC3339, sentAt.String)
	}
	return &doc, nil
}

// =============================================================================
// CONFIG STORE (ledger.ConfigStore interface)
// =============================================================================

// GetUserConfig returns the saved settings record, or defaults when the
// user has never saved one.
func (s *Store) GetUserConfig(ctx context.Context, userID string) (*ledger.UserConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT user_id, accountant_email, document_format, slack_channel_id,
		       documents_path, updated_at
		FROM user_configs WHERE user_id = ?`, userID)

	var (
		uc              ledger.UserConfig
		accountantEmail sql.NullString
		slackChannelID  sql.NullString
		documentsPath   sql.NullString
		updatedAt       string
	)
	err := row.Scan(&uc.UserID, &accountantEmail, &uc.DocumentFormat,
		&slackChannelID, &documentsPath, &updatedAt)
	if err == sql.ErrNoRows {
		return ledger.DefaultUserConfig(userID), nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user config: %w", err)
	}

	uc.AccountantEmail = accountantEmail.String
	uc.SlackChannelID = slackChannelID.String
	uc.DocumentsPath = documentsPath.String
	uc.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &uc, nil
}

// SaveUserConfig inserts or replaces the settings record.
func (s *Store) SaveUserConfig(ctx context.Context, uc *ledger.UserConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if uc.DocumentFormat == "" {
		uc.DocumentFormat = "excel"
	}
	uc.UpdatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_configs (user_id, accountant_email, document_format,
			slack_channel_id, documents_path, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			accountant_email = excluded.accountant_email,
			document_format = excluded.document_format,
			slack_channel_id = excluded.slack_channel_id,
			documents_path = excluded.documents_path,
			updated_at = excluded.updated_at`,
		uc.UserID, nullString(uc.AccountantEmail), uc.DocumentFormat,
		nullString(uc.SlackChannelID), nullString(uc.DocumentsPath),
		uc.UpdatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving user config: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"enriched_contexts", "monthly_documents", "user_configs", "transactions"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
