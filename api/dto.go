/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract: the domain
  carries encrypted account numbers and internal timestamps the API must
  never leak.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/lumo/taxdesk/ledger"
	"github.com/lumo/taxdesk/textgen"
)

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TransactionDTO is a transaction in API responses. Only the masked
// account form ever leaves the server.
type TransactionDTO struct {
	ID                 string `json:"id"`
	BankName           string `json:"bank_name"`
	AccountMasked      string `json:"account"`
	Date               string `json:"date"`
	Time               string `json:"time,omitempty"`
	Amount             int64  `json:"amount"`
	Direction          string `json:"direction"`
	Counterparty       string `json:"counterparty"`
	BankMemo           string `json:"bank_memo,omitempty"`
	IsInternalTransfer bool   `json:"is_internal_transfer"`
	IsRecurring        bool   `json:"is_recurring"`
	Status             string `json:"status"`
}

func toTransactionDTO(tx ledger.Transaction) TransactionDTO {
	return TransactionDTO{
		ID:                 tx.ID,
		BankName:           tx.BankName,
		AccountMasked:      tx.AccountMasked,
		Date:               tx.Date.Format("2006-01-02"),
		Time:               tx.Time,
		Amount:             tx.Amount,
		Direction:          string(tx.Direction),
		Counterparty:       tx.Counterparty,
		BankMemo:           tx.BankMemo,
		IsInternalTransfer: tx.IsInternalTransfer,
		IsRecurring:        tx.IsRecurring,
		Status:             string(tx.Status),
	}
}

func toTransactionDTOs(txs []ledger.Transaction) []TransactionDTO {
	dtos := make([]TransactionDTO, 0, len(txs))
	for _, tx := range txs {
		dtos = append(dtos, toTransactionDTO(tx))
	}
	return dtos
}

// TransactionListDTO wraps a page of transactions.
type TransactionListDTO struct {
	Transactions []TransactionDTO `json:"transactions"`
	Total        int              `json:"total"`
	Page         int              `json:"page"`
	PageSize     int              `json:"page_size"`
}

// ContextDTO is an enriched context in API responses.
type ContextDTO struct {
	ID                    string           `json:"id"`
	TransactionID         string           `json:"transaction_id"`
	UserMemo              string           `json:"user_memo,omitempty"`
	Category              string           `json:"category,omitempty"`
	AccountClassification string           `json:"account_classification,omitempty"`
	IsRecurring           bool             `json:"is_recurring"`
	Frequency             string           `json:"recurring_frequency,omitempty"`
	RelatedTransactionIDs []string         `json:"related_transaction_ids"`
	TaxNotes              string           `json:"tax_notes,omitempty"`
	AISummary             string           `json:"ai_summary,omitempty"`
	Documents             ledger.Documents `json:"documents"`
}

func toContextDTO(ec *ledger.EnrichedContext) ContextDTO {
	related := ec.RelatedTransactionIDs
	if related == nil {
		related = []string{}
	}
	return ContextDTO{
		ID:                    ec.ID,
		TransactionID:         ec.TransactionID,
		UserMemo:              ec.UserMemo,
		Category:              ec.Category,
		AccountClassification: ec.AccountClassification,
		IsRecurring:           ec.IsRecurring,
		Frequency:             ec.Frequency,
		RelatedTransactionIDs: related,
		TaxNotes:              ec.TaxNotes,
		AISummary:             ec.AISummary,
		Documents:             ec.Documents,
	}
}

// SyncRequest selects the fetch window. Empty bounds default to the
// last 30 days.
type SyncRequest struct {
	From string `json:"from,omitempty"` // YYYY-MM-DD
	To   string `json:"to,omitempty"`
}

// SubmitAnswersRequest carries the user's enrichment answers.
type SubmitAnswersRequest struct {
	Answers []textgen.Answer `json:"answers"`
}

// UpdateContextRequest is the allow-listed context update surface.
// Absent fields are left untouched.
type UpdateContextRequest struct {
	UserMemo              *string   `json:"user_memo,omitempty"`
	Category              *string   `json:"category,omitempty"`
	AccountClassification *string   `json:"account_classification,omitempty"`
	IsRecurring           *bool     `json:"is_recurring,omitempty"`
	Frequency             *string   `json:"recurring_frequency,omitempty"`
	RelatedTransactionIDs *[]string `json:"related_transaction_ids,omitempty"`
	TaxNotes              *string   `json:"tax_notes,omitempty"`
}

// GenerateDocumentRequest names the month to build.
type GenerateDocumentRequest struct {
	Month string `json:"month"` // YYYY-MM
}

// SendDocumentRequest optionally overrides the configured recipient.
type SendDocumentRequest struct {
	AccountantEmail string `json:"accountant_email,omitempty"`
}

// DocumentDTO is a monthly document in API responses.
type DocumentDTO struct {
	ID                string `json:"id"`
	Month             string `json:"month"`
	TotalTransactions int    `json:"total_transactions"`
	TotalIncome       int64  `json:"total_income"`
	TotalExpense      int64  `json:"total_expense"`
	RecurringCount    int    `json:"recurring_count"`
	NonRecurringCount int    `json:"non_recurring_count"`
	PendingCount      int    `json:"pending_count"`
	Body              string `json:"body,omitempty"`
	Version           int    `json:"version"`
	Status            string `json:"status"`
	GeneratedAt       string `json:"generated_at"`
	ReviewedAt        string `json:"reviewed_at,omitempty"`
	SentAt            string `json:"sent_at,omitempty"`
	AccountantEmail   string `json:"accountant_email,omitempty"`
}

func toDocumentDTO(doc *ledger.MonthlyDocument, includeBody bool) DocumentDTO {
	dto := DocumentDTO{
		ID:                doc.ID,
		Month:             doc.Month.String(),
		TotalTransactions: doc.TotalTransactions,
		TotalIncome:       doc.TotalIncome,
		TotalExpense:      doc.TotalExpense,
		RecurringCount:    doc.RecurringCount,
		NonRecurringCount: doc.NonRecurringCount,
		PendingCount:      doc.PendingCount,
		Version:           doc.Version,
		Status:            string(doc.Status),
		GeneratedAt:       doc.GeneratedAt.Format(time.RFC3339),
		AccountantEmail:   doc.AccountantEmail,
	}
	if includeBody {
		dto.Body = doc.Body
	}
	if !doc.ReviewedAt.IsZero() {
		dto.ReviewedAt = doc.ReviewedAt.Format(time.RFC3339)
	}
	if !doc.SentAt.IsZero() {
		dto.SentAt = doc.SentAt.Format(time.RFC3339)
	}
	return dto
}

// UserConfigDTO is the user settings record in API requests and
// responses.
type UserConfigDTO struct {
	AccountantEmail string `json:"accountant_email,omitempty"`
	DocumentFormat  string `json:"document_format,omitempty"`
	SlackChannelID  string `json:"slack_channel_id,omitempty"`
	DocumentsPath   string `json:"documents_path,omitempty"`
	UpdatedAt       string `json:"updated_at,omitempty"`
}

func toUserConfigDTO(uc *ledger.UserConfig) UserConfigDTO {
	dto := UserConfigDTO{
		AccountantEmail: uc.AccountantEmail,
		DocumentFormat:  uc.DocumentFormat,
		SlackChannelID:  uc.SlackChannelID,
		DocumentsPath:   uc.DocumentsPath,
	}
	if !uc.UpdatedAt.IsZero() {
		dto.UpdatedAt = uc.UpdatedAt.Format(time.RFC3339)
	}
	return dto
}
