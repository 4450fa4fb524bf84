/*
handlers.go - HTTP API handlers for the tax document system

PURPOSE:
  Exposes the reconciliation engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Sync:
    POST   /api/sync                        Pull transactions from the feed

  Transactions:
    GET    /api/transactions                Paged list (month/status/bank filters)
    GET    /api/transactions/pending        Transactions awaiting enrichment
    GET    /api/transactions/{id}           Transaction plus its context
    GET    /api/transactions/{id}/questions Enrichment questions
    POST   /api/transactions/{id}/answers   Submit answers, create context
    PUT    /api/transactions/{id}/context   Allow-listed context update
    POST   /api/transactions/{id}/files     Upload supporting document

  Documents:
    POST   /api/documents/generate          Generate/regenerate a month
    GET    /api/documents                   List (optional ?year=)
    GET    /api/documents/preview           Flat rows for a month (?month=)
    GET    /api/documents/{id}              Full document with body
    GET    /api/documents/{id}/download     Excel workbook
    PUT    /api/documents/{id}/transactions/{txID}
                                            Inline edit: patch context,
                                            regenerate (bumps version)
    POST   /api/documents/{id}/review       Mark reviewed
    POST   /api/documents/{id}/send         Deliver to the accountant

  Config:
    GET    /api/config                      User settings record
    PUT    /api/config                      Replace user settings

  Health:
    GET    /api/health                      Capability modes and counts

ERROR HANDLING:
  Domain errors map to HTTP status via the ledger classifiers:
  - 400: validation (bad month, bad upload)
  - 404: unknown transaction/context/document
  - 409: state conflicts (duplicate answers, unreviewed send)
  - 503: degraded external capability
  - 500: everything else

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lumo/taxdesk/document"
	"github.com/lumo/taxdesk/enrich"
	"github.com/lumo/taxdesk/feed"
	"github.com/lumo/taxdesk/ledger"
)

// syncWindowDays is the default fetch window when the request names no
// bounds.
const syncWindowDays = 30

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store     ledger.Store
	Syncer    *feed.Syncer
	Enricher  *enrich.Service
	Documents *document.Service

	// Default recipient and capability modes for /api/health.
	AccountantEmail string
	FeedMode        string
	TextGenMode     string
	Channels        []string
}

// =============================================================================
// SYNC
// =============================================================================

// Sync pulls a window of transactions from the feed into the store.
func (h *Handler) Sync(w http.ResponseWriter, r *http.Request) {
	var req SyncRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	to := time.Now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -syncWindowDays)
	var err error
	if req.From != "" {
		if from, err = time.Parse("2006-01-02", req.From); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use YYYY-MM-DD)", err)
			return
		}
	}
	if req.To != "" {
		if to, err = time.Parse("2006-01-02", req.To); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use YYYY-MM-DD)", err)
			return
		}
	}

	res, err := h.Syncer.Sync(r.Context(), from, to)
	if err != nil {
		writeDomainError(w, "Sync failed", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// ListTransactions returns a filtered, paged transaction list.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := ledger.TransactionFilter{
		Status:   ledger.Status(q.Get("status")),
		Bank:     q.Get("bank"),
		Page:     intQuery(q.Get("page"), 1),
		PageSize: intQuery(q.Get("page_size"), 50),
	}
	if monthStr := q.Get("month"); monthStr != "" {
		m, err := ledger.ParseMonth(monthStr)
		if err != nil {
			writeDomainError(w, "Invalid month", err)
			return
		}
		filter.Month = &m
	}

	txs, total, err := h.Store.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, TransactionListDTO{
		Transactions: toTransactionDTOs(txs),
		Total:        total,
		Page:         filter.Page,
		PageSize:     filter.PageSize,
	})
}

// ListPending returns transactions still awaiting enrichment.
func (h *Handler) ListPending(w http.ResponseWriter, r *http.Request) {
	txs, err := h.Store.ListPending(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTOs(txs))
}

// GetTransaction returns one transaction plus its context, if any.
func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tx, err := h.Store.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get transaction", err)
		return
	}
	if tx == nil {
		writeError(w, http.StatusNotFound, "Transaction not found", nil)
		return
	}

	resp := struct {
		Transaction TransactionDTO `json:"transaction"`
		Context     *ContextDTO    `json:"context,omitempty"`
	}{Transaction: toTransactionDTO(*tx)}

	ec, err := h.Store.GetContextByTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get context", err)
		return
	}
	if ec != nil {
		dto := toContextDTO(ec)
		resp.Context = &dto
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetQuestions returns the enrichment questions for a transaction.
func (h *Handler) GetQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := h.Enricher.Questions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to generate questions", err)
		return
	}
	writeJSON(w, http.StatusOK, qs)
}

// SubmitAnswers creates the enriched context from the user's answers.
func (h *Handler) SubmitAnswers(w http.ResponseWriter, r *http.Request) {
	var req SubmitAnswersRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.Answers) == 0 {
		writeError(w, http.StatusBadRequest, "No answers provided", nil)
		return
	}

	ec, err := h.Enricher.SubmitAnswers(r.Context(), chi.URLParam(r, "id"), req.Answers)
	if err != nil {
		writeDomainError(w, "Failed to submit answers", err)
		return
	}
	writeJSON(w, http.StatusCreated, toContextDTO(ec))
}

// UpdateContext applies an allow-listed context update.
func (h *Handler) UpdateContext(w http.ResponseWriter, r *http.Request) {
	var req UpdateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ec, err := h.Enricher.UpdateContext(r.Context(), chi.URLParam(r, "id"), enrich.ContextUpdate{
		UserMemo:              req.UserMemo,
		Category:              req.Category,
		AccountClassification: req.AccountClassification,
		IsRecurring:           req.IsRecurring,
		Frequency:             req.Frequency,
		RelatedTransactionIDs: req.RelatedTransactionIDs,
		TaxNotes:              req.TaxNotes,
	})
	if err != nil {
		writeDomainError(w, "Failed to update context", err)
		return
	}
	writeJSON(w, http.StatusOK, toContextDTO(ec))
}

// UploadFile attaches a supporting document to a transaction.
func (h *Handler) UploadFile(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Missing file field", err)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}

	stored, err := h.Enricher.AttachFile(r.Context(), chi.URLParam(r, "id"), header.Filename, data)
	if err != nil {
		writeDomainError(w, "Failed to attach file", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"file": stored})
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// GenerateDocument builds or rebuilds the month's document.
func (h *Handler) GenerateDocument(w http.ResponseWriter, r *http.Request) {
	var req GenerateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	m, err := ledger.ParseMonth(req.Month)
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}

	doc, err := h.Documents.Generate(r.Context(), m)
	if err != nil {
		writeDomainError(w, "Failed to generate document", err)
		return
	}
	writeJSON(w, http.StatusCreated, toDocumentDTO(doc, true))
}

// ListDocuments returns the stored documents, optionally by year.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	year := intQuery(r.URL.Query().Get("year"), 0)

	docs, err := h.Documents.List(r.Context(), year)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list documents", err)
		return
	}

	dtos := make([]DocumentDTO, 0, len(docs))
	for i := range docs {
		dtos = append(dtos, toDocumentDTO(&docs[i], false))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PreviewDocument returns the flat transaction rows for a month.
func (h *Handler) PreviewDocument(w http.ResponseWriter, r *http.Request) {
	m, err := ledger.ParseMonth(r.URL.Query().Get("month"))
	if err != nil {
		writeDomainError(w, "Invalid month", err)
		return
	}

	rows, err := h.Documents.Preview(r.Context(), m)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to build preview", err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// GetDocument returns one document including its body.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get document", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc, true))
}

// ReviewDocument marks a document reviewed.
func (h *Handler) ReviewDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.MarkReviewed(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to review document", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc, false))
}

// SendDocument delivers a reviewed document to the accountant.
func (h *Handler) SendDocument(w http.ResponseWriter, r *http.Request) {
	var req SendDocumentRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}
	recipient := req.AccountantEmail
	if recipient == "" {
		if uc, err := h.Store.GetUserConfig(r.Context(), ledger.DefaultUserID); err == nil {
			recipient = uc.AccountantEmail
		}
	}
	if recipient == "" {
		recipient = h.AccountantEmail
	}
	if recipient == "" {
		writeError(w, http.StatusBadRequest, "No accountant email configured or provided", nil)
		return
	}

	doc, results, err := h.Documents.Send(r.Context(), chi.URLParam(r, "id"), recipient)
	if err != nil {
		writeDomainError(w, "Failed to send document", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Document DocumentDTO `json:"document"`
		Results  any         `json:"delivery_results"`
	}{toDocumentDTO(doc, false), results})
}

// DownloadDocument serves the document's Excel workbook.
func (h *Handler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	data, filename, err := h.Documents.Workbook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to build workbook", err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.Write(data)
}

// EditDocument patches one transaction's context and regenerates the
// document, bumping its version.
func (h *Handler) EditDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := h.Documents.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to get document", err)
		return
	}

	var req UpdateContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if _, err := h.Enricher.UpdateContext(r.Context(), chi.URLParam(r, "txID"), enrich.ContextUpdate{
		UserMemo:              req.UserMemo,
		Category:              req.Category,
		AccountClassification: req.AccountClassification,
		IsRecurring:           req.IsRecurring,
		Frequency:             req.Frequency,
		RelatedTransactionIDs: req.RelatedTransactionIDs,
		TaxNotes:              req.TaxNotes,
	}); err != nil {
		writeDomainError(w, "Failed to update context", err)
		return
	}

	doc, err = h.Documents.Generate(r.Context(), doc.Month)
	if err != nil {
		writeDomainError(w, "Failed to regenerate document", err)
		return
	}
	writeJSON(w, http.StatusOK, toDocumentDTO(doc, true))
}

// =============================================================================
// CONFIG
// =============================================================================

// GetConfig returns the user settings record.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	uc, err := h.Store.GetUserConfig(r.Context(), ledger.DefaultUserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get config", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserConfigDTO(uc))
}

// UpdateConfig replaces the user settings record.
func (h *Handler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req UserConfigDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	uc := &ledger.UserConfig{
		UserID:          ledger.DefaultUserID,
		AccountantEmail: req.AccountantEmail,
		DocumentFormat:  req.DocumentFormat,
		SlackChannelID:  req.SlackChannelID,
		DocumentsPath:   req.DocumentsPath,
	}
	if err := h.Store.SaveUserConfig(r.Context(), uc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save config", err)
		return
	}
	writeJSON(w, http.StatusOK, toUserConfigDTO(uc))
}

// =============================================================================
// HEALTH
// =============================================================================

// Health reports capability modes and the stored record count.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	count, err := h.Store.CountTransactions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count transactions", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"feed":         h.FeedMode,
		"textgen":      h.TextGenMode,
		"channels":     h.Channels,
		"transactions": count,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger error classes onto HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case ledger.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	case ledger.IsStateConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, ledger.ErrServiceDegraded):
		writeError(w, http.StatusServiceUnavailable, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func intQuery(s string, fallback int) int {
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
