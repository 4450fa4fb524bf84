package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumo/taxdesk/document"
	"github.com/lumo/taxdesk/enrich"
	"github.com/lumo/taxdesk/feed"
	"github.com/lumo/taxdesk/ledger"
	"github.com/lumo/taxdesk/notify"
	"github.com/lumo/taxdesk/secret"
	"github.com/lumo/taxdesk/store/sqlite"
	"github.com/lumo/taxdesk/textgen"
)

func newTestServer(t *testing.T) (*httptest.Server, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cipher, err := secret.NewCipher("test-passphrase")
	require.NoError(t, err)

	log := zerolog.Nop()
	gen := textgen.NewTemplate()
	h := &Handler{
		Store:           store,
		Syncer:          feed.NewSyncer(feed.NewMockSource(), store, feed.DefaultAccounts(), cipher, log),
		Enricher:        enrich.New(store, gen, t.TempDir(), log),
		Documents:       document.New(store, gen, notify.Fanout{}, t.TempDir(), log),
		AccountantEmail: "cpa@example.com",
		FeedMode:        "mock",
		TextGenMode:     "template",
		Channels:        []string{"none"},
	}

	srv := httptest.NewServer(NewRouter(h))
	t.Cleanup(srv.Close)
	return srv, store
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func seedTx(t *testing.T, store *sqlite.Store, id string, day int, status ledger.Status) {
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
		Status:           status,
	}
	require.NoError(t, store.SaveTransaction(context.Background(), tx))
}

func TestSyncEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/sync",
		SyncRequest{From: "2026-02-01", To: "2026-02-05"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	res := decode[feed.SyncResult](t, resp)
	assert.Positive(t, res.Saved)
	assert.Equal(t, res.Fetched, res.Saved+res.Skipped)
}

func TestListTransactionsMonthFilter(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-feb", 5, ledger.StatusPendingEnrichment)
	seedTx(t, store, "tx-feb-2", 6, ledger.StatusPendingEnrichment)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/transactions?month=2026-02&page_size=1", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decode[TransactionListDTO](t, resp)
	assert.Equal(t, 2, list.Total)
	assert.Len(t, list.Transactions, 1)
	// The encrypted account never leaves the server
	assert.Equal(t, "***-***-789", list.Transactions[0].AccountMasked)
}

func TestListTransactionsBadMonth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/transactions?month=02-2026", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestGetTransactionNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/transactions/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestEnrichmentFlow(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-1", 5, ledger.StatusPendingEnrichment)

	// Questions
	resp := doJSON(t, http.MethodGet, srv.URL+"/api/transactions/tx-1/questions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	qs := decode[textgen.QuestionSet](t, resp)
	assert.NotEmpty(t, qs.Questions)

	// Answers
	answers := SubmitAnswersRequest{Answers: []textgen.Answer{
		{QuestionID: "Q1", Answer: "Development/research"},
		{QuestionID: "Q2", Answer: "Yes, monthly"},
	}}
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/transactions/tx-1/answers", answers)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	ec := decode[ContextDTO](t, resp)
	assert.True(t, ec.IsRecurring)

	// Answering twice is a conflict
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/transactions/tx-1/answers", answers)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Context update
	memo := "Updated memo"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/transactions/tx-1/context",
		UpdateContextRequest{UserMemo: &memo})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ec = decode[ContextDTO](t, resp)
	assert.Equal(t, "Updated memo", ec.UserMemo)
}

func TestDocumentLifecycle(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-1", 5, ledger.StatusEnriched)

	// Generate
	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/generate",
		GenerateDocumentRequest{Month: "2026-02"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[DocumentDTO](t, resp)
	assert.Equal(t, "MD-2026-02", doc.ID)
	assert.Equal(t, 1, doc.Version)
	assert.NotEmpty(t, doc.Body)

	// Sending before review is a conflict
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/MD-2026-02/send", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Review
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/MD-2026-02/review", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = decode[DocumentDTO](t, resp)
	assert.Equal(t, "reviewed", doc.Status)

	// Reviewing again is a conflict
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/MD-2026-02/review", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()

	// Regeneration bumps the version
	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/generate",
		GenerateDocumentRequest{Month: "2026-02"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc = decode[DocumentDTO](t, resp)
	assert.Equal(t, 2, doc.Version)

	// List
	resp = doJSON(t, http.MethodGet, srv.URL+"/api/documents?year=2026", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	docs := decode[[]DocumentDTO](t, resp)
	require.Len(t, docs, 1)
	assert.Empty(t, docs[0].Body)
}

func TestGenerateDocumentBadMonth(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/generate",
		GenerateDocumentRequest{Month: "2026-13"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestPreviewEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-1", 5, ledger.StatusEnriched)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/documents/preview?month=2026-02", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	rows := decode[[]map[string]any](t, resp)
	require.Len(t, rows, 1)
	assert.Equal(t, "-50000", rows[0]["signed_amount"])
}

func TestHealthEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	for i := 1; i <= 3; i++ {
		seedTx(t, store, fmt.Sprintf("tx-%d", i), i, ledger.StatusPendingEnrichment)
	}

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[map[string]any](t, resp)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "mock", health["feed"])
	assert.EqualValues(t, 3, health["transactions"])
}

func TestDownloadDocument(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-1", 5, ledger.StatusEnriched)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/documents/generate",
		GenerateDocumentRequest{Month: "2026-02"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp, err := http.Get(srv.URL + "/api/documents/MD-2026-02/download")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "tax_documents_2026-02.xlsx")

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	// xlsx is a zip container
	require.Greater(t, len(data), 4)
	assert.Equal(t, []byte("PK"), data[:2])
}

func TestEditDocumentRegenerates(t *testing.T) {
	srv, store := newTestServer(t)
	seedTx(t, store, "tx-1", 5, ledger.StatusPendingEnrichment)

	resp := doJSON(t, http.MethodPost, srv.URL+"/api/transactions/tx-1/answers",
		SubmitAnswersRequest{Answers: []textgen.Answer{
			{QuestionID: "Q1", Answer: "Development/research"},
		}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodPost, srv.URL+"/api/documents/generate",
		GenerateDocumentRequest{Month: "2026-02"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	doc := decode[DocumentDTO](t, resp)
	require.Equal(t, 1, doc.Version)

	// Inline edit patches the context and rebuilds in one call
	memo := "Edited memo"
	resp = doJSON(t, http.MethodPut, srv.URL+"/api/documents/MD-2026-02/transactions/tx-1",
		UpdateContextRequest{UserMemo: &memo})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc = decode[DocumentDTO](t, resp)
	assert.Equal(t, 2, doc.Version)
	assert.Contains(t, doc.Body, "Edited memo")
}

func TestConfigRoundtrip(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := doJSON(t, http.MethodGet, srv.URL+"/api/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg := decode[UserConfigDTO](t, resp)
	assert.Equal(t, "excel", cfg.DocumentFormat)
	assert.Empty(t, cfg.AccountantEmail)

	resp = doJSON(t, http.MethodPut, srv.URL+"/api/config",
		UserConfigDTO{AccountantEmail: "books@example.com", DocumentFormat: "markdown"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp = doJSON(t, http.MethodGet, srv.URL+"/api/config", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cfg = decode[UserConfigDTO](t, resp)
	assert.Equal(t, "books@example.com", cfg.AccountantEmail)
	assert.Equal(t, "markdown", cfg.DocumentFormat)
}
