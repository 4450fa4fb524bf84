package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lumo/taxdesk/ledger"
)

// Client fetches transactions from the live bank-feed gateway. Accounts
// are fetched in parallel; a failed account is logged by the caller and
// skipped rather than failing the whole batch.
type Client struct {
	baseURL   string
	linkID    string
	secretKey string
	corpNum   string
	http      *http.Client
}

// NewClient builds a live feed client.
func NewClient(baseURL, linkID, secretKey, corpNum string) *Client {
	if baseURL == "" {
		baseURL = "https://bankfeed.linkhub.co.kr"
	}
	return &Client{
		baseURL:   baseURL,
		linkID:    linkID,
		secretKey: secretKey,
		corpNum:   corpNum,
		http:      &http.Client{Timeout: 30 * time.Second},
	}
}

// feedRecord is one row of the gateway response.
type feedRecord struct {
	TrDate  string `json:"trdate"`  // "20260205"
	TrTime  string `json:"trtime"`  // "14:30:00"
	TrAmt   int64  `json:"tramt"`   // absolute amount
	AccIn   bool   `json:"accIn"`   // true = deposit
	Remark  string `json:"remark"`  // counterparty
	Memo    string `json:"memo"`    // bank-app memo
}

type feedResponse struct {
	List []feedRecord `json:"list"`
}

// Fetch queries every account in parallel and merges the results. The
// per-account fetch itself is sequential.
func (c *Client) Fetch(ctx context.Context, accounts []Account, from, to time.Time) ([]ledger.RawTransaction, error) {
	var mu sync.Mutex
	var all []ledger.RawTransaction

	g, gctx := errgroup.WithContext(ctx)
	for _, account := range accounts {
		account := account
		g.Go(func() error {
			txs, err := c.fetchAccount(gctx, account, from, to)
			if err != nil {
				return fmt.Errorf("account %s/%s: %w", account.Bank, account.AccountNumber, err)
			}
			mu.Lock()
			all = append(all, txs...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return all, nil
}

func (c *Client) fetchAccount(ctx context.Context, account Account, from, to time.Time) ([]ledger.RawTransaction, error) {
	q := url.Values{}
	q.Set("CorpNum", c.corpNum)
	q.Set("BankCode", BankCode(account.Bank))
	q.Set("AccountNumber", account.AccountNumber)
	q.Set("SDate", from.Format("20060102"))
	q.Set("EDate", to.Format("20060102"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-lh-linkid", c.linkID)
	req.Header.Set("x-lh-secret", c.secretKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned %s", resp.Status)
	}

	var parsed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	txs := make([]ledger.RawTransaction, 0, len(parsed.List))
	for i, rec := range parsed.List {
		date, err := time.Parse("20060102", rec.TrDate)
		if err != nil {
			continue // malformed rows are dropped, not fatal
		}

		direction := ledger.Expense
		if rec.AccIn {
			direction = ledger.Income
		}
		amount := rec.TrAmt
		if amount < 0 {
			amount = -amount
		}

		txs = append(txs, ledger.RawTransaction{
			ID:            TransactionID(date, account.Bank, rec.Remark, i+1),
			BankName:      account.Bank,
			AccountNumber: account.AccountNumber,
			Date:          date,
			Time:          rec.TrTime,
			Amount:        amount,
			Direction:     direction,
			Counterparty:  rec.Remark,
			BankMemo:      rec.Memo,
		})
	}
	return txs, nil
}
