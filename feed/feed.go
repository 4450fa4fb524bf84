/*
Package feed provides the transaction-source capability: fetching raw
bank transactions for a set of accounts over a date range.

PURPOSE:
  The core depends only on the Source interface. Two implementations
  exist, chosen once at construction (see factory):
    Client:     live HTTP bank-feed gateway
    MockSource: deterministic generator for development and tests
  Business logic never asks which one it got.

TRANSACTION IDENTIFIERS:
  IDs are derived, not random: date + bank code + counterparty prefix +
  per-(day, bank) sequence, e.g. "2026-02-05-003-AWS-001". Re-fetching a
  range therefore reproduces the same IDs, which is what makes sync
  idempotent at the store level.

SEE ALSO:
  - client.go: Live HTTP implementation
  - mock.go: Deterministic generator
*/
package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/lumo/taxdesk/ledger"
)

// Account identifies one bank account to fetch.
type Account struct {
	Bank          string `json:"bank"`
	AccountNumber string `json:"account"`
}

// DefaultAccounts are the accounts fetched when none are configured.
func DefaultAccounts() []Account {
	return []Account{
		{Bank: "기업은행", AccountNumber: "123-456-789"},
		{Bank: "우리은행", AccountNumber: "987-654-321"},
	}
}

// Source fetches raw transactions for the given accounts and range.
// Fetching across accounts may be parallelized; no ordering between
// accounts is guaranteed.
type Source interface {
	Fetch(ctx context.Context, accounts []Account, from, to time.Time) ([]ledger.RawTransaction, error)
}

// bankCodes maps bank display names to feed gateway codes.
var bankCodes = map[string]string{
	"기업은행": "003",
	"국민은행": "004",
	"우리은행": "020",
	"하나은행": "081",
}

// BankCode returns the gateway code for a bank name, "000" if unknown.
func BankCode(bank string) string {
	if code, ok := bankCodes[bank]; ok {
		return code
	}
	return "000"
}

// TransactionID derives the canonical identifier for a record.
func TransactionID(date time.Time, bank, counterparty string, seq int) string {
	party := "UNK"
	if counterparty != "" {
		runes := []rune(counterparty)
		if len(runes) > 3 {
			runes = runes[:3]
		}
		party = string(runes)
	}
	return fmt.Sprintf("%s-%s-%s-%03d", date.Format("2006-01-02"), BankCode(bank), party, seq)
}
