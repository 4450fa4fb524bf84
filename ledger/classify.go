/*
classify.go - Monthly bucket classification

PURPOSE:
  Partitions one month's transactions (internal transfers already
  excluded) into the three document buckets. Precedence matters and is
  visible in the rendered document:

    recurring:     is_recurring set, regardless of status
    non-recurring: flag unset AND status enriched
    pending:       status pending_enrichment or pending_manual_review,
                   only reached when the recurring flag is unset

  A recurring-but-unanswered transaction therefore lands in "recurring",
  not "pending"; the flag wins. Every transaction appears in at most one
  bucket. Auto-classified, non-recurring transactions fall outside all
  three and are counted only in the totals.
*/
package ledger

// Buckets is the disjoint classification of a month's transactions.
type Buckets struct {
	Recurring    []Transaction
	NonRecurring []Transaction // enriched only
	Pending      []Transaction
}

// Classify partitions transactions into buckets. The input order (the
// month's chronological order) is preserved within each bucket.
func Classify(txs []Transaction) Buckets {
	var b Buckets
	for _, tx := range txs {
		switch {
		case tx.IsRecurring:
			b.Recurring = append(b.Recurring, tx)
		case tx.Status == StatusEnriched:
			b.NonRecurring = append(b.NonRecurring, tx)
		case tx.Status.IsPending():
			b.Pending = append(b.Pending, tx)
		}
	}
	return b
}

// Totals are the aggregate counts and sums for one month.
type Totals struct {
	Income       int64
	Expense      int64
	IncomeCount  int
	ExpenseCount int
	Banks        []string
}

// Sum computes income/expense totals and the distinct bank names used,
// in first-seen order.
func Sum(txs []Transaction) Totals {
	var t Totals
	seen := make(map[string]bool)
	for _, tx := range txs {
		switch tx.Direction {
		case Income:
			t.Income += tx.Amount
			t.IncomeCount++
		case Expense:
			t.Expense += tx.Amount
			t.ExpenseCount++
		}
		if !seen[tx.BankName] {
			seen[tx.BankName] = true
			t.Banks = append(t.Banks, tx.BankName)
		}
	}
	return t
}
