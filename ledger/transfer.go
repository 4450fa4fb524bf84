/*
transfer.go - Internal-transfer detection

PURPOSE:
  Identifies pairs of records in a fetch batch that represent a movement
  between the user's own accounts rather than real income or expense.
  Same amount, same calendar date, opposite directions, times-of-day
  within five minutes: that is the signature of a self-transfer, and the
  window absorbs clock/settlement skew between banks without matching
  unrelated same-amount activity hours apart.

CONTRACT:
  Input is one fetch batch (possibly spanning several accounts). Output is
  the set of record IDs to mark as internal transfers and exclude from
  income/expense totals. For every matched pair the EXPENSE leg is
  excluded; the income leg stays as the canonical record of the movement.

EDGE BEHAVIOR:
  - A record missing a parsable time never matches (the pair is skipped,
    nothing is raised).
  - Three or more records at one amount: every income×expense pair is
    evaluated independently; set semantics collapse repeats.
  - Empty batch or singleton amount groups yield an empty set.
*/
package ledger

import "time"

// transferWindowSeconds is the maximum time-of-day gap for a pair to
// count as a transfer.
const transferWindowSeconds = 300

// DetectInternalTransfers returns the set of record IDs that should be
// flagged as internal transfers within the batch.
func DetectInternalTransfers(batch []RawTransaction) map[string]bool {
	excluded := make(map[string]bool)

	byAmount := make(map[int64][]RawTransaction)
	for _, tx := range batch {
		byAmount[tx.Amount] = append(byAmount[tx.Amount], tx)
	}

	for _, group := range byAmount {
		if len(group) < 2 {
			continue
		}

		var incomes, expenses []RawTransaction
		for _, tx := range group {
			switch tx.Direction {
			case Income:
				incomes = append(incomes, tx)
			case Expense:
				expenses = append(expenses, tx)
			}
		}

		for _, in := range incomes {
			inSec, ok := clockSeconds(in.Time)
			if !ok {
				continue
			}
			for _, out := range expenses {
				if !sameDay(in.Date, out.Date) {
					continue
				}
				outSec, ok := clockSeconds(out.Time)
				if !ok {
					continue
				}
				diff := inSec - outSec
				if diff < 0 {
					diff = -diff
				}
				if diff <= transferWindowSeconds {
					excluded[out.ID] = true
				}
			}
		}
	}

	return excluded
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
