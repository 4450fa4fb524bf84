/*
render.go - Monthly document text rendering

PURPOSE:
  Turns one month's classified transactions into the markdown body the
  accountant reads. Section order is fixed:

    header / summary / checklist / recurring / non-recurring / pending

  A month with no transactions renders the short form: header plus a
  single "no activity" line.

CAPS:
  The checklist shows at most 10 items, each recurring counterparty
  shows at most 5 transactions; overflow collapses to a "+N more" line
  so the document stays readable regardless of volume.
*/
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/lumo/taxdesk/ledger"
)

const (
	checklistCap     = 10
	recurringItemCap = 5
)

// RenderInput is everything the renderer needs. Describe produces the
// relationship sentence for a non-recurring group; it is already
// degrade-safe (see textgen).
type RenderInput struct {
	Month        ledger.Month
	Transactions []ledger.Transaction // month's list, transfers excluded
	Contexts     map[string]*ledger.EnrichedContext
	Describe     func(txs []ledger.Transaction) string
	GeneratedAt  time.Time
}

// Render produces the document body.
func Render(in RenderInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Monthly Tax Document — %s (%d transactions)\n\n", in.Month, len(in.Transactions))
	fmt.Fprintf(&b, "Generated: %s\n\n", in.GeneratedAt.Format("2006-01-02 15:04"))

	if len(in.Transactions) == 0 {
		fmt.Fprintf(&b, "No transactions recorded for %s.\n", in.Month)
		return b.String()
	}

	totals := ledger.Sum(in.Transactions)
	buckets := ledger.Classify(in.Transactions)

	writeSummary(&b, totals, buckets, len(in.Transactions))
	writeChecklist(&b, in.Transactions, in.Contexts)
	writeRecurring(&b, buckets.Recurring, in.Contexts)
	writeNonRecurring(&b, buckets.NonRecurring, in.Contexts, in.Describe)
	writePending(&b, buckets.Pending)

	return b.String()
}

func writeSummary(b *strings.Builder, totals ledger.Totals, buckets ledger.Buckets, count int) {
	b.WriteString("## Summary\n\n")
	fmt.Fprintf(b, "- Transactions: %d (income %d, expense %d)\n", count, totals.IncomeCount, totals.ExpenseCount)
	fmt.Fprintf(b, "- Total income: %s\n", ledger.FormatWon(totals.Income))
	fmt.Fprintf(b, "- Total expense: %s\n", ledger.FormatWon(totals.Expense))
	fmt.Fprintf(b, "- Net flow: %s\n", signedWon(totals.Income-totals.Expense))
	fmt.Fprintf(b, "- Recurring %d · Non-recurring %d · Pending %d\n",
		len(buckets.Recurring), len(buckets.NonRecurring), len(buckets.Pending))
	fmt.Fprintf(b, "- Banks: %s\n\n", strings.Join(totals.Banks, ", "))
}

// writeChecklist summarizes document readiness across the whole month.
// A transaction without a context has no documents collected yet, so it
// counts as needs-preparation; those items are listed individually,
// capped at checklistCap.
func writeChecklist(b *strings.Builder, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) {
	var ready, unavailable int
	var needsPrep []ledger.Transaction
	for _, tx := range txs {
		ec := contexts[tx.ID]
		switch {
		case ec == nil:
			needsPrep = append(needsPrep, tx)
		case ec.Documents.Status == ledger.DocsReady:
			ready++
		case ec.Documents.Status == ledger.DocsUnavailable:
			unavailable++
		default:
			needsPrep = append(needsPrep, tx)
		}
	}

	b.WriteString("## Checklist\n\n")
	fmt.Fprintf(b, "- ✅ Ready: %d\n", ready)
	fmt.Fprintf(b, "- ⚠️ Needs preparation: %d\n", len(needsPrep))
	fmt.Fprintf(b, "- ❌ Unavailable: %d\n", unavailable)

	if len(needsPrep) > 0 {
		b.WriteString("\nNeeds preparation:\n")
		shown := needsPrep
		if len(shown) > checklistCap {
			shown = shown[:checklistCap]
		}
		for i, tx := range shown {
			memo := tx.BankMemo
			if ec := contexts[tx.ID]; ec != nil && ec.UserMemo != "" {
				memo = ec.UserMemo
			}
			if memo != "" {
				memo = " — " + memo
			}
			fmt.Fprintf(b, "%d. %s %s %s%s\n",
				i+1, tx.Date.Format("01-02"), tx.Counterparty, ledger.FormatWon(tx.Amount), memo)
		}
		if rest := len(needsPrep) - len(shown); rest > 0 {
			fmt.Fprintf(b, "…and %d more items\n", rest)
		}
	}
	b.WriteString("\n")
}

// writeRecurring groups by counterparty in first-seen order, each group
// capped at recurringItemCap individual lines and closed by the context
// fields of the first enriched member.
func writeRecurring(b *strings.Builder, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) {
	if len(txs) == 0 {
		return
	}
	b.WriteString("## Recurring Transactions\n\n")

	byParty := make(map[string][]ledger.Transaction)
	var order []string
	for _, tx := range txs {
		if _, seen := byParty[tx.Counterparty]; !seen {
			order = append(order, tx.Counterparty)
		}
		byParty[tx.Counterparty] = append(byParty[tx.Counterparty], tx)
	}

	for _, party := range order {
		group := byParty[party]
		fmt.Fprintf(b, "### %s (%d transactions, %s)\n\n", party, len(group), ledger.FormatWon(partyTotal(group)))

		shown := group
		if len(shown) > recurringItemCap {
			shown = shown[:recurringItemCap]
		}
		for _, tx := range shown {
			b.WriteString(transactionLine(tx, contexts[tx.ID]))
		}
		if rest := len(group) - len(shown); rest > 0 {
			fmt.Fprintf(b, "- +%d more\n", rest)
		}

		ec := firstContext(group, contexts)
		category := "uncategorized"
		glyph := ledger.DocsNeedsPrep.Glyph()
		if ec != nil {
			if ec.Category != "" {
				category = ec.Category
			}
			glyph = ec.Documents.Status.Glyph()
		}
		b.WriteString("\n")
		fmt.Fprintf(b, "Category: %s\n", category)
		if ec != nil {
			if ec.AccountClassification != "" {
				fmt.Fprintf(b, "Account classification: %s\n", ec.AccountClassification)
			}
			if ec.TaxNotes != "" {
				fmt.Fprintf(b, "Tax notes: %s\n", ec.TaxNotes)
			}
			if ec.AISummary != "" {
				fmt.Fprintf(b, "Summary: %s\n", ec.AISummary)
			}
		}
		fmt.Fprintf(b, "Documents: %s\n\n", glyph)
	}
}

// firstContext returns the context of the first enriched member.
func firstContext(txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext) *ledger.EnrichedContext {
	for _, tx := range txs {
		if ec := contexts[tx.ID]; ec != nil {
			return ec
		}
	}
	return nil
}

// writeNonRecurring renders related groups first (each with its
// relationship sentence), then the ungrouped singles.
func writeNonRecurring(b *strings.Builder, txs []ledger.Transaction, contexts map[string]*ledger.EnrichedContext, describe func([]ledger.Transaction) string) {
	if len(txs) == 0 {
		return
	}
	b.WriteString("## Non-Recurring Transactions\n\n")

	groups, ungrouped := ledger.GroupRelated(txs, contexts)
	for _, g := range groups {
		sentence := ""
		if describe != nil {
			sentence = describe(g.Members)
		}
		if sentence == "" {
			sentence = fmt.Sprintf("%d related transactions, total %s", len(g.Members), ledger.FormatWon(g.Total()))
		}
		fmt.Fprintf(b, "### Related group: %s\n\n", sentence)
		for _, tx := range g.Members {
			b.WriteString(transactionLine(tx, contexts[tx.ID]))
		}
		b.WriteString("\n")
	}

	if len(ungrouped) > 0 {
		if len(groups) > 0 {
			b.WriteString("### Other\n\n")
		}
		for _, tx := range ungrouped {
			b.WriteString(individualLine(tx, contexts[tx.ID]))
		}
		b.WriteString("\n")
	}
}

func writePending(b *strings.Builder, txs []ledger.Transaction) {
	if len(txs) == 0 {
		return
	}
	fmt.Fprintf(b, "## Pending Enrichment (%d)\n\n", len(txs))
	for _, tx := range txs {
		fmt.Fprintf(b, "- %s %s %s — awaiting answers\n",
			tx.Date.Format("01-02"), tx.Counterparty, ledger.FormatWon(tx.Amount))
	}
	b.WriteString("\n")
}

// transactionLine is the shared one-line form: date, counterparty,
// signed direction glyph, amount, memo, document readiness.
func transactionLine(tx ledger.Transaction, ec *ledger.EnrichedContext) string {
	sign := "−"
	if tx.Direction == ledger.Income {
		sign = "+"
	}
	memo := tx.BankMemo
	glyph := ""
	if ec != nil {
		if ec.UserMemo != "" {
			memo = ec.UserMemo
		}
		glyph = " " + ec.Documents.Status.Glyph()
	}
	if memo != "" {
		memo = " — " + memo
	}
	return fmt.Sprintf("- %s %s %s%s%s%s\n",
		tx.Date.Format("01-02"), tx.Counterparty, sign, ledger.FormatWon(tx.Amount), memo, glyph)
}

// individualLine is the ungrouped single-transaction form: the shared
// line shape plus a category tag so standalone items stay classifiable
// at a glance.
func individualLine(tx ledger.Transaction, ec *ledger.EnrichedContext) string {
	sign := "−"
	if tx.Direction == ledger.Income {
		sign = "+"
	}
	category := "uncategorized"
	memo := tx.BankMemo
	glyph := ledger.DocsNeedsPrep.Glyph()
	if ec != nil {
		if ec.Category != "" {
			category = ec.Category
		}
		if ec.UserMemo != "" {
			memo = ec.UserMemo
		}
		glyph = ec.Documents.Status.Glyph()
	}
	if memo != "" {
		memo = " — " + memo
	}
	return fmt.Sprintf("- %s %s %s%s [%s] %s%s\n",
		tx.Date.Format("01-02"), tx.Counterparty, sign, ledger.FormatWon(tx.Amount), category, glyph, memo)
}

func partyTotal(txs []ledger.Transaction) int64 {
	var total int64
	for _, tx := range txs {
		total += tx.Amount
	}
	return total
}

// signedWon renders an explicit sign even for non-negative values, for
// the net-flow summary row.
func signedWon(amount int64) string {
	if amount < 0 {
		return "−" + ledger.FormatWon(-amount)
	}
	return "+" + ledger.FormatWon(amount)
}
