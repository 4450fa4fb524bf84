/*
group.go - Relationship grouping for non-recurring transactions

PURPOSE:
  Follows user-declared links between transactions to form connected
  groups for the non-recurring document section. Expansion is exactly one
  hop: a transaction pulls in the not-yet-visited members its own context
  lists, and stops there. The related lists of the newly added members are
  NOT chased — a chain A→B, B→C (without A→C) groups {A,B} and leaves C
  alone unless C itself lists A or B. This mirrors how links are entered
  during enrichment and changes document output if "fixed" to a transitive
  closure, so it stays one-hop.

CONTRACT:
  Input is the non-recurring-enriched bucket in chronological order plus a
  lookup of each transaction's context. Output is the multi-member groups
  (size >= 2) and the residual ungrouped singletons. Related ids that do
  not resolve inside the batch are ignored.
*/
package ledger

// Group is one connected set of related transactions, in batch order.
type Group struct {
	Members []Transaction
}

// Total returns the summed amount of the group's members.
func (g Group) Total() int64 {
	var total int64
	for _, tx := range g.Members {
		total += tx.Amount
	}
	return total
}

// GroupRelated partitions the batch into related groups and ungrouped
// singletons using one-hop expansion over related_transaction_ids.
func GroupRelated(txs []Transaction, contexts map[string]*EnrichedContext) ([]Group, []Transaction) {
	var groups []Group
	var ungrouped []Transaction

	index := make(map[string]int, len(txs))
	for i, tx := range txs {
		index[tx.ID] = i
	}
	visited := make(map[string]bool, len(txs))

	for _, tx := range txs {
		if visited[tx.ID] {
			continue
		}

		ctx := contexts[tx.ID]
		if ctx == nil || len(ctx.RelatedTransactionIDs) == 0 {
			ungrouped = append(ungrouped, tx)
			visited[tx.ID] = true
			continue
		}

		members := []Transaction{tx}
		visited[tx.ID] = true
		for _, relID := range ctx.RelatedTransactionIDs {
			i, ok := index[relID]
			if !ok || visited[relID] {
				continue
			}
			members = append(members, txs[i])
			visited[relID] = true
		}

		if len(members) > 1 {
			groups = append(groups, Group{Members: members})
		} else {
			ungrouped = append(ungrouped, tx)
		}
	}

	return groups, ungrouped
}
