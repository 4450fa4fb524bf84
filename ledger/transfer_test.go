package ledger_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumo/taxdesk/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func feb(day int) time.Time {
	return time.Date(2026, time.February, day, 0, 0, 0, 0, time.UTC)
}

func raw(id string, amount int64, dir ledger.Direction, date time.Time, clock string) ledger.RawTransaction {
	return ledger.RawTransaction{
		ID:        id,
		BankName:  "기업은행",
		Date:      date,
		Time:      clock,
		Amount:    amount,
		Direction: dir,
	}
}

// =============================================================================
// TRANSFER DETECTION
// =============================================================================

func TestDetect_PairWithinWindow_ExpenseLegExcluded(t *testing.T) {
	// GIVEN: same amount, same day, 2 minutes apart, opposite directions
	// WHEN: the batch is scanned
	// THEN: only the expense leg is excluded

	batch := []ledger.RawTransaction{
		raw("out-1", 100000, ledger.Expense, feb(5), "10:00:00"),
		raw("in-1", 100000, ledger.Income, feb(5), "10:02:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)

	assert.True(t, excluded["out-1"], "expense leg should be excluded")
	assert.False(t, excluded["in-1"], "income leg stays as the canonical record")
	assert.Len(t, excluded, 1)
}

func TestDetect_ExactBoundary_300SecondsMatches(t *testing.T) {
	batch := []ledger.RawTransaction{
		raw("out-1", 50000, ledger.Expense, feb(10), "09:00:00"),
		raw("in-1", 50000, ledger.Income, feb(10), "09:05:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	assert.True(t, excluded["out-1"], "300s is inside the window")
}

func TestDetect_OutsideWindow_NoMatch(t *testing.T) {
	batch := []ledger.RawTransaction{
		raw("out-1", 50000, ledger.Expense, feb(10), "09:00:00"),
		raw("in-1", 50000, ledger.Income, feb(10), "09:05:01"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	assert.Empty(t, excluded)
}

func TestDetect_DifferentDays_NoMatch(t *testing.T) {
	// Near-midnight movements on adjacent days are not transfers: the
	// calendar date must match, not just the clock distance.
	batch := []ledger.RawTransaction{
		raw("out-1", 70000, ledger.Expense, feb(5), "23:59:00"),
		raw("in-1", 70000, ledger.Income, feb(6), "00:01:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	assert.Empty(t, excluded)
}

func TestDetect_SameDirection_NoMatch(t *testing.T) {
	batch := []ledger.RawTransaction{
		raw("out-1", 30000, ledger.Expense, feb(5), "10:00:00"),
		raw("out-2", 30000, ledger.Expense, feb(5), "10:01:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	assert.Empty(t, excluded)
}

func TestDetect_MalformedTime_PairSkipped(t *testing.T) {
	// Records missing a parsable time are never matched, never panic.
	batch := []ledger.RawTransaction{
		raw("out-1", 80000, ledger.Expense, feb(5), ""),
		raw("in-1", 80000, ledger.Income, feb(5), "10:00:00"),
		raw("out-2", 80000, ledger.Expense, feb(5), "25:99:00"),
	}

	require.NotPanics(t, func() {
		excluded := ledger.DetectInternalTransfers(batch)
		assert.Empty(t, excluded)
	})
}

func TestDetect_EmptyAndSingleton(t *testing.T) {
	assert.Empty(t, ledger.DetectInternalTransfers(nil))
	assert.Empty(t, ledger.DetectInternalTransfers([]ledger.RawTransaction{
		raw("only", 12000, ledger.Expense, feb(1), "12:00:00"),
	}))
}

func TestDetect_MultipleCandidates_AllCrossPairsEvaluated(t *testing.T) {
	// GIVEN: two expenses and one income at the same amount, all within
	// the window of the income
	// THEN: both expense legs are excluded; set semantics collapse repeats
	batch := []ledger.RawTransaction{
		raw("out-1", 900000, ledger.Expense, feb(12), "14:00:00"),
		raw("out-2", 900000, ledger.Expense, feb(12), "14:03:00"),
		raw("in-1", 900000, ledger.Income, feb(12), "14:01:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	assert.True(t, excluded["out-1"])
	assert.True(t, excluded["out-2"])
	assert.Len(t, excluded, 2)
}

func TestDetect_EndToEndExample(t *testing.T) {
	// The canonical example: a 100k transfer pair plus an unrelated 12k
	// expense. Post-filter totals: income 100000, expense 12000.
	batch := []ledger.RawTransaction{
		raw("t1", 100000, ledger.Expense, feb(5), "10:00:00"),
		raw("t2", 100000, ledger.Income, feb(5), "10:02:00"),
		raw("t3", 12000, ledger.Expense, feb(5), "12:00:00"),
	}

	excluded := ledger.DetectInternalTransfers(batch)
	require.Equal(t, map[string]bool{"t1": true}, excluded)

	var income, expense int64
	for _, tx := range batch {
		if excluded[tx.ID] {
			continue
		}
		if tx.Direction == ledger.Income {
			income += tx.Amount
		} else {
			expense += tx.Amount
		}
	}
	assert.Equal(t, int64(100000), income)
	assert.Equal(t, int64(12000), expense)
}
