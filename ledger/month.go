package ledger

import (
	"fmt"
	"time"
)

// =============================================================================
// MONTH - The reporting period key
// =============================================================================

// Month identifies a calendar month as "YYYY-MM". All document math is
// scoped to one Month; there is no other period shape in this system.
type Month struct {
	Year  int
	Mon   time.Month
}

// ParseMonth validates and parses a "YYYY-MM" string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return Month{}, &InvalidMonthError{Value: s, Reason: "expected YYYY-MM"}
	}
	if t.Year() < 1970 || t.Year() > 9999 {
		return Month{}, &InvalidMonthError{Value: s, Reason: "year out of range"}
	}
	return Month{Year: t.Year(), Mon: t.Month()}, nil
}

// MonthOf returns the month containing the given time.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Mon: t.Month()}
}

// String returns the canonical "YYYY-MM" form.
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Mon))
}

// Range returns the half-open [start, end) date range of the month.
func (m Month) Range() (time.Time, time.Time) {
	start := time.Date(m.Year, m.Mon, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the month.
func (m Month) Contains(t time.Time) bool {
	start, end := m.Range()
	return !t.Before(start) && t.Before(end)
}

// clockSeconds parses a "HH:MM:SS" time-of-day into seconds since
// midnight. The detector treats unparsable values as missing.
func clockSeconds(clock string) (int, bool) {
	t, err := time.Parse("15:04:05", clock)
	if err != nil {
		return 0, false
	}
	return t.Hour()*3600 + t.Minute()*60 + t.Second(), true
}
