package ledger

import "strconv"

// FormatWon renders an amount as "₩1,234,567". Negative values keep the
// sign in front of the currency mark: "-₩12,000".
func FormatWon(amount int64) string {
	neg := amount < 0
	if neg {
		amount = -amount
	}

	digits := strconv.FormatInt(amount, 10)
	var out []byte
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, d)
	}

	if neg {
		return "-₩" + string(out)
	}
	return "₩" + string(out)
}
