package secret

import "strings"

// MaskAccountNumber masks an account number for display, keeping only the
// trailing digits visible. Dash formatting is preserved when present.
//
//	"123-456-789012" -> "***-***-789012"
//	"1234567890123"  -> "*******890123"
func MaskAccountNumber(account string) string {
	if account == "" {
		return ""
	}

	clean := strings.NewReplacer("-", "", " ", "").Replace(account)
	if len(clean) <= 4 {
		return clean
	}

	visible := len(clean) / 2
	if visible > 6 {
		visible = 6
	}
	hidden := len(clean) - visible

	if !strings.Contains(account, "-") {
		return strings.Repeat("*", hidden) + clean[hidden:]
	}

	// Mask dash-separated parts left to right until the hidden budget
	// is spent.
	parts := strings.Split(account, "-")
	masked := make([]string, len(parts))
	remaining := hidden
	for i, part := range parts {
		switch {
		case remaining >= len(part):
			masked[i] = strings.Repeat("*", len(part))
			remaining -= len(part)
		case remaining > 0:
			masked[i] = strings.Repeat("*", remaining) + part[remaining:]
			remaining = 0
		default:
			masked[i] = part
		}
	}
	return strings.Join(masked, "-")
}

// MaskEmail masks the local part of an email, keeping the first rune and
// the domain: "user@example.com" -> "u***@example.com".
func MaskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 1 {
		return email
	}
	local, domain := email[:at], email[at+1:]
	return local[:1] + strings.Repeat("*", len(local)-1) + "@" + domain
}
