package payments

import "strings"

// Dialling plans used by the adapters.
const (
	dialKenya      = "254"
	dialNigeria    = "234"
	dialIvoryCoast = "225"

	nationalLenKenya      = 9
	nationalLenNigeria    = 10
	nationalLenIvoryCoast = 10
)

// NormalizePhone formats a phone number as +<dialCode><national number>. It is a best-effort
// rewrite and does not validate against a numbering plan.
func NormalizePhone(raw, dialCode string, nationalLen int) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if digits == "" {
		return ""
	}

	switch {
	case strings.HasPrefix(digits, dialCode):
		return "+" + digits
	case strings.HasPrefix(digits, "0"):
		return "+" + dialCode + digits[1:]
	case len(digits) == nationalLen:
		return "+" + dialCode + digits
	default:
		// last resort
		return "+" + dialCode + digits
	}
}

// wirePhone drops the leading "+" for providers that expect bare digits.
func wirePhone(raw, dialCode string, nationalLen int) string {
	return strings.TrimPrefix(NormalizePhone(raw, dialCode, nationalLen), "+")
}
