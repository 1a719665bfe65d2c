package payments

import "testing"

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		name        string
		raw         string
		dial        string
		nationalLen int
		want        string
	}{
		{"nigeria leading zero", "08012345678", dialNigeria, nationalLenNigeria, "+2348012345678"},
		{"nigeria already prefixed", "+234 801 234 5678", dialNigeria, nationalLenNigeria, "+2348012345678"},
		{"nigeria national length", "8012345678", dialNigeria, nationalLenNigeria, "+2348012345678"},
		{"kenya leading zero", "0712345678", dialKenya, nationalLenKenya, "+254712345678"},
		{"kenya national length", "712345678", dialKenya, nationalLenKenya, "+254712345678"},
		{"ivory coast leading zero", "0546676098", dialIvoryCoast, nationalLenIvoryCoast, "+225546676098"},
		{"fallback", "12345", dialKenya, nationalLenKenya, "+25412345"},
		{"no digits", "n/a", dialKenya, nationalLenKenya, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizePhone(tt.raw, tt.dial, tt.nationalLen); got != tt.want {
				t.Errorf("NormalizePhone(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}

func TestWirePhoneDropsPlus(t *testing.T) {
	if got := wirePhone("0712345678", dialKenya, nationalLenKenya); got != "254712345678" {
		t.Errorf("kenya wire phone = %q", got)
	}
	if got := wirePhone("0546676098", dialIvoryCoast, nationalLenIvoryCoast); got != "225546676098" {
		t.Errorf("ivory coast wire phone = %q", got)
	}
}
