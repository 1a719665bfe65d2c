package payments

import (
	"strings"
	"testing"
)

func TestVerifyHMACSHA512(t *testing.T) {
	const secret = "OPAYPRV-secret"
	compact := `{"reference":"TXN1","status":"SUCCESS","amount":"100050"}`
	sig := SignHMACSHA512([]byte(compact), secret)

	tests := []struct {
		name    string
		payload string
		sig     string
		secret  string
		want    bool
	}{
		{"exact", compact, sig, secret, true},
		{"whitespace is canonicalised", "{ \"reference\": \"TXN1\",\n \"status\": \"SUCCESS\", \"amount\": \"100050\" }", sig, secret, true},
		{"uppercase hex", compact, strings.ToUpper(sig), secret, true},
		{"tampered payload", strings.Replace(compact, "SUCCESS", "FAIL", 1), sig, secret, false},
		{"reordered keys", `{"status":"SUCCESS","reference":"TXN1","amount":"100050"}`, sig, secret, false},
		{"wrong secret", compact, sig, "other", false},
		{"empty secret", compact, sig, "", false},
		{"empty signature", compact, "", secret, false},
		{"not json", "reference=TXN1", sig, secret, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := VerifyHMACSHA512([]byte(tt.payload), tt.sig, tt.secret); got != tt.want {
				t.Errorf("VerifyHMACSHA512() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNoopVerifierAcceptsAnything(t *testing.T) {
	var v SignatureVerifier = NoopVerifier{}
	if !v.Verify([]byte("{}"), "") {
		t.Fatal("noop verifier rejected a payload")
	}
}
