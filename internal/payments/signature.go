package payments

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
)

// SignatureVerifier authenticates an inbound callback payload.
type SignatureVerifier interface {
	Verify(payload []byte, signature string) bool
}

// SignHMACSHA512 returns the lowercase hex HMAC-SHA512 of data.
func SignHMACSHA512(data []byte, secret string) string {
	mac := hmac.New(sha512.New, []byte(secret))
	mac.Write(data)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSHA512 checks signature against the HMAC-SHA512 of the compact serialisation of
// payload. The comparison is constant time.
func VerifyHMACSHA512(payload []byte, signature, secret string) bool {
	if secret == "" || signature == "" {
		return false
	}
	var canonical bytes.Buffer
	if err := json.Compact(&canonical, payload); err != nil {
		return false
	}
	want := SignHMACSHA512(canonical.Bytes(), secret)
	got := strings.ToLower(strings.TrimSpace(signature))
	return hmac.Equal([]byte(want), []byte(got))
}

// HMACSHA512Verifier is used for OPay callbacks.
type HMACSHA512Verifier struct {
	secret string
}

func NewHMACSHA512Verifier(secret string) HMACSHA512Verifier {
	return HMACSHA512Verifier{secret: secret}
}

func (v HMACSHA512Verifier) Verify(payload []byte, signature string) bool {
	return VerifyHMACSHA512(payload, signature, v.secret)
}

// NoopVerifier accepts every payload. M-Pesa and Nsano do not sign their callbacks, so those
// are trusted on payload shape alone.
type NoopVerifier struct{}

func (NoopVerifier) Verify([]byte, string) bool { return true }
