package auth

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestStaticTokenAuthenticator(t *testing.T) {
	plain, err := NewStaticTokenAuthenticator("s3cret", "")
	if err != nil {
		t.Fatalf("NewStaticTokenAuthenticator: %v", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	hashed, err := NewStaticTokenAuthenticator("", string(hash))
	if err != nil {
		t.Fatalf("NewStaticTokenAuthenticator(hash): %v", err)
	}

	for name, a := range map[string]*StaticTokenAuthenticator{"plain": plain, "bcrypt": hashed} {
		t.Run(name, func(t *testing.T) {
			if !a.Check("s3cret") {
				t.Error("valid token rejected")
			}
			if a.Check("s3cre") || a.Check("") {
				t.Error("invalid token accepted")
			}
		})
	}
}

func TestStaticTokenAuthenticatorCachesVerifiedHash(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	a, err := NewStaticTokenAuthenticator("", string(hash))
	if err != nil {
		t.Fatalf("NewStaticTokenAuthenticator: %v", err)
	}

	if a.Check("wrong") {
		t.Fatal("invalid token accepted")
	}
	if a.verified.Load() != nil {
		t.Fatal("a rejected token was cached")
	}
	if !a.Check("s3cret") {
		t.Fatal("valid token rejected")
	}
	if a.verified.Load() == nil {
		t.Fatal("verified token digest not cached")
	}

	// Served from the cached digest from here on.
	a.hash = []byte("$2a$04$invalidinvalidinvalidinvalidinvalidinvalidinvalidinva")
	if !a.Check("s3cret") {
		t.Error("cached token rejected")
	}
	if a.Check("wrong") {
		t.Error("invalid token accepted after caching")
	}
}

func TestStaticTokenAuthenticatorConfig(t *testing.T) {
	if _, err := NewStaticTokenAuthenticator("", ""); err == nil {
		t.Error("expected an error without a token")
	}
	if _, err := NewStaticTokenAuthenticator("", "not-a-bcrypt-hash"); err == nil {
		t.Error("expected an error for a malformed hash")
	}
}

func TestJWTEventSigner(t *testing.T) {
	s := NewJWTEventSigner("event-secret", "paygate")
	body := []byte(`{"ref_id":"TXN1","code":"00"}`)

	tok, err := s.Sign("TXN1", "evt-1", body)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	parsed, err := s.Validate(tok, body)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if sub, _ := parsed.Claims.GetSubject(); sub != "TXN1" {
		t.Errorf("sub = %q", sub)
	}

	if _, err := s.Validate(tok, []byte(`{"ref_id":"TXN1","code":"01"}`)); err == nil {
		t.Error("token accepted for a different body")
	}
	if _, err := NewJWTEventSigner("other", "paygate").Validate(tok, body); err == nil {
		t.Error("token accepted with the wrong secret")
	}
}
