package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"sync/atomic"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// TokenChecker decides whether a presented API token is valid.
type TokenChecker interface {
	Check(presented string) bool
}

// Signer produces the bearer token attached to forwarded merchant events.
type Signer interface {
	Sign(subject, id string, body []byte) (string, error)
	Validate(token string, body []byte) (*jwt.Token, error)
}

// StaticTokenAuthenticator checks the single merchant API token. When a bcrypt hash is
// configured the plain token is never held in memory; only the SHA-256 digest of the first
// token that matched the hash is kept, so bcrypt runs once rather than on every request.
type StaticTokenAuthenticator struct {
	token    string
	hash     []byte
	verified atomic.Pointer[[sha256.Size]byte]
}

func NewStaticTokenAuthenticator(token, bcryptHash string) (*StaticTokenAuthenticator, error) {
	if token == "" && bcryptHash == "" {
		return nil, errors.New("an api token or api token hash is required")
	}
	a := &StaticTokenAuthenticator{token: token}
	if bcryptHash != "" {
		if _, err := bcrypt.Cost([]byte(bcryptHash)); err != nil {
			return nil, err
		}
		a.hash = []byte(bcryptHash)
		a.token = ""
	}
	return a, nil
}

func (a *StaticTokenAuthenticator) Check(presented string) bool {
	if presented == "" {
		return false
	}
	if a.hash != nil {
		digest := sha256.Sum256([]byte(presented))
		if v := a.verified.Load(); v != nil {
			return subtle.ConstantTimeCompare(v[:], digest[:]) == 1
		}
		if bcrypt.CompareHashAndPassword(a.hash, []byte(presented)) != nil {
			return false
		}
		a.verified.Store(&digest)
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.token), []byte(presented)) == 1
}
