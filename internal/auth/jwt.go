package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const eventTokenTTL = 5 * time.Minute

// JWTEventSigner signs forwarded events with HS256. The token binds the SHA-256 of the
// request body so a receiver can detect tampering.
type JWTEventSigner struct {
	secret string
	iss    string
	now    func() time.Time
}

func NewJWTEventSigner(secret, iss string) *JWTEventSigner {
	return &JWTEventSigner{secret: secret, iss: iss, now: time.Now}
}

func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

func (s *JWTEventSigner) Sign(subject, id string, body []byte) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"sub":         subject,
		"jti":         id,
		"iss":         s.iss,
		"iat":         now.Unix(),
		"nbf":         now.Unix(),
		"exp":         now.Add(eventTokenTTL).Unix(),
		"body_sha256": bodyDigest(body),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Validate parses token and checks it was issued for body.
func (s *JWTEventSigner) Validate(token string, body []byte) (*jwt.Token, error) {
	t, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.secret), nil
	}, jwt.WithExpirationRequired(), jwt.WithIssuer(s.iss), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return nil, err
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok || claims["body_sha256"] != bodyDigest(body) {
		return nil, errors.New("event body does not match token")
	}
	return t, nil
}
