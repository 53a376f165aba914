package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// PurposePasswordReset marks tokens that only allow a password reset
const PurposePasswordReset = "password_reset"

// ErrInvalidToken hides why a token was rejected; callers only learn
// that it can't be used
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies stateless HS256 tokens carrying the
// user's email as subject
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// WithClock replaces the time source, for tests
func (t *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	t.now = now
	return t
}

func (t *TokenIssuer) TTL() time.Duration {
	return t.ttl
}

// Issue returns a session token for subject valid for the configured TTL
func (t *TokenIssuer) Issue(subject string) (string, error) {
	return t.IssueFor(subject, "", t.ttl)
}

// IssueFor returns a token restricted to purpose valid for ttl
func (t *TokenIssuer) IssueFor(subject, purpose string, ttl time.Duration) (string, error) {
	now := t.now()

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})

	s, err := tok.SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token, %w", err)
	}

	return s, nil
}

// Verify checks a session token and returns its subject
func (t *TokenIssuer) Verify(token string) (string, error) {
	return t.VerifyFor(token, "")
}

// VerifyFor checks signature, expiry and purpose of token and returns its
// subject. Every failure is reported as ErrInvalidToken.
func (t *TokenIssuer) VerifyFor(token, purpose string) (string, error) {
	var claims Claims

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w, %w", ErrInvalidToken, err)
	}

	if claims.Purpose != purpose || claims.Subject == "" {
		return "", ErrInvalidToken
	}

	return claims.Subject, nil
}
