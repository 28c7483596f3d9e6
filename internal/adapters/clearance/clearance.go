// Package clearance issues and verifies tokens granted after a solved challenge.
package clearance

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	audience       = "trust-clearance"
	minSecretBytes = 16
)

var (
	ErrWeakSecret   = errors.New("clearance secret must be at least 16 bytes")
	ErrInvalidToken = errors.New("invalid clearance token")
)

// Issuer signs HS256 tokens that let an identity skip challenges until the
// token expires. Tokens never override a hard block.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewIssuer(secret []byte, ttl time.Duration) (*Issuer, error) {
	if len(secret) < minSecretBytes {
		return nil, ErrWeakSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("clearance ttl must be positive")
	}
	return &Issuer{secret: secret, ttl: ttl, now: time.Now}, nil
}

type Grant struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

func (i *Issuer) Issue(identity string) (Grant, error) {
	issuedAt := i.now()
	expiresAt := issuedAt.Add(i.ttl)
	id := uuid.NewString()

	claims := jwt.RegisteredClaims{
		Subject:   identity,
		Audience:  jwt.ClaimStrings{audience},
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Grant{}, fmt.Errorf("sign clearance: %w", err)
	}
	return Grant{Token: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// Verify checks the signature, expiry, audience and that the token was
// issued to identity.
func (i *Issuer) Verify(token, identity string) error {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject != identity {
		return fmt.Errorf("%w: issued to a different identity", ErrInvalidToken)
	}
	return nil
}
