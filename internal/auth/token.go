package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/sentra-id/sentra/internal/shared"
)

const tokenIssuer = "sentra"

// Claims is the signed payload of a bearer token. Validity is proven solely
// by signature and expiration; no server-side session backs it.
type Claims struct {
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Email       string `json:"email,omitempty"`
	ActiveGroup string `json:"activeGroup,omitempty"`
	Roles       []Role `json:"roles"`
	jwt.RegisteredClaims
}

// Username returns the subject claim.
func (c *Claims) Username() string {
	return c.Subject
}

// RoleSet returns the role claims as a set.
func (c *Claims) RoleSet() RoleSet {
	return NewRoleSet(c.Roles...)
}

// Principal rebuilds a principal-shaped value from the claims. Store-backed
// fields (ID, hash, lockout counters) are zero: the token path never touches
// the credential store.
func (c *Claims) Principal() *Principal {
	return &Principal{
		Username:  c.Subject,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Roles:     append([]Role(nil), c.Roles...),
		Active:    true,
	}
}

// Codec signs and verifies bearer tokens with a shared HS256 secret.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec constructs a Codec. The secret must be shared across every service
// instance that verifies tokens issued by any instance.
func NewCodec(secret string, ttl time.Duration) (*Codec, error) {
	if secret == "" {
		return nil, errors.New("auth: token secret is required")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: token ttl must be positive")
	}
	return &Codec{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// TTL returns the configured token lifetime.
func (c *Codec) TTL() time.Duration {
	return c.ttl
}

// Encode builds and signs a token for the principal.
func (c *Codec) Encode(p *Principal, activeGroup string) (string, error) {
	if p == nil || p.Username == "" {
		return "", errors.New("auth: principal username is required")
	}
	now := c.now().UTC()
	claims := Claims{
		FirstName:   p.FirstName,
		LastName:    p.LastName,
		Email:       p.Email,
		ActiveGroup: activeGroup,
		Roles:       append([]Role(nil), p.Roles...),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   p.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("auth: sign token: %w", err)
	}
	return signed, nil
}

// Decode verifies signature and expiration and returns the claims. Every
// failure mode collapses into shared.ErrInvalidToken.
func (c *Codec) Decode(raw string) (*Claims, error) {
	if raw == "" {
		return nil, shared.ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(raw, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, shared.ErrInvalidToken
		}
		return c.secret, nil
	}, jwt.WithTimeFunc(func() time.Time { return c.now() }))
	if err != nil {
		return nil, shared.ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, shared.ErrInvalidToken
	}
	return claims, nil
}
