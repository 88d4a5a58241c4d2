// Package captcha issues and redeems the arithmetic verification challenge shown on the profile form.
package captcha

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// DefaultTTL bounds how long an issued challenge can be redeemed.
	DefaultTTL = 15 * time.Minute

	minOperand = 1
	maxOperand = 10
)

var (
	// ErrInvalidToken is returned for tokens that fail signature or claim checks.
	ErrInvalidToken = errors.New("invalid verification token")
	// ErrAlreadyUsed is returned when a challenge has been redeemed before.
	ErrAlreadyUsed = errors.New("verification challenge already used")
)

// Challenge is a pair of operands plus the signed token that identifies them.
type Challenge struct {
	ID        string    `json:"id"`
	A         int       `json:"a"`
	B         int       `json:"b"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Question renders the challenge the way the form shows it.
func (c Challenge) Question() string {
	return fmt.Sprintf("%d + %d = ?", c.A, c.B)
}

type challengeClaims struct {
	A int `json:"a"`
	B int `json:"b"`
	jwt.RegisteredClaims
}

// Issuer signs challenges and remembers which ones were redeemed.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	intn   func(n int) int

	mu   sync.Mutex
	used map[string]time.Time // jti -> expiry
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// WithRand overrides the operand source; intn must return a value in [0, n).
func WithRand(intn func(n int) int) Option {
	return func(i *Issuer) { i.intn = intn }
}

// NewIssuer creates an Issuer signing with secret.
func NewIssuer(secret string, opts ...Option) (*Issuer, error) {
	if secret == "" {
		return nil, fmt.Errorf("captcha secret is required")
	}
	i := &Issuer{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
		intn:   rand.IntN,
		used:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Issue creates a fresh challenge with both operands in 1..10.
func (i *Issuer) Issue() (Challenge, error) {
	now := i.now()
	c := Challenge{
		ID:        uuid.New().String(),
		A:         minOperand + i.intn(maxOperand-minOperand+1),
		B:         minOperand + i.intn(maxOperand-minOperand+1),
		ExpiresAt: now.Add(i.ttl),
	}

	claims := challengeClaims{
		A: c.A,
		B: c.B,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        c.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(c.ExpiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return Challenge{}, fmt.Errorf("failed to sign challenge: %w", err)
	}
	c.Token = token

	i.prune(now)
	return c, nil
}

// Redeem verifies token and returns the expected answer. A challenge is
// consumed by its first redemption, so the same token never verifies twice
// regardless of whether the submitted answer was right.
func (i *Issuer) Redeem(token string) (int, error) {
	claims := &challengeClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.ID == "" {
		return 0, fmt.Errorf("%w: missing challenge id", ErrInvalidToken)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if _, seen := i.used[claims.ID]; seen {
		return 0, ErrAlreadyUsed
	}
	i.used[claims.ID] = claims.ExpiresAt.Time

	return claims.A + claims.B, nil
}

// prune forgets redeemed challenges whose tokens have expired anyway.
func (i *Issuer) prune(now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for id, exp := range i.used {
		if now.After(exp) {
			delete(i.used, id)
		}
	}
}
