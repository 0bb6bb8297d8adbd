// Package token issues and verifies the signed session tokens handed to
// clients after login or email verification.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type (
	// Claims carried by every session token
	Claims struct {
		UserID  string `json:"userId"`
		Email   string `json:"email"`
		Version int    `json:"ver"`
		jwt.RegisteredClaims
	}

	// Codec signs tokens with a process-wide HMAC secret.
	Codec struct {
		secret []byte
		ttl    time.Duration
		issuer string
		now    func() time.Time
	}

	Option func(*Codec)

	// Invalid is returned by Verify for any token that cannot be trusted
	Invalid struct {
		Cause error
	}
)

const (
	DefaultTTL    = 24 * time.Hour
	DefaultIssuer = "doorman"
)

var (
	ErrEmptySecret = errors.New("token: secret cannot be empty")
)

func (i Invalid) Error() string {
	return fmt.Sprintf("token: invalid or expired token, cause %v", i.Cause)
}

func (i Invalid) Unwrap() error { return i.Cause }

func (i Invalid) Is(target error) bool {
	_, ok := target.(Invalid)
	return ok
}

// WithTTL changes how long issued tokens remain valid
func WithTTL(ttl time.Duration) Option {
	return func(c *Codec) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now for both issuing and verification
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

func WithIssuer(iss string) Option {
	return func(c *Codec) {
		c.issuer = iss
	}
}

func NewCodec(secret []byte, opts ...Option) (*Codec, error) {
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	c := &Codec{
		secret: append([]byte(nil), secret...),
		ttl:    DefaultTTL,
		issuer: DefaultIssuer,
		now:    time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c, nil
}

// Issue returns a signed token for the given account. version is
// compared against the account token version when revocation is enabled.
func (c *Codec) Issue(accountID, email string, version int) (string, error) {
	now := c.now()
	claims := Claims{
		UserID:  accountID,
		Email:   email,
		Version: version,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    c.issuer,
			Subject:   accountID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("token: unable to sign token, cause %w", err)
	}
	return signed, nil
}

// Verify checks signature, algorithm, issuer and expiry. Every failure is
// reported as Invalid.
func (c *Codec) Verify(tk string) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(tk, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return c.secret, nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(c.issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, Invalid{Cause: err}
	}
	if !parsed.Valid || claims.UserID == "" {
		return nil, Invalid{Cause: errors.New("missing subject")}
	}
	return &claims, nil
}
