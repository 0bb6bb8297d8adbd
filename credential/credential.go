// Package credential turns plaintext passwords into one-way credentials
// and checks plaintext candidates against them.
package credential

import (
	"errors"
	"fmt"
	"strings"

	"github.com/matthewhartstonge/argon2"
	"golang.org/x/crypto/bcrypt"
)

type (
	// Hasher produces salted one-way credentials.
	//
	// Two calls to Hash with the same plaintext must never return the
	// same credential, while Verify must accept both.
	Hasher interface {
		Hash(plaintext string) (string, error)
		Verify(plaintext, credential string) (bool, error)
	}

	// Bcrypt hashes using bcrypt with the given Cost
	Bcrypt struct {
		Cost int
	}

	// Argon2id hashes using argon2id, the encoded form follows the
	// PHC string format ($argon2id$v=19$m=...,t=...,p=...$salt$hash)
	Argon2id struct {
		Config argon2.Config
	}

	// Auto hashes with Primary but verifies credentials created by any
	// of the known algorithms.
	Auto struct {
		Primary Hasher
		bcrypt  Bcrypt
		argon   Argon2id
	}

	UnknownFormat struct {
		Prefix string
	}

	UnknownAlgorithm struct {
		Name string
	}
)

const (
	DefaultBcryptCost = 10
	// MaxBcryptPassword is the longest password, in bytes, bcrypt accepts
	MaxBcryptPassword = 72

	AlgBcrypt   = "bcrypt"
	AlgArgon2id = "argon2id"
)

var (
	ErrEmptyPassword   = errors.New("credential: password cannot be empty")
	ErrPasswordTooLong = errors.New("credential: password is too long")
)

// Rejected reports whether err means the plaintext itself was refused
// by a Hasher, as opposed to an internal failure.
func Rejected(err error) bool {
	return errors.Is(err, ErrEmptyPassword) || errors.Is(err, ErrPasswordTooLong)
}

func (u UnknownFormat) Error() string {
	return fmt.Sprintf("credential: unknown credential format %q", u.Prefix)
}

func (u UnknownAlgorithm) Error() string {
	return fmt.Sprintf("credential: unknown hash algorithm %q", u.Name)
}

// New returns an Auto hasher whose primary algorithm is alg.
// cost is only used by bcrypt, zero means DefaultBcryptCost.
func New(alg string, cost int) (*Auto, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	a := &Auto{
		bcrypt: Bcrypt{Cost: cost},
		argon:  Argon2id{Config: argon2.DefaultConfig()},
	}
	switch strings.ToLower(alg) {
	case "", AlgBcrypt:
		a.Primary = a.bcrypt
	case AlgArgon2id:
		a.Primary = a.argon
	default:
		return nil, UnknownAlgorithm{Name: alg}
	}
	return a, nil
}

func (b Bcrypt) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	if len(plaintext) > MaxBcryptPassword {
		return "", ErrPasswordTooLong
	}
	cost := b.Cost
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	buf, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("credential: unable to hash with bcrypt, cause %w", err)
	}
	return string(buf), nil
}

func (b Bcrypt) Verify(plaintext, credential string) (bool, error) {
	if len(plaintext) > MaxBcryptPassword {
		// Hash never produces a credential for such input
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(credential), []byte(plaintext))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("credential: unable to verify bcrypt credential, cause %w", err)
	}
}

func (a Argon2id) Hash(plaintext string) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPassword
	}
	cfg := a.Config
	if cfg.HashLength == 0 {
		cfg = argon2.DefaultConfig()
	}
	buf, err := cfg.HashEncoded([]byte(plaintext))
	if err != nil {
		return "", fmt.Errorf("credential: unable to hash with argon2id, cause %w", err)
	}
	return string(buf), nil
}

func (a Argon2id) Verify(plaintext, credential string) (bool, error) {
	ok, err := argon2.VerifyEncoded([]byte(plaintext), []byte(credential))
	if err != nil {
		return false, fmt.Errorf("credential: unable to verify argon2 credential, cause %w", err)
	}
	return ok, nil
}

func (a *Auto) Hash(plaintext string) (string, error) {
	return a.Primary.Hash(plaintext)
}

func (a *Auto) Verify(plaintext, credential string) (bool, error) {
	switch {
	case strings.HasPrefix(credential, "$2a$"),
		strings.HasPrefix(credential, "$2b$"),
		strings.HasPrefix(credential, "$2y$"):
		return a.bcrypt.Verify(plaintext, credential)
	case strings.HasPrefix(credential, "$argon2"):
		return a.argon.Verify(plaintext, credential)
	}
	prefix := credential
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return false, UnknownFormat{Prefix: prefix}
}
