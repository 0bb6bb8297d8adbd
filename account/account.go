// Package account keeps user accounts together with their pending email
// verification codes and password reset tokens.
package account

import (
	"fmt"
	"time"
)

type (
	Account struct {
		ID            string
		Email         string
		Credential    string
		EmailVerified bool
		CreatedAt     time.Time
		// TokenVersion changes every time the password or the email
		// changes, tokens carrying an older version can be rejected.
		TokenVersion int
	}

	VerificationCode struct {
		AccountID string
		Code      string
		ExpiresAt time.Time
	}

	PasswordResetToken struct {
		AccountID string
		Token     string
		ExpiresAt time.Time
	}

	// View is the only representation of an account that leaves the process
	View struct {
		ID            string `json:"id"`
		Email         string `json:"email"`
		EmailVerified bool   `json:"emailVerified"`
		CreatedAt     string `json:"createdAt"`
	}

	// Store is implemented by every account backend.
	//
	// Lookups of codes and reset tokens only return entries whose
	// expiration is strictly after the current time.
	Store interface {
		FindByEmail(email string) (Account, bool)
		FindByID(id string) (Account, bool)
		Create(email, password string) (Account, error)
		Delete(id string) bool
		VerifyEmail(id string) (Account, bool)
		UpdatePassword(id, credential string) (Account, bool)
		UpdateEmail(id, email string) (Account, error)

		CreateCode(id string) (string, error)
		FindCode(code string) (VerificationCode, bool)
		RemoveCode(code string)

		CreatePasswordResetToken(id string) (string, error)
		FindPasswordResetToken(token string) (PasswordResetToken, bool)
		RemovePasswordResetToken(token string)
	}

	EmailTaken struct {
		Email string
	}

	NotFound struct {
		ID string
	}
)

const (
	DefaultCodeTTL  = 10 * time.Minute
	DefaultResetTTL = time.Hour
)

func (e EmailTaken) Error() string {
	return fmt.Sprintf("account: email %v is already in use", e.Email)
}

func (n NotFound) Error() string {
	return fmt.Sprintf("account: %v not found", n.ID)
}

// Sanitize drops the credential and internal bookkeeping
func (a Account) Sanitize() View {
	return View{
		ID:            a.ID,
		Email:         a.Email,
		EmailVerified: a.EmailVerified,
		CreatedAt:     a.CreatedAt.UTC().Format(time.RFC3339),
	}
}
