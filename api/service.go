// Package api exposes account operations as a JSON REST service.
package api

import (
	"context"
	"errors"
	"net/http"
	"unicode/utf8"

	"github.com/andrebq/doorman/account"
	"github.com/andrebq/doorman/credential"
	"github.com/andrebq/doorman/internal/logutil"
	"github.com/andrebq/doorman/notify"
	"github.com/andrebq/doorman/token"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/hlog"
)

type (
	Service struct {
		store    account.Store
		hasher   credential.Hasher
		codec    *token.Codec
		notifier notify.Notifier
		validate *validator.Validate
	}

	credentialsRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	verifyEmailRequest struct {
		Code string `json:"code" validate:"required"`
	}

	forgotPasswordRequest struct {
		Email string `json:"email" validate:"required"`
	}

	resetPasswordRequest struct {
		Token       string `json:"token" validate:"required"`
		NewPassword string `json:"newPassword" validate:"required"`
	}

	updateEmailRequest struct {
		NewEmail string `json:"newEmail" validate:"required,mailbox"`
	}
)

const (
	MinPasswordLength = 6

	msgRegistered         = "User registered successfully. Please check your email for verification code."
	msgForgotPassword     = "If an account with that email exists, a password reset link has been sent."
	msgPasswordReset      = "Password has been reset successfully"
	msgEmailVerified      = "Email verified successfully"
	msgEmailUpdated       = "Email updated successfully"
	msgInvalidLogin       = "Invalid email or password"
	msgCredentialsMissing = "Email and password are required"
	msgEmailTaken         = "User with this email already exists"
	msgEmailInUse         = "Email is already in use"
	msgCodeMissing        = "Verification code is required"
	msgCodeInvalid        = "Invalid or expired verification code"
	msgEmailMissing       = "Email is required"
	msgResetMissing       = "Token and new password are required"
	msgPasswordTooShort   = "Password must be at least 6 characters long"
	msgPasswordTooLong    = "Password must be at most 72 bytes long"
	msgResetInvalid       = "Invalid or expired reset token"
	msgNewEmailMissing    = "New email is required"
	msgNewEmailMalformed  = "Invalid email format"
	msgNotAuthenticated   = "User not authenticated"
)

func NewService(store account.Store, hasher credential.Hasher, codec *token.Codec, notifier notify.Notifier) *Service {
	return &Service{
		store:    store,
		hasher:   hasher,
		codec:    codec,
		notifier: notifier,
		validate: newValidator(),
	}
}

// notifyCtx carries the request logger but not its cancellation
func notifyCtx(r *http.Request) context.Context {
	return logutil.WithLogger(context.Background(), *hlog.FromRequest(r))
}

func (s *Service) issue(w http.ResponseWriter, r *http.Request, acc account.Account) (Session, bool) {
	tk, err := s.codec.Issue(acc.ID, acc.Email, acc.TokenVersion)
	if err != nil {
		internalError(w, r, err, "Unable to issue token")
		return Session{}, false
	}
	return Session{Token: tk, User: acc.Sanitize()}, true
}

// passwordRejected answers 400 when err means the hasher refused the
// plaintext, returns false for any other error.
func passwordRejected(w http.ResponseWriter, r *http.Request, err error) bool {
	switch {
	case errors.Is(err, credential.ErrPasswordTooLong):
		fail(w, r, http.StatusBadRequest, msgPasswordTooLong)
	case credential.Rejected(err):
		fail(w, r, http.StatusBadRequest, msgCredentialsMissing)
	default:
		return false
	}
	return true
}

// register creates the account and issues its first verification code.
// The account is removed again when no code can be issued, so the client
// may retry with the same email.
func (s *Service) register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, msgCredentialsMissing)
		return
	}
	if _, found := s.store.FindByEmail(req.Email); found {
		fail(w, r, http.StatusConflict, msgEmailTaken)
		return
	}
	acc, err := s.store.Create(req.Email, req.Password)
	var taken account.EmailTaken
	if errors.As(err, &taken) {
		fail(w, r, http.StatusConflict, msgEmailTaken)
		return
	} else if passwordRejected(w, r, err) {
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to create account")
		return
	}
	log := hlog.FromRequest(r).With().Str("account", acc.ID).Logger()
	code, err := s.store.CreateCode(acc.ID)
	if err != nil {
		s.store.Delete(acc.ID)
		internalError(w, r, err, "Unable to create verification code")
		return
	}
	if !s.notifier.Send(notifyCtx(r), notify.Verification, acc.Email, code) {
		log.Warn().Msg("Verification code was not delivered")
	}
	log.Info().Msg("Account registered")
	ok(w, r, http.StatusCreated, msgRegistered, nil)
}

func (s *Service) login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, msgCredentialsMissing)
		return
	}
	acc, found := s.store.FindByEmail(req.Email)
	if !found {
		fail(w, r, http.StatusUnauthorized, msgInvalidLogin)
		return
	}
	match, err := s.hasher.Verify(req.Password, acc.Credential)
	if err != nil {
		internalError(w, r, err, "Unable to verify credential")
		return
	}
	if !match {
		fail(w, r, http.StatusUnauthorized, msgInvalidLogin)
		return
	}
	session, issued := s.issue(w, r, acc)
	if !issued {
		return
	}
	ok(w, r, http.StatusOK, "", session)
}

func (s *Service) verifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, msgCodeMissing)
		return
	}
	code, found := s.store.FindCode(req.Code)
	if !found {
		fail(w, r, http.StatusBadRequest, msgCodeInvalid)
		return
	}
	acc, found := s.store.VerifyEmail(code.AccountID)
	if !found {
		fail(w, r, http.StatusBadRequest, msgUserNotFound)
		return
	}
	s.store.RemoveCode(code.Code)
	session, issued := s.issue(w, r, acc)
	if !issued {
		return
	}
	ok(w, r, http.StatusOK, msgEmailVerified, session)
}

// forgotPassword answers the same way whether or not the account exists
func (s *Service) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, msgEmailMissing)
		return
	}
	if acc, found := s.store.FindByEmail(req.Email); found {
		log := hlog.FromRequest(r).With().Str("account", acc.ID).Logger()
		tk, err := s.store.CreatePasswordResetToken(acc.ID)
		if err != nil {
			log.Error().Err(err).Msg("Unable to create password reset token")
		} else if !s.notifier.Send(notifyCtx(r), notify.PasswordReset, acc.Email, tk) {
			log.Warn().Msg("Password reset token was not delivered")
		}
	}
	ok(w, r, http.StatusOK, msgForgotPassword, nil)
}

func (s *Service) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		fail(w, r, http.StatusBadRequest, msgResetMissing)
		return
	}
	if utf8.RuneCountInString(req.NewPassword) < MinPasswordLength {
		fail(w, r, http.StatusBadRequest, msgPasswordTooShort)
		return
	}
	rt, found := s.store.FindPasswordResetToken(req.Token)
	if !found {
		fail(w, r, http.StatusBadRequest, msgResetInvalid)
		return
	}
	if _, found := s.store.FindByID(rt.AccountID); !found {
		fail(w, r, http.StatusBadRequest, msgUserNotFound)
		return
	}
	cred, err := s.hasher.Hash(req.NewPassword)
	if passwordRejected(w, r, err) {
		return
	} else if err != nil {
		internalError(w, r, err, "Unable to hash password")
		return
	}
	if _, found := s.store.UpdatePassword(rt.AccountID, cred); !found {
		fail(w, r, http.StatusBadRequest, msgUserNotFound)
		return
	}
	s.store.RemovePasswordResetToken(rt.Token)
	hlog.FromRequest(r).Info().Str("account", rt.AccountID).Msg("Password reset")
	ok(w, r, http.StatusOK, msgPasswordReset, nil)
}

func (s *Service) me(w http.ResponseWriter, r *http.Request) {
	acc, found := AccountFromContext(r.Context())
	if !found {
		fail(w, r, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	ok(w, r, http.StatusOK, "", acc.Sanitize())
}

func (s *Service) updateEmail(w http.ResponseWriter, r *http.Request) {
	acc, found := AccountFromContext(r.Context())
	if !found {
		fail(w, r, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}
	var req updateEmailRequest
	if err := decode(r, w, &req); err != nil {
		fail(w, r, http.StatusBadRequest, msgInvalidPayload)
		return
	}
	if err := s.validate.Struct(req); err != nil {
		if failedTag(err) == "mailbox" {
			fail(w, r, http.StatusBadRequest, msgNewEmailMalformed)
		} else {
			fail(w, r, http.StatusBadRequest, msgNewEmailMissing)
		}
		return
	}
	updated, err := s.store.UpdateEmail(acc.ID, req.NewEmail)
	var (
		taken    account.EmailTaken
		notFound account.NotFound
	)
	switch {
	case errors.As(err, &taken):
		fail(w, r, http.StatusConflict, msgEmailInUse)
		return
	case errors.As(err, &notFound):
		fail(w, r, http.StatusUnauthorized, msgUserNotFound)
		return
	case err != nil:
		internalError(w, r, err, "Unable to update email")
		return
	}
	session, issued := s.issue(w, r, updated)
	if !issued {
		return
	}
	ok(w, r, http.StatusOK, msgEmailUpdated, session)
}
