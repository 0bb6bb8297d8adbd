// Package client keeps track of the session of a single user and talks to
// the account api on its behalf.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/andrebq/doorman/internal/logutil"
)

type (
	// Manager mirrors the server session on the client side.
	//
	// The session is restored from the Store by Start and kept in sync
	// with it afterwards.
	Manager struct {
		mu        sync.RWMutex
		session   *Session
		transport *Transport
		store     Store
	}

	// Rejected is returned when the server refuses an operation
	Rejected struct {
		Status  int
		Message string
	}

	// Invalid is returned when input is refused before reaching the server
	Invalid struct {
		Field  string
		Reason string
	}
)

const (
	minResetTokenLength  = 10
	minPasswordLength    = 6
	minStrongPasswordLen = 8
)

var (
	ErrNotAuthenticated = errors.New("client: not authenticated")

	emailRE           = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	passwordCharsetRE = regexp.MustCompile(`^[a-zA-Z\d@$!%*?&]+$`)
)

func (r Rejected) Error() string {
	return fmt.Sprintf("client: request rejected (%v): %v", r.Status, r.Message)
}

func (i Invalid) Error() string {
	return fmt.Sprintf("client: invalid %v: %v", i.Field, i.Reason)
}

func NewManager(t *Transport) *Manager {
	m := &Manager{transport: t, store: t.Store}
	hook := t.OnUnauthorized
	t.OnUnauthorized = func() {
		m.forget()
		if hook != nil {
			hook()
		}
	}
	return m
}

// Start restores the stored session and validates it against the server.
// Any failure leaves the manager unauthenticated.
func (m *Manager) Start(ctx context.Context) error {
	stored, found, err := m.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("client: unable to load session, cause %w", err)
	}
	if !found || stored.Token == "" {
		return nil
	}
	res := m.transport.Do(ctx, http.MethodGet, "/me", nil)
	var user User
	if !res.Success || json.Unmarshal(res.Data, &user) != nil {
		log := logutil.GetOrDefault(ctx)
		log.Info().Int("status", res.Status).Msg("Stored session is no longer valid")
		m.forget()
		return m.store.Clear(ctx)
	}
	stored.User = &user
	return m.remember(ctx, stored)
}

func (m *Manager) Login(ctx context.Context, email, password string) error {
	res := m.transport.Do(ctx, http.MethodPost, "/login", map[string]string{"email": email, "password": password})
	return m.acceptSession(ctx, res)
}

// Register creates the account, a verification code is sent by email
func (m *Manager) Register(ctx context.Context, email, password string) (string, error) {
	if !ValidEmail(email) {
		return "", Invalid{Field: "email", Reason: "malformed email address"}
	}
	if reason := StrongPassword(password); reason != "" {
		return "", Invalid{Field: "password", Reason: reason}
	}
	res := m.transport.Do(ctx, http.MethodPost, "/register", map[string]string{"email": email, "password": password})
	if !res.Success {
		return "", rejected(res)
	}
	return res.Message, nil
}

func (m *Manager) VerifyEmail(ctx context.Context, code string) error {
	if strings.TrimSpace(code) == "" {
		return Invalid{Field: "code", Reason: "cannot be empty"}
	}
	res := m.transport.Do(ctx, http.MethodPost, "/verify-email", map[string]string{"code": code})
	return m.acceptSession(ctx, res)
}

func (m *Manager) ForgotPassword(ctx context.Context, email string) (string, error) {
	if !ValidEmail(email) {
		return "", Invalid{Field: "email", Reason: "malformed email address"}
	}
	res := m.transport.Do(ctx, http.MethodPost, "/forgot-password", map[string]string{"email": email})
	if !res.Success {
		return "", rejected(res)
	}
	return res.Message, nil
}

func (m *Manager) ResetPassword(ctx context.Context, token, newPassword string) (string, error) {
	if len(token) < minResetTokenLength {
		return "", Invalid{Field: "token", Reason: "invalid reset token"}
	}
	if utf8.RuneCountInString(newPassword) < minPasswordLength {
		return "", Invalid{Field: "password", Reason: fmt.Sprintf("must be at least %v characters long", minPasswordLength)}
	}
	res := m.transport.Do(ctx, http.MethodPost, "/reset-password", map[string]string{"token": token, "newPassword": newPassword})
	if !res.Success {
		return "", rejected(res)
	}
	return res.Message, nil
}

// UpdateEmail changes the address of the current account and refreshes
// the cached user.
func (m *Manager) UpdateEmail(ctx context.Context, newEmail string) error {
	user, found := m.User()
	if !found {
		return ErrNotAuthenticated
	}
	if !ValidEmail(newEmail) {
		return Invalid{Field: "email", Reason: "malformed email address"}
	}
	if strings.EqualFold(newEmail, user.Email) {
		return Invalid{Field: "email", Reason: "new email must be different from the current one"}
	}
	res := m.transport.Do(ctx, http.MethodPut, "/update-email", map[string]string{"newEmail": newEmail})
	if !res.Success {
		return rejected(res)
	}
	var renewed Session
	if err := json.Unmarshal(res.Data, &renewed); err != nil || renewed.User == nil {
		u := user
		u.Email = strings.ToLower(newEmail)
		renewed.User = &u
	}
	if renewed.Token == "" {
		renewed.Token = m.token()
	}
	return m.remember(ctx, renewed)
}

// Logout discards the session locally, the server is not involved.
func (m *Manager) Logout(ctx context.Context) error {
	m.forget()
	return m.store.Clear(ctx)
}

func (m *Manager) User() (User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil || m.session.User == nil {
		return User{}, false
	}
	return *m.session.User, true
}

func (m *Manager) token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ""
	}
	return m.session.Token
}

func (m *Manager) Authenticated() bool {
	_, ok := m.User()
	return ok
}

func (m *Manager) acceptSession(ctx context.Context, res Response) error {
	if !res.Success {
		return rejected(res)
	}
	var s Session
	if err := json.Unmarshal(res.Data, &s); err != nil {
		return fmt.Errorf("client: unable to decode session, cause %w", err)
	}
	if s.Token == "" || s.User == nil {
		return errors.New("client: server returned an empty session")
	}
	return m.remember(ctx, s)
}

func (m *Manager) remember(ctx context.Context, s Session) error {
	m.mu.Lock()
	m.session = &s
	m.mu.Unlock()
	if err := m.store.Save(ctx, s); err != nil {
		return fmt.Errorf("client: unable to save session, cause %w", err)
	}
	return nil
}

func (m *Manager) forget() {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()
}

func rejected(res Response) error {
	msg := res.Message
	if msg == "" {
		msg = res.Error
	}
	return Rejected{Status: res.Status, Message: msg}
}

// ValidEmail applies the same format rule as the server
func ValidEmail(addr string) bool {
	return emailRE.MatchString(addr)
}

// StrongPassword returns why password is not acceptable for a new
// account, or an empty string.
func StrongPassword(password string) string {
	if len(password) < minStrongPasswordLen {
		return fmt.Sprintf("must be at least %v characters long", minStrongPasswordLen)
	}
	if !passwordCharsetRE.MatchString(password) {
		return "may only contain letters, digits and @$!%*?&"
	}
	var lower, upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsLower(r):
			lower = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !lower || !upper || !digit {
		return "must contain an uppercase letter, a lowercase letter and a digit"
	}
	return ""
}
