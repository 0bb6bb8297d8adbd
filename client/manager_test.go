package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andrebq/doorman/internal/testutil"
	"github.com/andrebq/doorman/notify"
	"github.com/stretchr/testify/require"
)

type (
	harness struct {
		svc          *testutil.Service
		server       *httptest.Server
		store        *MemoryStore
		manager      *Manager
		unauthorized int
	}
)

func acquireHarness(t *testing.T) *harness {
	svc, cleanup := testutil.AcquireService(context.Background(), t, testutil.ServiceOptions{})
	server := httptest.NewServer(svc.Handler)
	t.Cleanup(func() {
		server.Close()
		cleanup()
	})
	h := &harness{svc: svc, server: server, store: &MemoryStore{}}
	tr := NewTransport(server.URL+"/auth/", h.store)
	tr.OnUnauthorized = func() { h.unauthorized++ }
	h.manager = NewManager(tr)
	return h
}

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	h := acquireHarness(t)
	m := h.manager

	_, err := m.Register(ctx, "a@x.com", "weak")
	var invalid Invalid
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, "password", invalid.Field)

	msg, err := m.Register(ctx, "a@x.com", "Secret12")
	require.NoError(t, err)
	require.NotEmpty(t, msg)
	require.False(t, m.Authenticated())

	err = m.Login(ctx, "a@x.com", "Secret13")
	var rejected Rejected
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, http.StatusUnauthorized, rejected.Status)
	require.Equal(t, "Invalid email or password", rejected.Message)
	require.Equal(t, 1, h.unauthorized, "every 401 triggers the unauthorized hook")

	require.NoError(t, m.Login(ctx, "A@x.com", "Secret12"))
	user, found := m.User()
	require.True(t, found)
	require.Equal(t, "a@x.com", user.Email)
	require.False(t, user.EmailVerified)
	stored, found, _ := h.store.Load(ctx)
	require.True(t, found)
	require.NotEmpty(t, stored.Token)

	sent, _ := h.svc.Outbox.Last(notify.Verification, "a@x.com")
	require.NoError(t, m.VerifyEmail(ctx, sent.Payload))
	user, _ = m.User()
	require.True(t, user.EmailVerified)

	err = m.UpdateEmail(ctx, "A@X.com")
	require.True(t, errors.As(err, &invalid), "unchanged email is refused locally")
	err = m.UpdateEmail(ctx, "broken")
	require.True(t, errors.As(err, &invalid))

	require.NoError(t, m.UpdateEmail(ctx, "b@x.com"))
	user, _ = m.User()
	require.Equal(t, "b@x.com", user.Email)
	stored, _, _ = h.store.Load(ctx)
	require.Equal(t, "b@x.com", stored.User.Email)

	require.NoError(t, m.Logout(ctx))
	require.False(t, m.Authenticated())
	_, found, _ = h.store.Load(ctx)
	require.False(t, found)
	require.ErrorIs(t, m.UpdateEmail(ctx, "c@x.com"), ErrNotAuthenticated)
}

func TestStartValidatesStoredSession(t *testing.T) {
	ctx := context.Background()
	h := acquireHarness(t)
	acc, err := h.svc.Store.Create("a@x.com", "secret1")
	require.NoError(t, err)
	valid, err := h.svc.Codec.Issue(acc.ID, acc.Email, acc.TokenVersion)
	require.NoError(t, err)

	require.NoError(t, h.store.Save(ctx, Session{Token: valid}))
	require.NoError(t, h.manager.Start(ctx))
	user, found := h.manager.User()
	require.True(t, found)
	require.Equal(t, acc.ID, user.ID)

	h.svc.Clock.Advance(25 * time.Hour)
	fresh := NewManager(NewTransport(h.server.URL+"/auth", h.store))
	require.NoError(t, fresh.Start(ctx))
	require.False(t, fresh.Authenticated(), "expired tokens are discarded on start")
	_, found, _ = h.store.Load(ctx)
	require.False(t, found)
}

func TestUnauthorizedClearsSession(t *testing.T) {
	ctx := context.Background()
	h := acquireHarness(t)
	ghost, err := h.svc.Codec.Issue("ghost", "ghost@x.com", 0)
	require.NoError(t, err)
	require.NoError(t, h.store.Save(ctx, Session{Token: ghost, User: &User{ID: "ghost"}}))

	res := h.manager.transport.Do(ctx, http.MethodGet, "/me", nil)
	require.False(t, res.Success)
	require.Equal(t, http.StatusUnauthorized, res.Status)
	require.Equal(t, "Unauthorized", res.Error)
	require.Equal(t, "User not found", res.Message)
	require.Equal(t, 1, h.unauthorized)
	_, found, _ := h.store.Load(ctx)
	require.False(t, found)
}

func TestNetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	m := NewManager(NewTransport(url, &MemoryStore{}))
	err := m.Login(context.Background(), "a@x.com", "secret1")
	var rejected Rejected
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "Network error", rejected.Message)
}

func TestLocalValidation(t *testing.T) {
	ctx := context.Background()
	h := acquireHarness(t)
	m := h.manager

	_, err := m.ForgotPassword(ctx, "not-an-email")
	require.Equal(t, "email", err.(Invalid).Field)
	_, err = m.ResetPassword(ctx, "short", "secret1")
	require.Equal(t, "token", err.(Invalid).Field)
	_, err = m.ResetPassword(ctx, "0123456789", "12345")
	require.Equal(t, "password", err.(Invalid).Field)

	_, err = m.ResetPassword(ctx, "0123456789", "123456")
	var rejected Rejected
	require.True(t, errors.As(err, &rejected))
	require.Equal(t, "Invalid or expired reset token", rejected.Message)

	msg, err := m.ForgotPassword(ctx, "nobody@x.com")
	require.NoError(t, err)
	require.NotEmpty(t, msg)
}

func TestStrongPassword(t *testing.T) {
	for pw, ok := range map[string]bool{
		"Secret12":  true,
		"Se@cret12": true,
		"secret12":  false,
		"SECRET12":  false,
		"Secretss":  false,
		"Sec12":     false,
		"Secret 12": false,
	} {
		require.Equal(t, ok, StrongPassword(pw) == "", pw)
	}
}
