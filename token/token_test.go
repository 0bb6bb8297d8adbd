package token

import (
	"bytes"
	"encoding/base64"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func fixedClock(t *time.Time) func() time.Time {
	return func() time.Time { return *t }
}

func TestRoundTrip(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCodec([]byte("s3cr3t"), WithClock(fixedClock(&now)))
	require.NoError(t, err)

	tk, err := c.Issue("id-1", "a@x.com", 3)
	require.NoError(t, err)

	claims, err := c.Verify(tk)
	require.NoError(t, err)
	require.Equal(t, "id-1", claims.UserID)
	require.Equal(t, "a@x.com", claims.Email)
	require.Equal(t, 3, claims.Version)
	require.Equal(t, now.Add(DefaultTTL).Unix(), claims.ExpiresAt.Unix())
}

func TestExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCodec([]byte("s3cr3t"), WithClock(fixedClock(&now)))
	require.NoError(t, err)
	tk, err := c.Issue("id-1", "a@x.com", 0)
	require.NoError(t, err)

	now = now.Add(DefaultTTL - time.Second)
	_, err = c.Verify(tk)
	require.NoError(t, err)

	now = now.Add(2 * time.Second)
	_, err = c.Verify(tk)
	require.ErrorIs(t, err, Invalid{})
	require.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func TestRejects(t *testing.T) {
	c, err := NewCodec([]byte("s3cr3t"))
	require.NoError(t, err)
	other, err := NewCodec([]byte("another"))
	require.NoError(t, err)

	tk, err := c.Issue("id-1", "a@x.com", 0)
	require.NoError(t, err)
	foreign, err := other.Issue("id-1", "a@x.com", 0)
	require.NoError(t, err)

	parts := strings.Split(tk, ".")
	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "id-2"}).SignedString([]byte("s3cr3t"))
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "id-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	for name, candidate := range map[string]string{
		"tampered payload": parts[0] + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"userId":"id-2"}`)) + "." + parts[2],
		"wrong secret":     foreign,
		"malformed":        "not-a-token",
		"empty":            "",
		"no expiry":        forged,
		"alg none":         none,
	} {
		_, err := c.Verify(candidate)
		if !errors.Is(err, Invalid{}) {
			t.Fatalf("%v: expecting Invalid got %v", name, err)
		}
	}
}

func TestSecretFromEnv(t *testing.T) {
	env := map[string]string{SecretEnvVar: "from-env"}
	get := func(k string) string { return env[k] }
	set := func(k, v string) error { env[k] = v; return nil }

	secret := SecretFromEnv(zerolog.Nop(), SecretEnvVar, get, set)
	require.Equal(t, []byte("from-env"), secret)
	if env[SecretEnvVar] != "" {
		t.Fatal("reading the secret should remove it from the environment")
	}

	secret = SecretFromEnv(zerolog.Nop(), SecretEnvVar, get, set)
	require.Equal(t, []byte(DevelopmentSecret), secret)
}

func TestGenerateSecret(t *testing.T) {
	s, err := GenerateSecret(bytes.NewReader(make([]byte, 32)))
	require.NoError(t, err)
	require.Equal(t, base64.StdEncoding.EncodeToString(make([]byte, 32)), s)

	_, err = GenerateSecret(bytes.NewReader(nil))
	require.Error(t, err)
}
