package credential

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashers(t *testing.T) {
	for _, alg := range []string{AlgBcrypt, AlgArgon2id} {
		t.Run(alg, func(t *testing.T) {
			h, err := New(alg, 4)
			require.NoError(t, err)

			first, err := h.Hash("secret1")
			require.NoError(t, err)
			second, err := h.Hash("secret1")
			require.NoError(t, err)
			require.NotEqual(t, first, second, "salts must differ between calls")
			require.NotContains(t, first, "secret1")

			ok, err := h.Verify("secret1", first)
			require.NoError(t, err)
			require.True(t, ok)

			ok, err = h.Verify("secret2", second)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestAutoVerifiesEitherAlgorithm(t *testing.T) {
	old, err := New(AlgBcrypt, 4)
	require.NoError(t, err)
	cred, err := old.Hash("hunter22")
	require.NoError(t, err)

	current, err := New(AlgArgon2id, 0)
	require.NoError(t, err)
	ok, err := current.Verify("hunter22", cred)
	require.NoError(t, err)
	require.True(t, ok, "switching algorithms should not lock out existing credentials")
}

func TestMalformedInput(t *testing.T) {
	h, err := New(AlgBcrypt, 4)
	require.NoError(t, err)

	_, err = h.Hash("")
	require.ErrorIs(t, err, ErrEmptyPassword)

	ok, err := h.Verify("abc", "plaintext-credential")
	require.False(t, ok)
	var uf UnknownFormat
	if !errors.As(err, &uf) {
		t.Fatalf("expecting UnknownFormat got %v", err)
	}

	_, err = New("md5", 0)
	require.Equal(t, UnknownAlgorithm{Name: "md5"}, err)
}

func TestBcryptPasswordLimit(t *testing.T) {
	h, err := New(AlgBcrypt, 4)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("a", MaxBcryptPassword))
	require.NoError(t, err)

	long := strings.Repeat("a", MaxBcryptPassword+1)
	_, err = h.Hash(long)
	require.ErrorIs(t, err, ErrPasswordTooLong)
	require.True(t, Rejected(err))
	require.True(t, Rejected(fmt.Errorf("wrapped, cause %w", err)))
	require.False(t, Rejected(errors.New("disk on fire")))

	cred, err := h.Hash("secret1")
	require.NoError(t, err)
	ok, err := h.Verify(long, cred)
	require.NoError(t, err)
	require.False(t, ok)
}
