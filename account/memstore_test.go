package account

import (
	"bytes"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andrebq/doorman/credential"
	"github.com/stretchr/testify/require"
)

type (
	clock struct {
		sync.Mutex
		t time.Time
	}
)

func (c *clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.Lock()
	c.t = c.t.Add(d)
	c.Unlock()
}

func acquireStore(t *testing.T, opts ...Option) (*MemStore, *clock) {
	clk := &clock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	s, err := NewMemStore(credential.Bcrypt{Cost: 4}, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Log("unable to close store", err)
		}
	})
	return s, clk
}

func TestCreate(t *testing.T) {
	s, _ := acquireStore(t)
	acc, err := s.Create("Alice@Example.com", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", acc.Email)
	require.False(t, acc.EmailVerified)
	require.NotEmpty(t, acc.ID)
	require.NotEqual(t, "secret1", acc.Credential)

	found, ok := s.FindByEmail("ALICE@example.COM")
	require.True(t, ok)
	require.Equal(t, acc, found)

	_, err = s.Create("alice@EXAMPLE.com", "other12")
	require.Equal(t, EmailTaken{Email: "alice@example.com"}, err)

	view := acc.Sanitize()
	require.Equal(t, "2024-03-01T10:00:00Z", view.CreatedAt)
}

func TestConcurrentCreate(t *testing.T) {
	s, _ := acquireStore(t)
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.Create("race@x.com", "secret1")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	var created int
	for err := range errs {
		if err == nil {
			created++
			continue
		}
		var taken EmailTaken
		if !errors.As(err, &taken) {
			t.Fatalf("unexpected error %v", err)
		}
	}
	require.Equal(t, 1, created)
}

func TestVerificationCode(t *testing.T) {
	s, clk := acquireStore(t)
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)

	code, err := s.CreateCode(acc.ID)
	require.NoError(t, err)
	require.Len(t, code, 6)
	require.True(t, code >= "100000" && code <= "999999")

	vc, found := s.FindCode(code)
	require.True(t, found)
	require.Equal(t, acc.ID, vc.AccountID)
	require.Equal(t, clk.Now().Add(DefaultCodeTTL), vc.ExpiresAt)

	clk.Advance(DefaultCodeTTL + time.Second)
	_, found = s.FindCode(code)
	require.False(t, found, "expired codes must not be found")
}

func TestCodeExpiresExactlyAtDeadline(t *testing.T) {
	s, clk := acquireStore(t)
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)
	code, err := s.CreateCode(acc.ID)
	require.NoError(t, err)

	clk.Advance(DefaultCodeTTL - time.Nanosecond)
	_, found := s.FindCode(code)
	require.True(t, found)
	clk.Advance(time.Nanosecond)
	_, found = s.FindCode(code)
	require.False(t, found)
}

func TestNewCodeReplacesOld(t *testing.T) {
	s, _ := acquireStore(t, WithRand(bytes.NewReader([]byte{0, 0, 0, 0, 0, 1})))
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)

	first, err := s.CreateCode(acc.ID)
	require.NoError(t, err)
	require.Equal(t, "100000", first)
	second, err := s.CreateCode(acc.ID)
	require.NoError(t, err)
	require.Equal(t, "100001", second)

	_, found := s.FindCode(first)
	require.False(t, found)
	_, found = s.FindCode(second)
	require.True(t, found)

	s.RemoveCode(second)
	_, found = s.FindCode(second)
	require.False(t, found, "codes are single use")
}

func TestLiveCodesAreUnique(t *testing.T) {
	s, _ := acquireStore(t, WithRand(bytes.NewReader([]byte{0, 0, 0, 0, 0, 0, 0, 0, 7})))
	a, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)
	b, err := s.Create("b@x.com", "secret1")
	require.NoError(t, err)

	ca, err := s.CreateCode(a.ID)
	require.NoError(t, err)
	cb, err := s.CreateCode(b.ID)
	require.NoError(t, err)
	require.Equal(t, "100000", ca)
	require.Equal(t, "100007", cb)

	vc, _ := s.FindCode(ca)
	require.Equal(t, a.ID, vc.AccountID)
	vc, _ = s.FindCode(cb)
	require.Equal(t, b.ID, vc.AccountID)
}

func TestPasswordResetToken(t *testing.T) {
	s, clk := acquireStore(t)
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)

	first, err := s.CreatePasswordResetToken(acc.ID)
	require.NoError(t, err)
	require.Len(t, first, 64)
	second, err := s.CreatePasswordResetToken(acc.ID)
	require.NoError(t, err)

	_, found := s.FindPasswordResetToken(first)
	require.False(t, found, "issuing a token must invalidate the previous one")

	clk.Advance(59 * time.Minute)
	rt, found := s.FindPasswordResetToken(second)
	require.True(t, found)
	require.Equal(t, acc.ID, rt.AccountID)

	clk.Advance(time.Minute)
	_, found = s.FindPasswordResetToken(second)
	require.False(t, found)

	third, err := s.CreatePasswordResetToken(acc.ID)
	require.NoError(t, err)
	s.RemovePasswordResetToken(third)
	_, found = s.FindPasswordResetToken(third)
	require.False(t, found)
}

func TestUpdateEmail(t *testing.T) {
	s, _ := acquireStore(t)
	a, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)
	b, err := s.Create("b@x.com", "secret1")
	require.NoError(t, err)

	same, err := s.UpdateEmail(a.ID, "A@x.com")
	require.NoError(t, err)
	require.Equal(t, a.TokenVersion, same.TokenVersion)

	_, err = s.UpdateEmail(a.ID, "B@X.com")
	require.Equal(t, EmailTaken{Email: "b@x.com"}, err)

	moved, err := s.UpdateEmail(a.ID, "c@x.com")
	require.NoError(t, err)
	require.Equal(t, "c@x.com", moved.Email)
	require.Equal(t, a.TokenVersion+1, moved.TokenVersion)

	_, found := s.FindByEmail("a@x.com")
	require.False(t, found)
	_, err = s.Create("a@x.com", "secret1")
	require.NoError(t, err, "released address can be reused")

	_, err = s.UpdateEmail("missing", "z@x.com")
	require.Equal(t, NotFound{ID: "missing"}, err)
	_ = b
}

func TestVerifyAndUpdatePassword(t *testing.T) {
	s, _ := acquireStore(t)
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)

	verified, ok := s.VerifyEmail(acc.ID)
	require.True(t, ok)
	require.True(t, verified.EmailVerified)

	updated, ok := s.UpdatePassword(acc.ID, "new-credential")
	require.True(t, ok)
	require.Equal(t, "new-credential", updated.Credential)
	require.Equal(t, 1, updated.TokenVersion)
	require.True(t, updated.EmailVerified)

	_, ok = s.VerifyEmail("missing")
	require.False(t, ok)
	_, ok = s.UpdatePassword("missing", "x")
	require.False(t, ok)
}

func TestDelete(t *testing.T) {
	s, _ := acquireStore(t)
	acc, err := s.Create("a@x.com", "secret1")
	require.NoError(t, err)
	code, err := s.CreateCode(acc.ID)
	require.NoError(t, err)
	reset, err := s.CreatePasswordResetToken(acc.ID)
	require.NoError(t, err)

	require.True(t, s.Delete(acc.ID))
	require.False(t, s.Delete(acc.ID))
	_, found := s.FindByID(acc.ID)
	require.False(t, found)
	_, found = s.FindCode(code)
	require.False(t, found)
	_, found = s.FindPasswordResetToken(reset)
	require.False(t, found)

	_, err = s.Create("A@x.com", "secret2")
	require.NoError(t, err, "the address must be free again")
}
