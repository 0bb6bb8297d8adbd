package account

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/andrebq/doorman/credential"
	"github.com/google/uuid"
)

type (
	// MemStore keeps every account in memory, state is lost when the
	// process exits.
	MemStore struct {
		mu      sync.RWMutex
		byID    map[string]*Account
		byEmail map[string]string

		hasher credential.Hasher
		now    func() time.Time
		rand   io.Reader

		codeTTL  time.Duration
		resetTTL time.Duration
		sweep    time.Duration

		codes  *ticketBox
		resets *ticketBox
	}

	Option func(*MemStore)
)

var (
	codeRange = big.NewInt(900000)

	_ Store = (*MemStore)(nil)
)

// WithClock replaces time.Now, used to decide expiration of codes and
// tokens.
func WithClock(now func() time.Time) Option {
	return func(m *MemStore) {
		if now != nil {
			m.now = now
		}
	}
}

// WithRand replaces crypto/rand as the source of codes and reset tokens
func WithRand(r io.Reader) Option {
	return func(m *MemStore) {
		if r != nil {
			m.rand = r
		}
	}
}

func WithCodeTTL(ttl time.Duration) Option {
	return func(m *MemStore) {
		if ttl > 0 {
			m.codeTTL = ttl
		}
	}
}

func WithResetTTL(ttl time.Duration) Option {
	return func(m *MemStore) {
		if ttl > 0 {
			m.resetTTL = ttl
		}
	}
}

// WithSweep sets how often expired codes and tokens are purged from memory.
// Expiration is always enforced on lookup regardless of this value.
func WithSweep(every time.Duration) Option {
	return func(m *MemStore) {
		m.sweep = every
	}
}

func NewMemStore(hasher credential.Hasher, opts ...Option) (*MemStore, error) {
	m := &MemStore{
		byID:     map[string]*Account{},
		byEmail:  map[string]string{},
		hasher:   hasher,
		now:      time.Now,
		rand:     rand.Reader,
		codeTTL:  DefaultCodeTTL,
		resetTTL: DefaultResetTTL,
		sweep:    time.Minute,
	}
	for _, o := range opts {
		o(m)
	}
	var err error
	m.codes, err = newTicketBox(m.codeTTL, m.sweep, m.now)
	if err != nil {
		return nil, err
	}
	m.resets, err = newTicketBox(m.resetTTL, m.sweep, m.now)
	if err != nil {
		m.codes.close()
		return nil, err
	}
	return m, nil
}

func (m *MemStore) Close() error {
	return errors.Join(m.codes.close(), m.resets.close())
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (m *MemStore) FindByEmail(email string) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, found := m.byEmail[normalizeEmail(email)]
	if !found {
		return Account{}, false
	}
	return *m.byID[id], true
}

func (m *MemStore) FindByID(id string) (Account, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, found := m.byID[id]
	if !found {
		return Account{}, false
	}
	return *acc, true
}

// Create hashes the password and inserts a new unverified account.
// Concurrent calls with the same email (in any case) result in exactly
// one account, the others get EmailTaken.
func (m *MemStore) Create(email, password string) (Account, error) {
	email = normalizeEmail(email)
	if _, found := m.FindByEmail(email); found {
		return Account{}, EmailTaken{Email: email}
	}
	cred, err := m.hasher.Hash(password)
	if err != nil {
		return Account{}, fmt.Errorf("account: unable to hash password, cause %w", err)
	}
	acc := &Account{
		ID:         uuid.NewString(),
		Email:      email,
		Credential: cred,
		CreatedAt:  m.now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, taken := m.byEmail[email]; taken {
		return Account{}, EmailTaken{Email: email}
	}
	m.byID[acc.ID] = acc
	m.byEmail[email] = acc.ID
	return *acc, nil
}

// Delete removes id together with its pending code and reset token
func (m *MemStore) Delete(id string) bool {
	m.mu.Lock()
	acc, found := m.byID[id]
	if found {
		delete(m.byID, id)
		delete(m.byEmail, acc.Email)
	}
	m.mu.Unlock()
	if !found {
		return false
	}
	m.codes.revoke(id)
	m.resets.revoke(id)
	return true
}

func (m *MemStore) VerifyEmail(id string) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, found := m.byID[id]
	if !found {
		return Account{}, false
	}
	acc.EmailVerified = true
	return *acc, true
}

func (m *MemStore) UpdatePassword(id, cred string) (Account, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, found := m.byID[id]
	if !found {
		return Account{}, false
	}
	acc.Credential = cred
	acc.TokenVersion++
	return *acc, true
}

// UpdateEmail changes the address of id. Submitting the current address
// again is not an error.
func (m *MemStore) UpdateEmail(id, email string) (Account, error) {
	email = normalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, found := m.byID[id]
	if !found {
		return Account{}, NotFound{ID: id}
	}
	if owner, taken := m.byEmail[email]; taken && owner != id {
		return Account{}, EmailTaken{Email: email}
	}
	if acc.Email == email {
		return *acc, nil
	}
	delete(m.byEmail, acc.Email)
	acc.Email = email
	acc.TokenVersion++
	m.byEmail[email] = id
	return *acc, nil
}

// CreateCode issues a fresh 6 digit code for id, any previous code of the
// same account stops working.
func (m *MemStore) CreateCode(id string) (string, error) {
	t, err := m.codes.issue(id, m.sixDigits)
	if err != nil {
		return "", err
	}
	return t.Secret, nil
}

func (m *MemStore) FindCode(code string) (VerificationCode, bool) {
	t, found := m.codes.lookup(code)
	if !found {
		return VerificationCode{}, false
	}
	return VerificationCode{AccountID: t.Owner, Code: t.Secret, ExpiresAt: t.ExpiresAt}, true
}

func (m *MemStore) RemoveCode(code string) {
	m.codes.remove(code)
}

// CreatePasswordResetToken issues a fresh reset token for id, any previous
// token of the same account stops working.
func (m *MemStore) CreatePasswordResetToken(id string) (string, error) {
	t, err := m.resets.issue(id, m.resetSecret)
	if err != nil {
		return "", err
	}
	return t.Secret, nil
}

func (m *MemStore) FindPasswordResetToken(token string) (PasswordResetToken, bool) {
	t, found := m.resets.lookup(token)
	if !found {
		return PasswordResetToken{}, false
	}
	return PasswordResetToken{AccountID: t.Owner, Token: t.Secret, ExpiresAt: t.ExpiresAt}, true
}

func (m *MemStore) RemovePasswordResetToken(token string) {
	m.resets.remove(token)
}

func (m *MemStore) sixDigits() (string, error) {
	n, err := rand.Int(m.rand, codeRange)
	if err != nil {
		return "", fmt.Errorf("account: unable to generate code, cause %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

func (m *MemStore) resetSecret() (string, error) {
	var buf [32]byte
	if _, err := io.ReadFull(m.rand, buf[:]); err != nil {
		return "", fmt.Errorf("account: unable to generate reset token, cause %w", err)
	}
	return hex.EncodeToString(buf[:]), nil
}
