package account

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/allegro/bigcache/v3"
	"github.com/cespare/xxhash/v2"
)

type (
	// ticketBox holds short lived secrets, at most one per owner.
	//
	// Entries are indexed twice: "s:<secret>" holds the ticket and
	// "o:<owner>" points to the current secret of that owner.
	ticketBox struct {
		sync.Mutex
		cache *bigcache.BigCache
		ttl   time.Duration
		now   func() time.Time
	}

	ticket struct {
		Owner     string    `json:"owner"`
		Secret    string    `json:"secret"`
		ExpiresAt time.Time `json:"expiresAt"`
	}

	xxhasher struct{}
)

const (
	maxSecretAttempts = 16
)

var (
	errTooManyCollisions = errors.New("account: unable to generate a unique secret")
)

func (xxhasher) Sum64(key string) uint64 {
	return xxhash.Sum64String(key)
}

func newTicketBox(ttl, sweep time.Duration, now func() time.Time) (*ticketBox, error) {
	cfg := bigcache.DefaultConfig(ttl)
	cfg.Shards = 16
	cfg.MaxEntriesInWindow = 1024
	cfg.MaxEntrySize = 256
	cfg.CleanWindow = sweep
	cfg.Verbose = false
	cfg.Hasher = xxhasher{}
	cache, err := bigcache.NewBigCache(cfg)
	if err != nil {
		return nil, fmt.Errorf("account: unable to create ticket cache, cause %w", err)
	}
	return &ticketBox{
		cache: cache,
		ttl:   ttl,
		now:   now,
	}, nil
}

// issue replaces the current ticket of owner with a new one.
// gen is called until it returns a secret that is not live for any other
// owner.
func (b *ticketBox) issue(owner string, gen func() (string, error)) (ticket, error) {
	b.Lock()
	defer b.Unlock()
	var secret string
	for attempt := 0; ; attempt++ {
		if attempt == maxSecretAttempts {
			return ticket{}, errTooManyCollisions
		}
		var err error
		secret, err = gen()
		if err != nil {
			return ticket{}, err
		}
		if current, found := b.lookupLocked(secret); !found || current.Owner == owner {
			break
		}
	}
	if buf, err := b.cache.Get(secretKey(secret)); err == nil {
		// expired ticket of someone else, unlink it from its owner
		var stale ticket
		if json.Unmarshal(buf, &stale) == nil && stale.Owner != owner {
			b.unlinkOwner(stale.Owner, secret)
		}
	}
	if old, err := b.cache.Get(ownerKey(owner)); err == nil {
		b.cache.Delete(secretKey(string(old)))
	}
	t := ticket{Owner: owner, Secret: secret, ExpiresAt: b.now().Add(b.ttl)}
	buf, err := json.Marshal(t)
	if err != nil {
		return ticket{}, err
	}
	if err := b.cache.Set(secretKey(secret), buf); err != nil {
		return ticket{}, fmt.Errorf("account: unable to store ticket, cause %w", err)
	}
	if err := b.cache.Set(ownerKey(owner), []byte(secret)); err != nil {
		b.cache.Delete(secretKey(secret))
		return ticket{}, fmt.Errorf("account: unable to store ticket owner, cause %w", err)
	}
	return t, nil
}

func (b *ticketBox) lookup(secret string) (ticket, bool) {
	b.Lock()
	defer b.Unlock()
	return b.lookupLocked(secret)
}

func (b *ticketBox) lookupLocked(secret string) (ticket, bool) {
	if secret == "" {
		return ticket{}, false
	}
	buf, err := b.cache.Get(secretKey(secret))
	if err != nil {
		return ticket{}, false
	}
	var t ticket
	if err := json.Unmarshal(buf, &t); err != nil {
		return ticket{}, false
	}
	if !b.now().Before(t.ExpiresAt) {
		return ticket{}, false
	}
	return t, true
}

func (b *ticketBox) remove(secret string) {
	b.Lock()
	defer b.Unlock()
	buf, err := b.cache.Get(secretKey(secret))
	if err != nil {
		return
	}
	b.cache.Delete(secretKey(secret))
	var t ticket
	if json.Unmarshal(buf, &t) != nil {
		return
	}
	b.unlinkOwner(t.Owner, secret)
}

// revoke drops the current ticket of owner, if any
func (b *ticketBox) revoke(owner string) {
	b.Lock()
	defer b.Unlock()
	cur, err := b.cache.Get(ownerKey(owner))
	if err != nil {
		return
	}
	b.cache.Delete(secretKey(string(cur)))
	b.cache.Delete(ownerKey(owner))
}

func (b *ticketBox) unlinkOwner(owner, secret string) {
	if cur, err := b.cache.Get(ownerKey(owner)); err == nil && string(cur) == secret {
		b.cache.Delete(ownerKey(owner))
	}
}

func (b *ticketBox) close() error {
	return b.cache.Close()
}

func secretKey(s string) string { return "s:" + s }
func ownerKey(o string) string  { return "o:" + o }
