package testutil

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/andrebq/doorman/account"
	"github.com/andrebq/doorman/api"
	"github.com/andrebq/doorman/credential"
	"github.com/andrebq/doorman/notify"
	"github.com/andrebq/doorman/token"
)

type (
	TestLog interface {
		Fatal(...interface{})
		Log(...interface{})
	}

	// Clock is a manually advanced time source
	Clock struct {
		sync.Mutex
		t time.Time
	}

	// Service is a fully wired in-memory instance of the api
	Service struct {
		Clock   *Clock
		Store   *account.MemStore
		Hasher  credential.Hasher
		Codec   *token.Codec
		Outbox  *notify.Outbox
		Handler http.Handler
	}

	ServiceOptions struct {
		Prefix       string
		CORSOrigins  []string
		ExposeOutbox bool
		Revoke       bool
		// Rand replaces the source of codes and reset tokens
		Rand io.Reader
	}
)

var (
	Epoch = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
)

func NewClock(t time.Time) *Clock {
	return &Clock{t: t}
}

func (c *Clock) Now() time.Time {
	c.Lock()
	defer c.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.Lock()
	c.t = c.t.Add(d)
	c.Unlock()
}

// AcquireService builds the api with a fake clock, a cheap hasher and an
// outbox capturing every notification.
func AcquireService(ctx context.Context, t TestLog, opts ServiceOptions) (*Service, func()) {
	clock := NewClock(Epoch)
	hasher := credential.Bcrypt{Cost: 4}
	store, err := account.NewMemStore(hasher, account.WithClock(clock.Now), account.WithRand(opts.Rand))
	if err != nil {
		t.Fatal(err)
	}
	codec, err := token.NewCodec([]byte("test-secret"), token.WithClock(clock.Now))
	if err != nil {
		t.Fatal(err)
	}
	outbox := notify.NewOutbox(nil)
	svc := api.NewService(store, hasher, codec, outbox)
	realm := api.NewRealm(store, codec, opts.Revoke)
	apiOpts := api.Options{Prefix: opts.Prefix, CORSOrigins: opts.CORSOrigins}
	if opts.ExposeOutbox {
		apiOpts.Outbox = outbox
	}
	return &Service{
			Clock:   clock,
			Store:   store,
			Hasher:  hasher,
			Codec:   codec,
			Outbox:  outbox,
			Handler: api.AsHandler(ctx, svc, realm, apiOpts),
		}, func() {
			if err := store.Close(); err != nil {
				t.Log("unable to close store", err)
			}
		}
}
