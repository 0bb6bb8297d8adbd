// Package notify delivers verification codes and password reset tokens to
// account owners.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/andrebq/doorman/internal/logutil"
)

type (
	Kind byte

	// Notifier delivers payload to the owner of address to.
	// Send reports whether the message was handed over successfully,
	// callers never fail a request because of it.
	Notifier interface {
		Send(ctx context.Context, kind Kind, to, payload string) bool
	}

	// Message is the rendered form of a notification
	Message struct {
		Subject string
		Text    string
		HTML    string
	}

	Renderer interface {
		Render(kind Kind, to, payload string) (Message, error)
	}

	// Console writes notifications to the log, useful for development.
	Console struct {
		Renderer Renderer
	}

	// Sent is a notification captured by an Outbox
	Sent struct {
		Kind    Kind   `json:"kind"`
		To      string `json:"to"`
		Payload string `json:"payload"`
	}

	// Outbox keeps every notification in memory.
	Outbox struct {
		mu   sync.Mutex
		sent []Sent
		next Notifier
	}

	// Async hands notifications over to another Notifier without
	// blocking the caller. Once closed it refuses new notifications.
	Async struct {
		mu     sync.Mutex
		closed bool
		wg     sync.WaitGroup
		next   Notifier
	}
)

const (
	Verification Kind = iota + 1
	PasswordReset
)

func (k Kind) String() string {
	switch k {
	case Verification:
		return "verification"
	case PasswordReset:
		return "password-reset"
	}
	return fmt.Sprintf("kind(%d)", byte(k))
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (c Console) Send(ctx context.Context, kind Kind, to, payload string) bool {
	log := logutil.GetOrDefault(ctx).With().Str("notification", kind.String()).Str("to", to).Logger()
	switch kind {
	case Verification:
		log.Info().Msgf("Verification code for %v: %v", to, payload)
	case PasswordReset:
		log.Info().Msgf("Password reset token for %v: %v", to, payload)
	default:
		log.Warn().Msg("Unknown notification kind")
		return false
	}
	if c.Renderer != nil {
		msg, err := c.Renderer.Render(kind, to, payload)
		if err != nil {
			log.Error().Err(err).Msg("Unable to render notification")
			return false
		}
		log.Debug().Str("subject", msg.Subject).Msg(msg.Text)
	}
	return true
}

// NewOutbox returns an Outbox that also forwards to next, which might be nil.
func NewOutbox(next Notifier) *Outbox {
	return &Outbox{next: next}
}

func (o *Outbox) Send(ctx context.Context, kind Kind, to, payload string) bool {
	o.mu.Lock()
	o.sent = append(o.sent, Sent{Kind: kind, To: to, Payload: payload})
	o.mu.Unlock()
	if o.next != nil {
		return o.next.Send(ctx, kind, to, payload)
	}
	return true
}

// Sent returns a copy of every captured notification
func (o *Outbox) Sent() []Sent {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]Sent(nil), o.sent...)
}

// Last returns the most recent notification of kind sent to address to
func (o *Outbox) Last(kind Kind, to string) (Sent, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for i := len(o.sent) - 1; i >= 0; i-- {
		if o.sent[i].Kind == kind && o.sent[i].To == to {
			return o.sent[i], true
		}
	}
	return Sent{}, false
}

func NewAsync(next Notifier) *Async {
	return &Async{next: next}
}

// Send returns false only after Close, delivery failures are logged by
// next.
func (a *Async) Send(ctx context.Context, kind Kind, to, payload string) bool {
	log := logutil.GetOrDefault(ctx)
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		log.Warn().Str("notification", kind.String()).Str("to", to).Msg("Notifier is closed, dropping notification")
		return false
	}
	a.wg.Add(1)
	a.mu.Unlock()
	// the request context ends before delivery does
	bg := logutil.WithLogger(context.Background(), log)
	go func() {
		defer a.wg.Done()
		a.next.Send(bg, kind, to, payload)
	}()
	return true
}

// Close waits for every pending delivery
func (a *Async) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	a.wg.Wait()
	return nil
}
