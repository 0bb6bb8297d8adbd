package notify

import (
	"context"

	"github.com/andrebq/doorman/internal/logutil"
	"gopkg.in/gomail.v2"
)

type (
	SMTPConfig struct {
		Host     string
		Port     int
		Username string
		Password string
		From     string
	}

	Sender interface {
		DialAndSend(m ...*gomail.Message) error
	}

	// SMTP delivers rendered notifications by email
	SMTP struct {
		from     string
		dialer   Sender
		renderer Renderer
	}
)

func NewSMTP(cfg SMTPConfig, renderer Renderer) *SMTP {
	return NewSMTPWithSender(gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password), cfg.From, renderer)
}

func NewSMTPWithSender(s Sender, from string, renderer Renderer) *SMTP {
	return &SMTP{
		from:     from,
		dialer:   s,
		renderer: renderer,
	}
}

func (s *SMTP) Send(ctx context.Context, kind Kind, to, payload string) bool {
	log := logutil.GetOrDefault(ctx).With().Str("notification", kind.String()).Str("to", to).Logger()
	content, err := s.renderer.Render(kind, to, payload)
	if err != nil {
		log.Error().Err(err).Msg("Unable to render notification")
		return false
	}
	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", content.Subject)
	if content.HTML != "" {
		msg.SetBody("text/html", content.HTML)
		if content.Text != "" {
			msg.AddAlternative("text/plain", content.Text)
		}
	} else {
		msg.SetBody("text/plain", content.Text)
	}
	if err := s.dialer.DialAndSend(msg); err != nil {
		log.Error().Err(err).Msg("Unable to deliver notification")
		return false
	}
	log.Info().Msg("Notification delivered")
	return true
}
