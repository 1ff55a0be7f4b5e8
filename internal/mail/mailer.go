// Package mail sends transactional email for the library: application
// receipts, review decisions, reservation updates, overdue reminders and
// staff broadcasts.
package mail

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
)

var (
	ErrNoRecipients    = errors.New("message has no recipients")
	ErrUnknownProvider = errors.New("unknown mail provider")
	ErrNotConfigured   = errors.New("mail provider is not configured")
)

// Message is a single outbound email. HTML is required; Text is an optional
// plain-text alternative.
type Message struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

// Validate checks that the message can be handed to a provider.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range m.To {
		if strings.TrimSpace(to) == "" {
			return ErrNoRecipients
		}
	}
	if strings.TrimSpace(m.Subject) == "" {
		return errors.New("message subject is empty")
	}
	return nil
}

// Mailer delivers messages.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns the mailer selected by cfg.Provider.
func New(cfg config.Mail) (Mailer, error) {
	switch cfg.Provider {
	case config.MailProviderSMTP:
		return NewSMTPMailer(cfg)
	case config.MailProviderResend:
		return NewResendMailer(cfg)
	case config.MailProviderNone, "":
		return NoopMailer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
}

// SendBestEffort sends msg and logs a failure instead of returning it. Email
// is a side effect of library workflows and never fails the request that
// triggered it.
func SendBestEffort(ctx context.Context, mailer Mailer, msg Message) {
	if mailer == nil {
		return
	}
	if err := mailer.Send(ctx, msg); err != nil {
		log.Warn().Err(err).
			Strs("to", msg.To).
			Str("subject", msg.Subject).
			Msg("Failed to send email")
	}
}

// NoopMailer logs messages instead of delivering them. It is used when no
// provider is configured.
type NoopMailer struct{}

func (NoopMailer) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	log.Info().Strs("to", msg.To).Str("subject", msg.Subject).Msg("Email delivery disabled, message dropped")
	return nil
}
