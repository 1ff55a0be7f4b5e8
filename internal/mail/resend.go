package mail

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
)

// ResendMailer delivers through the Resend HTTP API.
type ResendMailer struct {
	client *resend.Client
	from   string
}

// NewResendMailer creates a mailer using RESEND_API_KEY.
func NewResendMailer(cfg config.Mail) (*ResendMailer, error) {
	if cfg.ResendAPIKey == "" {
		return nil, fmt.Errorf("%w: RESEND_API_KEY is empty", ErrNotConfigured)
	}
	return &ResendMailer{
		client: resend.NewClient(cfg.ResendAPIKey),
		from:   cfg.From,
	}, nil
}

// Send posts the message to Resend.
func (m *ResendMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		Html:    msg.HTML,
		Text:    msg.Text,
	}
	if _, err := m.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("failed to send email via resend: %w", err)
	}
	return nil
}
