package mail

import (
	"context"
	"fmt"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
)

// SMTPMailer delivers through an SMTP relay. Each Send opens its own
// connection, so the mailer is safe for concurrent use.
type SMTPMailer struct {
	from    string
	options []gomail.Option
	host    string
}

// NewSMTPMailer validates the SMTP settings and prepares client options.
func NewSMTPMailer(cfg config.Mail) (*SMTPMailer, error) {
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("%w: SMTP_HOST is empty", ErrNotConfigured)
	}
	if cfg.From == "" {
		return nil, fmt.Errorf("%w: MAIL_FROM is empty", ErrNotConfigured)
	}

	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	opts := []gomail.Option{
		gomail.WithPort(port),
		gomail.WithTimeout(timeout),
	}
	if cfg.SMTPTLS {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSMandatory))
	} else {
		opts = append(opts, gomail.WithTLSPolicy(gomail.TLSOpportunistic))
	}
	if cfg.SMTPUsername != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.SMTPUsername),
			gomail.WithPassword(cfg.SMTPPassword),
		)
	}

	return &SMTPMailer{from: cfg.From, options: opts, host: cfg.SMTPHost}, nil
}

// Send builds a MIME message and delivers it.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	built, err := m.build(msg)
	if err != nil {
		return err
	}

	client, err := gomail.NewClient(m.host, m.options...)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, built); err != nil {
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	return nil
}

func (m *SMTPMailer) build(msg Message) (*gomail.Msg, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}

	built := gomail.NewMsg()
	if err := built.From(m.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := built.To(msg.To...); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	built.Subject(msg.Subject)
	built.SetBodyString(gomail.TypeTextHTML, msg.HTML)
	if msg.Text != "" {
		built.AddAlternativeString(gomail.TypeTextPlain, msg.Text)
	}
	return built, nil
}
