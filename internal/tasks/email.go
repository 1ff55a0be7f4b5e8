package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
)

// SendEmailTask delivers one message. Failures are retried with backoff.
type SendEmailTask struct {
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
}

// Config returns the queue configuration for email tasks.
func (t SendEmailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "send_email",
		MaxAttempts: 5,
		Backoff:     2 * time.Minute,
		Timeout:     time.Minute,
		Retention:   retention(),
	}
}

func (t SendEmailTask) message() mail.Message {
	return mail.Message{To: t.To, Subject: t.Subject, HTML: t.HTML, Text: t.Text}
}

// SendEmailProcessor delivers queued messages through mailer.
func SendEmailProcessor(mailer mail.Mailer) backlite.QueueProcessor[SendEmailTask] {
	return func(ctx context.Context, task SendEmailTask) error {
		if mailer == nil {
			return fmt.Errorf("mailer not configured")
		}
		if err := mailer.Send(ctx, task.message()); err != nil {
			return fmt.Errorf("send email %q: %w", task.Subject, err)
		}
		log.Debug().Strs("to", task.To).Str("subject", task.Subject).Msg("Queued email delivered")
		return nil
	}
}

// NewSendEmailQueue creates a backlite queue for email delivery.
func NewSendEmailQueue(mailer mail.Mailer) backlite.Queue {
	return backlite.NewQueue(SendEmailProcessor(mailer))
}

// QueuedMailer implements mail.Mailer by enqueueing a send_email task, so
// request handlers never wait on the mail server.
type QueuedMailer struct {
	client *Client
}

func NewQueuedMailer(client *Client) *QueuedMailer {
	return &QueuedMailer{client: client}
}

func (m *QueuedMailer) Send(ctx context.Context, msg mail.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	return m.client.Enqueue(ctx, SendEmailTask{To: msg.To, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text})
}
