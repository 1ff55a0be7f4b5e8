package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/broadcasts"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

var ErrBroadcastNotFound = newError(ErrNotFound, "broadcast not found")

// BroadcastQueue hands a queued broadcast to a background worker.
type BroadcastQueue interface {
	EnqueueBroadcast(ctx context.Context, broadcastID uint) error
}

// BroadcastInput is the compose form.
type BroadcastInput struct {
	Subject    string                     `json:"subject" validate:"required,max=255"`
	Body       string                     `json:"body" validate:"required,max=50000"`
	Audience   entities.BroadcastAudience `json:"audience" validate:"required,oneof=ALL MEMBERS LIBRARIANS ADMINS CUSTOM"`
	Recipients []string                   `json:"recipients"`
}

// BroadcastService sends one email to many users.
type BroadcastService struct {
	deps   Deps
	mailer mail.Mailer
	queue  BroadcastQueue
	repo   *broadcasts.Repository
	users  *users.Repository
}

// NewBroadcastService delivers through mailer, which should send directly
// so that per-recipient failures are counted. Nil falls back to deps.Mailer.
func NewBroadcastService(deps Deps, mailer mail.Mailer) *BroadcastService {
	if mailer == nil {
		mailer = deps.Mailer
	}
	if mailer == nil {
		mailer = mail.NoopMailer{}
	}
	return &BroadcastService{
		deps:   deps,
		mailer: mailer,
		repo:   broadcasts.NewRepository(deps.DB),
		users:  users.NewRepository(deps.DB),
	}
}

// SetQueue enables background delivery. Without a queue, Queue delivers
// before returning.
func (s *BroadcastService) SetQueue(q BroadcastQueue) {
	s.queue = q
}

// Queue validates and stores a broadcast, then schedules delivery.
func (s *BroadcastService) Queue(ctx context.Context, senderID uint, in BroadcastInput) (*entities.EmailBroadcast, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Body = strings.TrimSpace(in.Body)
	in.Audience = entities.BroadcastAudience(strings.ToUpper(strings.TrimSpace(string(in.Audience))))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var recipients []string
	if in.Audience == entities.BroadcastAudienceCustom {
		var err error
		if recipients, err = normalizeRecipients(in.Recipients); err != nil {
			return nil, err
		}
	}

	b := &entities.EmailBroadcast{
		Subject:    in.Subject,
		Body:       in.Body,
		Audience:   in.Audience,
		Recipients: strings.Join(recipients, ","),
		Status:     entities.BroadcastStatusQueued,
		SentByID:   senderID,
	}
	if err := s.repo.Create(b); err != nil {
		return nil, fmt.Errorf("failed to queue broadcast: %w", err)
	}
	s.deps.audit(audit.Entry{
		ActorID:     senderID,
		EventType:   entities.AuditEventBroadcast,
		Action:      "queue",
		Description: fmt.Sprintf("Queued broadcast %q to %s", b.Subject, b.Audience),
		EntityType:  "broadcast",
		EntityID:    b.ID,
	})

	if s.queue != nil {
		err := s.queue.EnqueueBroadcast(ctx, b.ID)
		if err == nil {
			return b, nil
		}
		log.Error().Err(err).Uint("broadcast_id", b.ID).Msg("Failed to enqueue broadcast, delivering inline")
	}
	return s.Deliver(ctx, b.ID)
}

// normalizeRecipients lower-cases, dedupes and validates custom addresses.
func normalizeRecipients(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, raw := range in {
		for _, addr := range strings.Split(raw, ",") {
			addr = strings.ToLower(strings.TrimSpace(addr))
			if addr == "" || seen[addr] {
				continue
			}
			if err := validation.Var("recipients", addr, "email"); err != nil {
				return nil, validation.Field("recipients", addr+" is not a valid email address")
			}
			seen[addr] = true
			out = append(out, addr)
		}
	}
	if len(out) == 0 {
		return nil, validation.Field("recipients", "at least one email address is required for a custom audience")
	}
	return out, nil
}

// Deliver sends a queued broadcast. Individual failures are counted, never
// returned. Broadcasts that already finished are returned unchanged.
//
// The recipient list is fixed when sending starts and the counters are saved
// after every recipient, so a delivery retried while SENDING resumes after
// the last recipient it reached.
func (s *BroadcastService) Deliver(ctx context.Context, id uint) (*entities.EmailBroadcast, error) {
	b, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if b.Status != entities.BroadcastStatusQueued && b.Status != entities.BroadcastStatusSending {
		return b, nil
	}

	var recipients []string
	if b.Status == entities.BroadcastStatusSending && b.DeliveryList != "" {
		recipients = strings.Split(b.DeliveryList, ",")
		log.Info().Uint("broadcast_id", b.ID).Int("done", b.SentCount+b.FailedCount).Msg("Resuming broadcast")
	} else {
		if recipients, err = s.recipients(b); err != nil {
			return nil, err
		}
		b.DeliveryList = strings.Join(recipients, ",")
		b.TotalRecipients, b.SentCount, b.FailedCount = len(recipients), 0, 0
		b.Status = entities.BroadcastStatusSending
		if err := s.repo.Save(b); err != nil {
			return nil, err
		}
	}

	done := min(b.SentCount+b.FailedCount, len(recipients))
	msg, err := s.compose(b)
	for _, to := range recipients[done:] {
		switch {
		case err != nil, ctx.Err() != nil:
			b.FailedCount++
		default:
			m := msg
			m.To = []string{to}
			if sendErr := s.mailer.Send(ctx, m); sendErr != nil {
				log.Warn().Err(sendErr).Uint("broadcast_id", b.ID).Str("to", to).Msg("Broadcast email failed")
				b.FailedCount++
			} else {
				b.SentCount++
			}
		}
		if saveErr := s.repo.SaveProgress(b); saveErr != nil {
			return nil, fmt.Errorf("failed to save broadcast progress: %w", saveErr)
		}
	}
	if err != nil {
		log.Error().Err(err).Uint("broadcast_id", b.ID).Msg("Failed to render broadcast")
	}

	b.Status = broadcastOutcome(b.SentCount, b.FailedCount)
	b.CompletedAt = ptr(s.deps.now())
	if err := s.repo.Save(b); err != nil {
		return nil, fmt.Errorf("failed to save broadcast result: %w", err)
	}

	log.Info().
		Uint("broadcast_id", b.ID).
		Int("sent", b.SentCount).
		Int("failed", b.FailedCount).
		Str("status", string(b.Status)).
		Msg("Broadcast delivered")
	s.deps.audit(audit.Entry{
		ActorID:     b.SentByID,
		EventType:   entities.AuditEventBroadcast,
		Action:      "deliver",
		Description: fmt.Sprintf("Broadcast %q: %d sent, %d failed", b.Subject, b.SentCount, b.FailedCount),
		EntityType:  "broadcast",
		EntityID:    b.ID,
	})
	s.deps.publish(ctx, events.RKBroadcastCompleted, events.BroadcastPayload{
		BroadcastID: b.ID,
		Status:      string(b.Status),
		Total:       b.TotalRecipients,
		Sent:        b.SentCount,
		Failed:      b.FailedCount,
	})
	return b, nil
}

func broadcastOutcome(sent, failed int) entities.BroadcastStatus {
	switch {
	case failed == 0:
		return entities.BroadcastStatusSent
	case sent == 0:
		return entities.BroadcastStatusFailed
	}
	return entities.BroadcastStatusPartial
}

func (s *BroadcastService) compose(b *entities.EmailBroadcast) (mail.Message, error) {
	if s.deps.Renderer == nil {
		return mail.Message{Subject: b.Subject, Text: b.Body}, nil
	}
	msg, err := s.deps.Renderer.Compose(mail.TemplateBroadcast, nil, b.Subject, mail.BroadcastData{Paragraphs: mail.Paragraphs(b.Body)})
	if err != nil {
		return mail.Message{}, err
	}
	msg.Text = b.Body
	return msg, nil
}

func (s *BroadcastService) recipients(b *entities.EmailBroadcast) ([]string, error) {
	if b.Audience == entities.BroadcastAudienceCustom {
		if b.Recipients == "" {
			return nil, nil
		}
		return strings.Split(b.Recipients, ","), nil
	}
	list, err := s.users.ListByRoles(b.Audience.Roles()...)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(list))
	out := make([]string, 0, len(list))
	for _, u := range list {
		addr := strings.ToLower(u.Email)
		if addr == "" || seen[addr] {
			continue
		}
		seen[addr] = true
		out = append(out, addr)
	}
	return out, nil
}

func (s *BroadcastService) Get(id uint) (*entities.EmailBroadcast, error) {
	b, err := s.repo.GetByID(id)
	if errors.Is(err, broadcasts.ErrNotFound) {
		return nil, ErrBroadcastNotFound
	}
	return b, err
}

func (s *BroadcastService) List(limit, offset int) ([]entities.EmailBroadcast, int64, error) {
	return s.repo.List(limit, offset)
}
