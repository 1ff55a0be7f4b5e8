// Package services holds the library workflows: membership review,
// reservations and loans, fees, chat, notifications, broadcasts and the
// role dashboards. Handlers call services; services call repositories.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	"github.com/derkdev976-web/davel-library-sub002/internal/config"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
	"github.com/derkdev976-web/davel-library-sub002/internal/storage"
)

// Error kinds. Every service error matches exactly one of these (or
// validation.ErrInvalid) through errors.Is, which is what the HTTP layer
// maps to a status code.
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
)

type kindError struct {
	kind error
	msg  string
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

// Auditor records domain actions. *audit.Service satisfies it.
type Auditor interface {
	Record(e audit.Entry)
}

// Invalidator drops cached dashboard stats after a write.
type Invalidator interface {
	Invalidate()
}

// Deps are the collaborators shared by all services. Only DB is required.
type Deps struct {
	DB        *gorm.DB
	Library   config.Library
	Storage   storage.Store
	MaxUpload int64

	Mailer    mail.Mailer
	Renderer  *mail.Renderer
	Publisher events.Publisher
	Auditor   Auditor
	Cache     Invalidator

	// Now is replaced in tests.
	Now func() time.Time
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) audit(e audit.Entry) {
	if d.Auditor != nil {
		d.Auditor.Record(e)
	}
}

func (d Deps) publish(ctx context.Context, routingKey string, payload any) {
	events.PublishBestEffort(ctx, d.Publisher, routingKey, payload)
}

func (d Deps) invalidate() {
	if d.Cache != nil {
		d.Cache.Invalidate()
	}
}

// email renders a template and sends it without failing the caller.
func (d Deps) email(ctx context.Context, tmpl mail.Template, to, subject string, data any) {
	if d.Mailer == nil || d.Renderer == nil || to == "" {
		return
	}
	msg, err := d.Renderer.Compose(tmpl, []string{to}, subject, data)
	if err != nil {
		log.Error().Err(err).Str("template", string(tmpl)).Msg("Failed to render email")
		return
	}
	mail.SendBestEffort(ctx, d.Mailer, msg)
}

func ptr[T any](v T) *T { return &v }
