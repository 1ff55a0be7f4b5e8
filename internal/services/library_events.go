package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/derkdev976-web/davel-library-sub002/internal/audit"
	libevents "github.com/derkdev976-web/davel-library-sub002/internal/database/events"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/validation"
)

var ErrEventNotFound = newError(ErrNotFound, "event not found")

// EventInput is the create/update form for a library event.
type EventInput struct {
	Title       string    `json:"title" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=10000"`
	Location    string    `json:"location" validate:"max=200"`
	StartsAt    time.Time `json:"starts_at" validate:"required"`
	EndsAt      time.Time `json:"ends_at" validate:"required"`
	Capacity    int       `json:"capacity" validate:"gte=0"`
	IsPublished bool      `json:"is_published"`
}

func (in *EventInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Description = strings.TrimSpace(in.Description)
	in.Location = strings.TrimSpace(in.Location)
	if err := validation.Struct(in); err != nil {
		return err
	}
	if !in.EndsAt.After(in.StartsAt) {
		return validation.Field("ends_at", "must be after starts_at")
	}
	return nil
}

// EventService manages the library's public events calendar.
type EventService struct {
	deps Deps
	repo *libevents.Repository
}

func NewEventService(deps Deps) *EventService {
	return &EventService{deps: deps, repo: libevents.NewRepository(deps.DB)}
}

// Upcoming lists events that have not ended. Drafts are staff-only.
func (s *EventService) Upcoming(includeDrafts bool, limit int) ([]entities.Event, error) {
	return s.repo.ListUpcoming(s.deps.now(), includeDrafts, limit)
}

// All lists every event, past ones included.
func (s *EventService) All(limit, offset int) ([]entities.Event, int64, error) {
	return s.repo.ListAll(limit, offset)
}

// Get returns an event. Unpublished events are hidden unless includeDrafts.
func (s *EventService) Get(id uint, includeDrafts bool) (*entities.Event, error) {
	e, err := s.repo.GetByID(id)
	if errors.Is(err, libevents.ErrNotFound) || (err == nil && !e.IsPublished && !includeDrafts) {
		return nil, ErrEventNotFound
	}
	return e, err
}

func (s *EventService) Create(ctx context.Context, actorID uint, in EventInput) (*entities.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e := &entities.Event{CreatedByID: actorID}
	in.apply(e)
	if err := s.repo.Create(e); err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	s.record(actorID, "create", e)
	return e, nil
}

func (s *EventService) Update(ctx context.Context, actorID, id uint, in EventInput) (*entities.Event, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	e, err := s.Get(id, true)
	if err != nil {
		return nil, err
	}
	in.apply(e)
	if err := s.repo.Save(e); err != nil {
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	s.record(actorID, "update", e)
	return e, nil
}

func (s *EventService) Delete(ctx context.Context, actorID, id uint) error {
	e, err := s.Get(id, true)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(id); err != nil {
		if errors.Is(err, libevents.ErrNotFound) {
			return ErrEventNotFound
		}
		return err
	}
	s.record(actorID, "delete", e)
	return nil
}

func (in EventInput) apply(e *entities.Event) {
	e.Title = in.Title
	e.Description = in.Description
	e.Location = in.Location
	e.StartsAt = in.StartsAt
	e.EndsAt = in.EndsAt
	e.Capacity = in.Capacity
	e.IsPublished = in.IsPublished
}

func (s *EventService) record(actorID uint, action string, e *entities.Event) {
	s.deps.audit(audit.Entry{
		ActorID:     actorID,
		EventType:   entities.AuditEventEvent,
		Action:      action,
		Description: fmt.Sprintf("%s event %q", action, e.Title),
		EntityType:  "event",
		EntityID:    e.ID,
	})
}
