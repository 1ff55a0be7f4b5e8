package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/database/notifications"
	"github.com/derkdev976-web/davel-library-sub002/internal/database/users"
	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
	"github.com/derkdev976-web/davel-library-sub002/internal/events"
)

// PollIntervalSeconds is how often clients are told to poll for notifications.
const PollIntervalSeconds = 30

var ErrNotificationNotFound = newError(ErrNotFound, "notification not found")

// NotificationService stores in-app notifications.
type NotificationService struct {
	deps  Deps
	repo  *notifications.Repository
	users *users.Repository
}

func NewNotificationService(deps Deps) *NotificationService {
	return &NotificationService{
		deps:  deps,
		repo:  notifications.NewRepository(deps.DB),
		users: users.NewRepository(deps.DB),
	}
}

// Notify stores a notification for one user. Failures are logged and
// returned; callers inside larger workflows usually ignore them.
func (s *NotificationService) Notify(ctx context.Context, userID uint, typ entities.NotificationType, title, message, link string) (*entities.Notification, error) {
	n := &entities.Notification{
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Link:      link,
		CreatedAt: s.deps.now(),
	}
	if err := s.repo.Create(n); err != nil {
		log.Error().Err(err).Uint("user_id", userID).Msg("Failed to store notification")
		return nil, err
	}
	s.deps.publish(ctx, events.RKNotificationCreated, events.NotificationPayload{
		NotificationID: n.ID,
		UserID:         userID,
		Type:           string(typ),
	})
	return n, nil
}

// NotifyRoles fans a notification out to every user holding one of roles.
func (s *NotificationService) NotifyRoles(ctx context.Context, roles []entities.UserRole, typ entities.NotificationType, title, message, link string) (int, error) {
	recipients, err := s.users.ListByRoles(roles...)
	if err != nil {
		return 0, err
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	now := s.deps.now()
	batch := make([]entities.Notification, 0, len(recipients))
	for _, u := range recipients {
		batch = append(batch, entities.Notification{
			UserID:    u.ID,
			Type:      typ,
			Title:     title,
			Message:   message,
			Link:      link,
			CreatedAt: now,
		})
	}
	if err := s.repo.CreateBatch(batch); err != nil {
		log.Error().Err(err).Int("count", len(batch)).Msg("Failed to store role notifications")
		return 0, err
	}
	return len(batch), nil
}

// NotifyStaff notifies every ADMIN and LIBRARIAN.
func (s *NotificationService) NotifyStaff(ctx context.Context, typ entities.NotificationType, title, message, link string) {
	_, _ = s.NotifyRoles(ctx, []entities.UserRole{entities.UserRoleAdmin, entities.UserRoleLibrarian}, typ, title, message, link)
}

func (s *NotificationService) List(userID uint, unreadOnly bool, limit, offset int) ([]entities.Notification, int64, error) {
	return s.repo.List(userID, unreadOnly, limit, offset)
}

func (s *NotificationService) UnreadCount(userID uint) (int64, error) {
	return s.repo.UnreadCount(userID)
}

// MarkRead marks one of the user's notifications read. Notifications owned
// by someone else are reported as not found.
func (s *NotificationService) MarkRead(userID, id uint) error {
	err := s.repo.MarkRead(userID, id, s.deps.now())
	if errors.Is(err, notifications.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

func (s *NotificationService) MarkAllRead(userID uint) (int64, error) {
	return s.repo.MarkAllRead(userID, s.deps.now())
}

func (s *NotificationService) Delete(userID, id uint) error {
	err := s.repo.Delete(userID, id)
	if errors.Is(err, notifications.ErrNotFound) {
		return ErrNotificationNotFound
	}
	return err
}

// CleanupRead removes read notifications older than olderThan.
func (s *NotificationService) CleanupRead(olderThan time.Duration) (int64, error) {
	return s.repo.DeleteReadBefore(s.deps.now().Add(-olderThan))
}
