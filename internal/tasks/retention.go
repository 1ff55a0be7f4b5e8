package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"
)

const (
	defaultNotificationDays = 30
	defaultAuditDays        = 90
)

// NotificationCleaner removes old read notifications.
type NotificationCleaner interface {
	CleanupRead(olderThan time.Duration) (int64, error)
}

// AuditEventCleaner removes audit events past retention.
type AuditEventCleaner interface {
	DeleteOldEvents(retention time.Duration) (int64, error)
}

// CleanupNotificationsTask deletes read notifications older than OlderThanDays.
type CleanupNotificationsTask struct {
	OlderThanDays int `json:"older_than_days"`
}

func (t CleanupNotificationsTask) Config() backlite.QueueConfig {
	return retentionQueue("cleanup_notifications")
}

// CleanupAuditEventsTask deletes audit events older than RetentionDays.
type CleanupAuditEventsTask struct {
	RetentionDays int `json:"retention_days"`
}

func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return retentionQueue("cleanup_audit_events")
}

func retentionQueue(name string) backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention:   retention(),
	}
}

func CleanupNotificationsProcessor(c NotificationCleaner) backlite.QueueProcessor[CleanupNotificationsTask] {
	return func(_ context.Context, task CleanupNotificationsTask) error {
		if c == nil {
			return fmt.Errorf("notification cleaner not configured")
		}
		return prune("notifications", task.OlderThanDays, defaultNotificationDays, c.CleanupRead)
	}
}

func CleanupAuditEventsProcessor(c AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(_ context.Context, task CleanupAuditEventsTask) error {
		if c == nil {
			return fmt.Errorf("audit event cleaner not configured")
		}
		return prune("audit events", task.RetentionDays, defaultAuditDays, c.DeleteOldEvents)
	}
}

func prune(what string, days, fallback int, del func(time.Duration) (int64, error)) error {
	if days <= 0 {
		days = fallback
	}
	deleted, err := del(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		return fmt.Errorf("cleanup %s: %w", what, err)
	}
	log.Info().Int64("deleted", deleted).Int("older_than_days", days).Msgf("[task] Cleaned up %s", what)
	return nil
}
