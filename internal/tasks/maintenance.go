package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/mail"
)

// ReservationMaintainer expires holds and chases overdue loans.
// *services.ReservationService satisfies it.
type ReservationMaintainer interface {
	ExpireStale(ctx context.Context, now time.Time) (int, error)
	RemindOverdue(ctx context.Context, now time.Time) (int, error)
}

// ExpireReservationsTask expires APPROVED reservations that were never collected.
type ExpireReservationsTask struct{}

func (t ExpireReservationsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "expire_reservations",
		MaxAttempts: 3,
		Backoff:     time.Minute,
		Timeout:     5 * time.Minute,
		Retention:   retention(),
	}
}

func ExpireReservationsProcessor(m ReservationMaintainer) backlite.QueueProcessor[ExpireReservationsTask] {
	return func(ctx context.Context, _ ExpireReservationsTask) error {
		if m == nil {
			return fmt.Errorf("reservation service not configured")
		}
		n, err := m.ExpireStale(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("expire reservations: %w", err)
		}
		if n > 0 {
			log.Info().Int("expired", n).Msg("[task] Expired stale reservations")
		}
		return nil
	}
}

// OverdueRemindersTask emails borrowers whose loans are past due.
type OverdueRemindersTask struct{}

func (t OverdueRemindersTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "overdue_reminders",
		MaxAttempts: 1,
		Backoff:     time.Minute,
		Timeout:     10 * time.Minute,
		Retention:   retention(),
	}
}

func OverdueRemindersProcessor(m ReservationMaintainer) backlite.QueueProcessor[OverdueRemindersTask] {
	return func(ctx context.Context, _ OverdueRemindersTask) error {
		if m == nil {
			return fmt.Errorf("reservation service not configured")
		}
		n, err := m.RemindOverdue(ctx, time.Now())
		if err != nil {
			return fmt.Errorf("overdue reminders: %w", err)
		}
		log.Info().Int("reminded", n).Msg("[task] Sent overdue reminders")
		return nil
	}
}

// Processors are the collaborators the queues call into.
type Processors struct {
	Mailer        mail.Mailer
	Broadcasts    BroadcastDeliverer
	Reservations  ReservationMaintainer
	Notifications NotificationCleaner
	Audit         AuditEventCleaner
}

// RegisterAll registers every library queue with the client.
func RegisterAll(c *Client, p Processors) {
	c.Register(
		NewSendEmailQueue(p.Mailer),
		NewBroadcastEmailQueue(p.Broadcasts),
		backlite.NewQueue(ExpireReservationsProcessor(p.Reservations)),
		backlite.NewQueue(OverdueRemindersProcessor(p.Reservations)),
		backlite.NewQueue(CleanupNotificationsProcessor(p.Notifications)),
		backlite.NewQueue(CleanupAuditEventsProcessor(p.Audit)),
	)
}
