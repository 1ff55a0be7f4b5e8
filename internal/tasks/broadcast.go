package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/entities"
)

// BroadcastDeliverer sends a stored broadcast. *services.BroadcastService
// satisfies it.
type BroadcastDeliverer interface {
	Deliver(ctx context.Context, id uint) (*entities.EmailBroadcast, error)
}

// BroadcastEmailTask delivers one email broadcast to its audience.
type BroadcastEmailTask struct {
	BroadcastID uint `json:"broadcast_id"`
}

// Config returns the queue configuration for broadcast tasks. A broadcast
// is attempted twice; per-recipient failures are recorded on the broadcast
// itself rather than retried.
func (t BroadcastEmailTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "broadcast_email",
		MaxAttempts: 2,
		Backoff:     5 * time.Minute,
		Timeout:     30 * time.Minute,
		Retention:   retention(),
	}
}

func BroadcastEmailProcessor(deliverer BroadcastDeliverer) backlite.QueueProcessor[BroadcastEmailTask] {
	return func(ctx context.Context, task BroadcastEmailTask) error {
		if deliverer == nil {
			return fmt.Errorf("broadcast deliverer not configured")
		}
		b, err := deliverer.Deliver(ctx, task.BroadcastID)
		if err != nil {
			return fmt.Errorf("deliver broadcast %d: %w", task.BroadcastID, err)
		}
		log.Info().
			Uint("broadcast_id", b.ID).
			Str("status", string(b.Status)).
			Int("sent", b.SentCount).
			Int("failed", b.FailedCount).
			Msg("[task] Broadcast finished")
		return nil
	}
}

func NewBroadcastEmailQueue(deliverer BroadcastDeliverer) backlite.Queue {
	return backlite.NewQueue(BroadcastEmailProcessor(deliverer))
}

// EnqueueBroadcast schedules delivery of a stored broadcast.
func (c *Client) EnqueueBroadcast(ctx context.Context, broadcastID uint) error {
	return c.Enqueue(ctx, BroadcastEmailTask{BroadcastID: broadcastID})
}
