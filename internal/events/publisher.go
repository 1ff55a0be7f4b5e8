// Package events publishes domain events (membership decisions, reservation
// changes, recorded fees, finished broadcasts) to a RabbitMQ topic exchange
// so other systems can react to them.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"

	"github.com/derkdev976-web/davel-library-sub002/internal/config"
)

// Routing keys
const (
	RKMembershipSubmitted      = "membership.submitted"
	RKMembershipReviewed       = "membership.reviewed"
	RKReservationCreated       = "reservation.created"
	RKReservationStatusChanged = "reservation.status_changed"
	RKFeeRecorded              = "fee.recorded"
	RKFeeStatusChanged         = "fee.status_changed"
	RKBroadcastCompleted       = "broadcast.completed"
	RKNotificationCreated      = "notification.created"
)

const DefaultExchange = "library.events"

var ErrPublisherClosed = errors.New("publisher is closed")

// Publisher sends a payload under a routing key.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Encode wraps payload in an Envelope.
func Encode(routingKey string, payload any, now time.Time) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", routingKey, err)
	}
	return json.Marshal(Envelope{Type: routingKey, Timestamp: now.UTC(), Payload: raw})
}

// AMQPPublisher publishes to a durable topic exchange.
type AMQPPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
}

// NewAMQPPublisher dials the broker and declares the exchange.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to AMQP broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &AMQPPublisher{conn: conn, channel: ch, exchange: exchange}, nil
}

// Publish sends one persistent message.
func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	now := time.Now()
	body, err := Encode(routingKey, payload, now)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel == nil {
		return ErrPublisherClosed
	}
	return p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    now,
		Type:         routingKey,
		Body:         body,
	})
}

// Close closes the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var errs []error
	if p.channel != nil {
		errs = append(errs, p.channel.Close())
		p.channel = nil
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
		p.conn = nil
	}
	return errors.Join(errs...)
}

// NoopPublisher drops events. It is used when EVENTS_AMQP_URL is empty.
type NoopPublisher struct{}

func (NoopPublisher) Publish(_ context.Context, routingKey string, _ any) error {
	log.Debug().Str("routing_key", routingKey).Msg("Event publishing disabled")
	return nil
}

// New connects to the configured broker, or returns a NoopPublisher.
// The returned close function is always safe to call.
func New(cfg config.Events) (Publisher, func() error, error) {
	if !cfg.Enabled() {
		return NoopPublisher{}, func() error { return nil }, nil
	}
	p, err := NewAMQPPublisher(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, nil, err
	}
	return p, p.Close, nil
}

// PublishBestEffort publishes and logs a failure instead of returning it.
func PublishBestEffort(ctx context.Context, p Publisher, routingKey string, payload any) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, routingKey, payload); err != nil {
		log.Warn().Err(err).Str("routing_key", routingKey).Msg("Failed to publish event")
	}
}

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	Events []Recorded
}

// Recorded is one event captured by a Recorder.
type Recorded struct {
	RoutingKey string
	Payload    any
}

func (r *Recorder) Publish(_ context.Context, routingKey string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, Recorded{RoutingKey: routingKey, Payload: payload})
	return nil
}

// Keys returns the routing keys published so far, in order.
func (r *Recorder) Keys() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	keys := make([]string, len(r.Events))
	for i, e := range r.Events {
		keys[i] = e.RoutingKey
	}
	return keys
}
