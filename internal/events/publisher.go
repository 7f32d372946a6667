// Package events publishes domain events (chat created, message sent,
// invitation accepted, ...) to a RabbitMQ topic exchange. When AMQP is not
// configured or unreachable a noop publisher is used and events are only
// logged at debug level.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog/log"
)

// Routing keys.
const (
	UserRegistered     = "user.registered"
	UserDeleted        = "user.deleted"
	UserBlocked        = "user.blocked"
	UserUnblocked      = "user.unblocked"
	ChatCreated        = "chat.created"
	ChatDeleted        = "chat.deleted"
	ChatLeft           = "chat.left"
	MessageSent        = "message.sent"
	InvitationCreated  = "invitation.created"
	InvitationAccepted = "invitation.accepted"
	InvitationRejected = "invitation.rejected"
	InvitationCanceled = "invitation.cancelled"
)

// Envelope wraps every published event.
type Envelope struct {
	Type       string    `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Data       any       `json:"data"`
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NewPublisher builds a RabbitMQ publisher or a noop publisher when AMQP is
// disabled or the broker cannot be reached.
func NewPublisher(amqpURL, exchange string) Publisher {
	if amqpURL == "" {
		log.Info().Msg("rabbitmq disabled, using noop: empty amqp url")
		return noopPublisher{reason: "empty amqp url"}
	}

	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		return noopPublisher{reason: err.Error()}
	}

	ch, err := conn.Channel()
	if err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	if err := ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		log.Warn().Err(err).Msg("rabbitmq disabled, using noop")
		_ = ch.Close()
		_ = conn.Close()
		return noopPublisher{reason: err.Error()}
	}

	log.Info().Str("exchange", exchange).Msg("rabbitmq connected")
	return &amqpPublisher{conn: conn, ch: ch, exchange: exchange}
}

type amqpPublisher struct {
	mu       sync.Mutex
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
}

func (p *amqpPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
}

func (p *amqpPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

type noopPublisher struct {
	reason string
}

func (noopPublisher) Publish(_ context.Context, routingKey string, event any) error {
	ev := log.Debug().Str("routing_key", routingKey)
	if env, ok := event.(Envelope); ok {
		ev = ev.Str("event_type", env.Type)
	}
	ev.Msg("rabbitmq noop publish")
	return nil
}

func (noopPublisher) Close() error { return nil }

// PublisherMode reports the publisher mode for logging.
func PublisherMode(p Publisher) string {
	switch p.(type) {
	case *amqpPublisher:
		return "amqp"
	case noopPublisher:
		return "noop"
	default:
		return "unknown"
	}
}

// PublisherNoopReason explains why a noop publisher was chosen.
func PublisherNoopReason(p Publisher) string {
	if np, ok := p.(noopPublisher); ok {
		return np.reason
	}
	return ""
}

// Emit wraps data in an Envelope and publishes it. Failures are logged and
// swallowed: events are emitted after the state change has committed and
// must not turn a successful request into an error.
func Emit(ctx context.Context, p Publisher, routingKey string, data any) {
	if p == nil {
		return
	}
	env := Envelope{Type: routingKey, OccurredAt: time.Now().UTC(), Data: data}
	if err := p.Publish(ctx, routingKey, env); err != nil {
		log.Warn().Err(err).Str("routing_key", routingKey).Msg("event publish failed")
	}
}
