// Package events publishes patient lifecycle notifications to a RabbitMQ
// topic exchange. The routing key is the event type.
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/dmehra2102/prod-golang-projects/patientrest/config"
)

type Type string

const (
	PatientCreated    Type = "patient.created"
	PatientUpdated    Type = "patient.updated"
	PatientVoided     Type = "patient.voided"
	PatientPurged     Type = "patient.purged"
	IdentifierChanged Type = "patient.identifier.changed"
)

type Event struct {
	ID          uuid.UUID         `json:"id"`
	Type        Type              `json:"type"`
	PatientUUID uuid.UUID         `json:"patient_uuid"`
	ActorID     uuid.UUID         `json:"actor_id"`
	RequestID   string            `json:"request_id,omitempty"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Details     map[string]string `json:"details,omitempty"`
}

func New(t Type, patientUUID, actor uuid.UUID, at time.Time) Event {
	return Event{
		ID:          uuid.New(),
		Type:        t,
		PatientUUID: patientUUID,
		ActorID:     actor,
		OccurredAt:  at.UTC(),
	}
}

var ErrNotConfirmed = errors.New("broker did not confirm the message")

// AMQPPublisher owns one confirm-mode channel. Publishes are serialized so
// each confirmation can be matched to the message that produced it.
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       *amqp.Channel
	exchange string
	timeout  time.Duration
	log      *zap.Logger
	confirms chan amqp.Confirmation
	mu       sync.Mutex
}

func NewAMQPPublisher(cfg config.EventsConfig, log *zap.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("opening channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange, // name
		"topic",      // kind
		true,         // durable
		false,        // autoDelete
		false,        // internal
		false,        // noWait
		nil,          // args
	)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declaring exchange %s: %w", cfg.Exchange, err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("enabling publisher confirms: %w", err)
	}

	return &AMQPPublisher{
		conn:     conn,
		ch:       ch,
		exchange: cfg.Exchange,
		timeout:  cfg.PublishTimeout,
		log:      log,
		confirms: ch.NotifyPublish(make(chan amqp.Confirmation, 1)),
	}, nil
}

// Publish sends ev as a persistent JSON message and waits for the broker ack.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    ev.ID.String(),
		Timestamp:    ev.OccurredAt,
		Type:         string(ev.Type),
		Body:         body,
	}
	if ev.RequestID != "" {
		msg.CorrelationId = ev.RequestID
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, string(ev.Type), false, false, msg); err != nil {
		return fmt.Errorf("publishing %s: %w", ev.Type, err)
	}

	select {
	case confirmed, ok := <-p.confirms:
		if !ok {
			return fmt.Errorf("publishing %s: channel closed", ev.Type)
		}
		if !confirmed.Ack {
			return fmt.Errorf("publishing %s: %w", ev.Type, ErrNotConfirmed)
		}
	case <-ctx.Done():
		return fmt.Errorf("publishing %s: %w", ev.Type, ctx.Err())
	}

	p.log.Debug("event published",
		zap.String("type", string(ev.Type)),
		zap.String("event_id", ev.ID.String()),
	)
	return nil
}

func (p *AMQPPublisher) Healthy() bool {
	return !p.conn.IsClosed()
}

func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.ch.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
		return err
	}
	return p.conn.Close()
}

// Nop drops every event. Used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Healthy() bool                        { return true }
func (Nop) Close() error                         { return nil }
