// Package events publishes dialog lifecycle events to RabbitMQ. Every event
// is also persisted as an OutboxEvent row so consumers that missed the
// broker window can be replayed.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/gramchat/gramchat/internal/models"
	"github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Routing keys.
const (
	KeyMessageCreated    = "dialog.message.created"
	KeyAssignmentChanged = "dialog.assignment.changed"
	KeyStatusChanged     = "dialog.status.changed"
)

// Meta carries event identity and timing.
type Meta struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Envelope is the wire format for published events.
type Envelope struct {
	Meta    Meta            `json:"meta"`
	Payload json.RawMessage `json:"payload"`
}

// MessageCreated is the payload for KeyMessageCreated.
type MessageCreated struct {
	DialogID  string `json:"dialog_id"`
	BotID     string `json:"bot_id"`
	MessageID string `json:"message_id"`
	FromUser  bool   `json:"from_user"`
}

// AssignmentChanged is the payload for KeyAssignmentChanged.
type AssignmentChanged struct {
	DialogID   string  `json:"dialog_id"`
	BotID      string  `json:"bot_id"`
	AssignedTo *string `json:"assigned_to"`
}

// StatusChanged is the payload for KeyStatusChanged.
type StatusChanged struct {
	DialogID    string  `json:"dialog_id"`
	BotID       string  `json:"bot_id"`
	Status      string  `json:"status"`
	CloseReason *string `json:"close_reason,omitempty"`
}

// Publisher writes events to a topic exchange. A nil *Publisher is a valid
// no-op, so callers never need to branch on whether events are configured.
type Publisher struct {
	conn     *amqp091.Connection
	db       *gorm.DB
	exchange string
	logger   *zap.Logger
}

// New connects to RabbitMQ and declares the topic exchange.
func New(url, exchange string, db *gorm.DB, logger *zap.Logger) (*Publisher, error) {
	if url == "" {
		return nil, fmt.Errorf("events: amqp url is required")
	}
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: channel: %w", err)
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("events: declare exchange %s: %w", exchange, err)
	}
	return &Publisher{conn: conn, db: db, exchange: exchange, logger: logger}, nil
}

// Publish marshals the payload into an envelope, records it in the outbox,
// and publishes it persistently. Publish on a nil Publisher is a no-op.
func (p *Publisher) Publish(ctx context.Context, key string, payload any) error {
	if p == nil {
		return nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("events: marshal payload: %w", err)
	}
	env := Envelope{
		Meta:    Meta{ID: uuid.NewString(), Kind: key, OccurredAt: time.Now()},
		Payload: raw,
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("events: marshal envelope: %w", err)
	}

	outbox := models.OutboxEvent{
		ID:         env.Meta.ID,
		RoutingKey: key,
		Payload:    string(body),
		CreatedAt:  env.Meta.OccurredAt,
	}
	if p.db != nil {
		if err := p.db.Create(&outbox).Error; err != nil {
			return fmt.Errorf("events: record outbox: %w", err)
		}
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("events: channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    env.Meta.ID,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("events: publish %s: %w", key, err)
	}

	if p.db != nil {
		now := time.Now()
		p.db.Model(&models.OutboxEvent{}).Where("id = ?", env.Meta.ID).Update("published_at", now)
	}
	if p.logger != nil {
		p.logger.Debug("event published", zap.String("key", key), zap.String("id", env.Meta.ID))
	}
	return nil
}

// Close shuts down the broker connection. Safe on nil.
func (p *Publisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
