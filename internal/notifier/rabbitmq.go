// Package notifier publishes operator-facing messages: publish outcomes
// and engagement escalations. Consumers (dashboards, on-call tooling)
// bind to the routing keys; the core never depends on them.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"socialflow/internal/domain"
)

const (
	routingKeyOutcome    = "outcome"
	routingKeyEscalation = "escalation"
)

type Config struct {
	URL             string
	Exchange        string
	OutcomeQueue    string
	EscalationQueue string
}

type RabbitMQ struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	logger   *slog.Logger
}

func NewRabbitMQ(cfg Config, logger *slog.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		cfg.Exchange,
		"direct",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	queues := map[string]string{
		cfg.OutcomeQueue:    routingKeyOutcome,
		cfg.EscalationQueue: routingKeyEscalation,
	}
	for queue, key := range queues {
		q, err := ch.QueueDeclare(queue, true, false, false, false, nil)
		if err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", queue, err)
		}
		if err := ch.QueueBind(q.Name, key, cfg.Exchange, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"outcome_queue", cfg.OutcomeQueue,
		"escalation_queue", cfg.EscalationQueue,
	)

	return &RabbitMQ{
		conn:     conn,
		channel:  ch,
		exchange: cfg.Exchange,
		logger:   logger,
	}, nil
}

// OutcomeMessage reports one terminal publish result.
type OutcomeMessage struct {
	ContentID    string    `json:"content_id"`
	Platform     string    `json:"platform"`
	Status       string    `json:"status"`
	NativePostID string    `json:"native_post_id,omitempty"`
	Attempts     int       `json:"attempts"`
	Timestamp    time.Time `json:"timestamp"`
}

// EscalationMessage hands one engagement event to a human.
type EscalationMessage struct {
	Platform   string    `json:"platform"`
	NativeID   string    `json:"native_id"`
	Kind       string    `json:"kind"`
	Author     string    `json:"author"`
	Body       string    `json:"body"`
	ObservedAt time.Time `json:"observed_at"`
	Timestamp  time.Time `json:"timestamp"`
}

func (r *RabbitMQ) PublishOutcome(ctx context.Context, entry *domain.PublishPlanEntry) error {
	msg := OutcomeMessage{
		ContentID: entry.ContentID,
		Platform:  entry.Platform,
		Status:    string(entry.Status),
		Attempts:  entry.Attempts,
		Timestamp: time.Now().UTC(),
	}
	if entry.NativePostID != nil {
		msg.NativePostID = *entry.NativePostID
	}

	if err := r.publish(ctx, routingKeyOutcome, msg); err != nil {
		return err
	}

	r.logger.Debug("published outcome", "content_id", entry.ContentID, "status", entry.Status)
	return nil
}

func (r *RabbitMQ) Escalate(ctx context.Context, ev *domain.EngagementEvent) error {
	msg := EscalationMessage{
		Platform:   ev.Platform,
		NativeID:   ev.NativeID,
		Kind:       string(ev.Kind),
		Author:     ev.Author,
		Body:       ev.Body,
		ObservedAt: ev.ObservedAt,
		Timestamp:  time.Now().UTC(),
	}

	if err := r.publish(ctx, routingKeyEscalation, msg); err != nil {
		return err
	}

	r.logger.Debug("published escalation", "platform", ev.Platform, "native_id", ev.NativeID)
	return nil
}

func (r *RabbitMQ) publish(ctx context.Context, routingKey string, msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	err = r.channel.PublishWithContext(
		ctx,
		r.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (r *RabbitMQ) Close() error {
	if r.channel != nil {
		r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}
