package mq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// Publisher delivers tamper alerts to the notification exchange. Delivery
// beyond the broker is the notification service's concern; this worker only
// hands messages off.
type Publisher struct {
	conn     *Connection
	channel  *amqp.Channel
	exchange string
	logger   *zap.Logger
}

// NewPublisher creates a new RabbitMQ publisher
func NewPublisher(conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to create channel: %w", err)
	}

	// Declare exchange
	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

// AlertMessage is the notification payload published for a tamper event.
type AlertMessage struct {
	EventID         string  `json:"event_id"`
	InstallationID  string  `json:"installation_id"`
	EventType       string  `json:"event_type"`
	Severity        string  `json:"severity"`
	ConfidenceScore float64 `json:"confidence_score"`
	Description     string  `json:"description"`
	Channel         string  `json:"channel"`
	ResponseType    string  `json:"response_type"`
	Timestamp       string  `json:"timestamp"`
}

// PublishAlert publishes a tamper alert message
func (p *Publisher) PublishAlert(ctx context.Context, msg AlertMessage, routingKey string) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	err = p.channel.PublishWithContext(
		ctx,
		p.exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)

	if err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	p.logger.Debug("published tamper alert",
		zap.String("routing_key", routingKey),
		zap.String("event_id", msg.EventID),
		zap.String("channel", msg.Channel),
	)

	return nil
}

// Close closes the publisher channel
func (p *Publisher) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
