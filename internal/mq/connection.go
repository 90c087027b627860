package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Connection is the single shared AMQP connection. The ingest consumer and
// the alert publisher each open their own channel from it.
type Connection struct {
	conn *amqp.Connection
}

// NewConnection dials the broker and ties the connection to the application
// lifecycle, closing it on shutdown.
func NewConnection(lc fx.Lifecycle, logger *zap.Logger, url string) (*Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ (is the broker running and RABBITMQ_URL correct?): %w", err)
	}
	logger.Info("rabbitmq connection established")

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := conn.Close(); err != nil {
				logger.Error("failed to close rabbitmq connection", zap.Error(err))
				return err
			}
			logger.Info("rabbitmq connection closed")
			return nil
		},
	})

	return &Connection{conn: conn}, nil
}

// Channel opens a new channel on the shared connection.
func (c *Connection) Channel() (*amqp.Channel, error) {
	return c.conn.Channel()
}
