package messaging

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// DefaultExchange receives every approval event
const DefaultExchange = "approval.events"

// Publisher publishes message bodies to one topic exchange
type Publisher struct {
	conn     *Connection
	exchange string
	logger   *zap.Logger
}

// NewPublisher declares the exchange and returns a publisher bound to it
func NewPublisher(ctx context.Context, conn *Connection, exchange string, logger *zap.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if err := conn.DeclareExchange(ctx, exchange); err != nil {
		return nil, err
	}
	return &Publisher{conn: conn, exchange: exchange, logger: logger}, nil
}

// Publish sends a persistent JSON message
func (p *Publisher) Publish(ctx context.Context, routingKey string, body []byte, headers map[string]interface{}) error {
	msgID := uuid.NewString()
	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msgID,
			Timestamp:    time.Now(),
			Headers:      amqp.Table(headers),
			Body:         body,
		})
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", p.exchange, routingKey, err)
		}

		p.logger.Debug("Published message",
			zap.String("exchange", p.exchange),
			zap.String("routing_key", routingKey),
			zap.String("message_id", msgID),
		)
		return nil
	})
}

// Close closes the underlying connection
func (p *Publisher) Close() error {
	return p.conn.Close()
}
