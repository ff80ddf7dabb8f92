package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Channel is the part of *amqp.Channel the notifier uses.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes digests as persistent JSON messages.
type AMQPNotifier struct {
	conn       *amqp.Connection
	ch         Channel
	Exchange   string
	RoutingKey string
}

// DialAMQP connects and declares a durable direct exchange.
func DialAMQP(url, exchange, routingKey string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	n := NewAMQPNotifier(ch, exchange, routingKey)
	n.conn = conn
	return n, nil
}

func NewAMQPNotifier(ch Channel, exchange, routingKey string) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, Exchange: exchange, RoutingKey: routingKey}
}

func (n *AMQPNotifier) Notify(ctx context.Context, d Digest) error {
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode digest: %w", err)
	}
	err = n.ch.PublishWithContext(ctx,
		n.Exchange,
		n.RoutingKey,
		false, false,
		amqp.Publishing{
			ContentType:  "application/json",
			Type:         "recurring_payment_reminder",
			Body:         body,
			Timestamp:    time.Now(),
			DeliveryMode: amqp.Persistent,
			Headers:      amqp.Table{"subject": d.Subject()},
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish digest: %w", err)
	}
	return nil
}

// Close closes the connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
