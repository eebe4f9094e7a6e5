package messaging

import (
	"context"
	"fmt"

	"github.com/rabbitmq/amqp091-go"

	"shopflow/internal/outbox"
)

// RabbitPublisher publishes outbox messages to one fanout exchange. The
// outbox message id travels as the AMQP MessageId so consumers can dedup,
// and outbox headers (including the trace id) are forwarded verbatim.
type RabbitPublisher struct {
	conn     *amqp091.Connection
	exchange string
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &RabbitPublisher{conn: conn, exchange: exchange}, nil
}

func (p *RabbitPublisher) Publish(ctx context.Context, msg outbox.Message) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	headers := amqp091.Table{}
	for k, v := range msg.Headers {
		headers[k] = v
	}

	return ch.PublishWithContext(ctx, p.exchange, "", false, false, amqp091.Publishing{
		ContentType:  "application/json",
		MessageId:    msg.ID.String(),
		Type:         msg.EventType,
		Headers:      headers,
		Body:         msg.Payload,
		DeliveryMode: amqp091.Persistent,
	})
}

func (p *RabbitPublisher) Close() error {
	return p.conn.Close()
}
