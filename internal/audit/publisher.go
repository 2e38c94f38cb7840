package audit

import (
	"context"
	"encoding/json"

	"github.com/streadway/amqp"

	"medauth-service/internal/logger"
)

// Publisher mirrors every appended entry to a message broker so external
// consumers (SIEM, compliance archive) can follow the trail live.
type Publisher interface {
	Publish(exchange string, body []byte) error
}

type AMQPPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher creates a new AMQPPublisher and connects to RabbitMQ.
func NewAMQPPublisher(amqpURL string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	return &AMQPPublisher{conn: conn, channel: ch}, nil
}

// Publish publishes a message to the given fanout exchange.
func (p *AMQPPublisher) Publish(exchange string, body []byte) error {
	err := p.channel.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}
	return p.channel.Publish(
		exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
}

// Close closes the RabbitMQ connection and channel.
func (p *AMQPPublisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}

const auditExchange = "audit.entries"

// FanoutLog wraps a Log and mirrors each appended entry to a publisher.
// The underlying append decides success; a broker failure is logged and
// swallowed so the trail of record never depends on the mirror.
type FanoutLog struct {
	inner     Log
	publisher Publisher
}

func NewFanoutLog(inner Log, publisher Publisher) *FanoutLog {
	return &FanoutLog{inner: inner, publisher: publisher}
}

func (f *FanoutLog) Append(ctx context.Context, e Entry) error {
	if err := f.inner.Append(ctx, e); err != nil {
		return err
	}

	body, err := json.Marshal(e)
	if err != nil {
		return nil
	}

	if err := f.publisher.Publish(auditExchange, body); err != nil {
		logger.Warn("audit mirror publish failed", map[string]any{
			"session_id": e.SessionID,
			"event":      string(e.Event),
			"error":      err.Error(),
		})
	}
	return nil
}

func (f *FanoutLog) Entries(ctx context.Context, sessionID string) ([]Entry, error) {
	return f.inner.Entries(ctx, sessionID)
}
