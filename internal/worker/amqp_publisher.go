package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"carwash/internal/models"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher hands one mail request to the external dispatcher.
type Publisher interface {
	Publish(ctx context.Context, req *models.MailRequest) error
}

// AMQPPublisher pushes mail requests onto a durable RabbitMQ queue watched
// by the delivery process. Dialing per publish keeps the worker free of
// connection state; volume here is a handful of messages per booking.
type AMQPPublisher struct {
	url   string
	queue string
}

func NewAMQPPublisher(url, queue string) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue}
}

// mailEnvelope is the wire shape the dispatcher consumes: the outbox key
// plus the documented {to, message:{subject, html}} payload.
type mailEnvelope struct {
	Key     string             `json:"key"`
	To      string             `json:"to"`
	Message models.MailMessage `json:"message"`
}

func (p *AMQPPublisher) Publish(ctx context.Context, req *models.MailRequest) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return fmt.Errorf("amqp dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("amqp channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	// Durable queue so queued mail survives broker restarts.
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("amqp queue declare: %w", err)
	}

	body, err := json.Marshal(mailEnvelope{Key: req.Key, To: req.To, Message: req.Message})
	if err != nil {
		return fmt.Errorf("marshal mail envelope: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    req.Key,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, pub); err != nil {
		return fmt.Errorf("amqp publish: %w", err)
	}
	return nil
}
