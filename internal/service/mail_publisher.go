// Package service holds the broker-facing side of outgoing mail.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/vendor-portal/internal/queue"
)

// MailPublisher queues password reset mails on RabbitMQ.  It implements
// authority.Mailer.  A connection is opened per message; reset requests are
// rare.
type MailPublisher struct {
	URL string
	Log *slog.Logger
}

func (p *MailPublisher) SendPasswordReset(ctx context.Context, email, token string, expiresAt time.Time) error {
	log := p.Log
	if log == nil {
		log = slog.Default()
	}
	conn, err := amqp.Dial(p.URL)
	if err != nil {
		log.Error("rabbitmq: dial failed", "error", err)
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		log.Error("rabbitmq: channel open failed", "error", err)
		return err
	}
	defer func() { _ = ch.Close() }()

	// durable so mail survives broker restarts
	if _, err := ch.QueueDeclare(queue.MailQueue, true, false, false, false, nil); err != nil {
		log.Error("rabbitmq: queue declare failed", "error", err)
		return err
	}

	body, err := json.Marshal(queue.PasswordResetMail{
		Email:       email,
		Token:       token,
		ExpiresAt:   expiresAt.UTC(),
		RequestedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", queue.MailQueue, false, false, pub); err != nil {
		log.Error("rabbitmq: publish failed", "error", err)
		return err
	}
	return nil
}
