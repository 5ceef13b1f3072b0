package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/vendor-portal/internal/realtime"
)

// Handler turns one message body into a log line.
type Handler func(body []byte) (string, error)

// Consumer drains one durable queue into a log file, reconnecting with
// exponential backoff until ctx is cancelled.
type Consumer struct {
	URL      string
	Queue    string
	Exchange string // when set the queue is bound to it with BindKey
	BindKey  string
	LogPath  string
	Handle   Handler
	Log      *slog.Logger
}

// MailConsumer records password reset mails in dir/mail.log.  It stands in
// for a real mail relay in development.
func MailConsumer(url, dir string, log *slog.Logger) *Consumer {
	return &Consumer{
		URL:     url,
		Queue:   MailQueue,
		LogPath: filepath.Join(dir, "mail.log"),
		Handle:  FormatMail,
		Log:     log,
	}
}

// ChangeConsumer records every row change published on exchange in
// dir/changes.log.
func ChangeConsumer(url, exchange, dir string, log *slog.Logger) *Consumer {
	return &Consumer{
		URL:      url,
		Queue:    AuditQueue,
		Exchange: exchange,
		BindKey:  "#",
		LogPath:  filepath.Join(dir, "changes.log"),
		Handle:   FormatChange,
		Log:      log,
	}
}

// Run blocks until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	log := c.Log
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "consumer", "queue", c.Queue)

	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.URL)
		if err != nil {
			log.Warn("failed to dial broker", "error", err, "retry_in", backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = c.consumeLoop(ctx, conn, log)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Warn("consume loop ended; reconnecting", "error", err)
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consumeLoop(ctx context.Context, conn *amqp.Connection, log *slog.Logger) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Warn("set QoS failed", "error", err)
	}
	if _, err := ch.QueueDeclare(c.Queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if c.Exchange != "" {
		if err := ch.ExchangeDeclare(c.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
			return fmt.Errorf("exchange declare: %w", err)
		}
		if err := ch.QueueBind(c.Queue, c.BindKey, c.Exchange, false, nil); err != nil {
			return fmt.Errorf("queue bind: %w", err)
		}
	}
	msgs, err := ch.Consume(c.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				log.Error("handle message failed", "error", err)
				_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	line, err := c.Handle(body)
	if err != nil {
		return err
	}
	return AppendLine(c.LogPath, line)
}

// AppendLine appends line and a newline to path, creating its directory.
func AppendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

// FormatMail renders a PasswordResetMail.  The token is included because
// the log is the development outbox.
func FormatMail(body []byte) (string, error) {
	var m PasswordResetMail
	if err := json.Unmarshal(body, &m); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if m.Email == "" || m.Token == "" {
		return "", errors.New("mail without recipient or token")
	}
	return fmt.Sprintf("[%s] Password reset | to=%s | token=%s | expires_at=%s",
		m.RequestedAt.UTC().Format(time.RFC3339), m.Email, m.Token, m.ExpiresAt.UTC().Format(time.RFC3339)), nil
}

// FormatChange renders a realtime.Change.
func FormatChange(body []byte) (string, error) {
	var c realtime.Change
	if err := json.Unmarshal(body, &c); err != nil {
		return "", fmt.Errorf("unmarshal: %w", err)
	}
	if c.Table == "" {
		return "", errors.New("change without table")
	}
	return fmt.Sprintf("[%s] %s %s | vendor_id=%s | row_id=%s",
		c.At.UTC().Format(time.RFC3339), c.Op, c.Table, c.VendorID, c.RowID), nil
}
