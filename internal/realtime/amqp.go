package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/iliyamo/vendor-portal/internal/logger"
)

// AMQPHub publishes changes to a RabbitMQ topic exchange with routing key
// "<table>.<vendor id>".  Every subscription gets its own exclusive,
// auto-deleted queue on its own channel.
type AMQPHub struct {
	conn     *amqp.Connection
	exchange string
	log      *slog.Logger

	mu    sync.Mutex // guards pubCh
	pubCh *amqp.Channel
}

// DialAMQP connects and declares the exchange (durable, idempotent).
func DialAMQP(url, exchange string, log *slog.Logger) (*AMQPHub, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("exchange declare: %w", err)
	}
	return &AMQPHub{
		conn:     conn,
		exchange: exchange,
		log:      logger.Component(log, "realtime"),
		pubCh:    ch,
	}, nil
}

// RoutingKey builds the topic key of a change.  Dots inside a segment would
// split it, so they are replaced.
func RoutingKey(table, vendorID string) string {
	seg := func(s string) string {
		s = strings.TrimSpace(s)
		if s == "" || s == Any {
			return "*"
		}
		return strings.ReplaceAll(s, ".", "_")
	}
	return seg(table) + "." + seg(vendorID)
}

func (h *AMQPHub) Publish(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	body, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal change: %w", err)
	}
	pub := amqp.Publishing{
		ContentType: "application/json",
		Timestamp:   c.At,
		Body:        body,
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.pubCh == nil || h.pubCh.IsClosed() {
		ch, err := h.conn.Channel()
		if err != nil {
			return fmt.Errorf("channel open: %w", err)
		}
		h.pubCh = ch
	}
	if err := h.pubCh.PublishWithContext(ctx, h.exchange, RoutingKey(c.Table, c.VendorID), false, false, pub); err != nil {
		h.log.Error("publish failed", "table", c.Table, "vendor_id", c.VendorID, "error", err)
		return err
	}
	return nil
}

func (h *AMQPHub) Subscribe(table, vendorID string, fn func(Change)) (Subscription, error) {
	ch, err := h.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("channel open: %w", err)
	}
	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(q.Name, RoutingKey(table, vendorID), h.exchange, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue bind: %w", err)
	}
	tag := "sub-" + q.Name
	msgs, err := ch.Consume(q.Name, tag, true, true, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("queue consume: %w", err)
	}

	s := &amqpSubscription{ch: ch, tag: tag, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		for d := range msgs {
			var c Change
			if err := json.Unmarshal(d.Body, &c); err != nil {
				h.log.Warn("dropping malformed change", "error", err)
				continue
			}
			fn(c)
		}
	}()
	return s, nil
}

func (h *AMQPHub) Close() error {
	h.mu.Lock()
	if h.pubCh != nil {
		_ = h.pubCh.Close()
		h.pubCh = nil
	}
	h.mu.Unlock()
	return h.conn.Close()
}

type amqpSubscription struct {
	ch   *amqp.Channel
	tag  string
	done chan struct{}
	once sync.Once
	err  error
}

// Close cancels the consumer and closes the channel, which deletes the
// exclusive queue.  It waits for the delivery goroutine to finish.
func (s *amqpSubscription) Close() error {
	s.once.Do(func() {
		err := s.ch.Cancel(s.tag, false)
		if cerr := s.ch.Close(); cerr != nil && !errors.Is(cerr, amqp.ErrClosed) {
			err = errors.Join(err, cerr)
		}
		s.err = err
		<-s.done
	})
	return s.err
}
