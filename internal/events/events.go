// Package events carries domain events over RabbitMQ.
package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	"github.com/jeweluxe/jeweluxe-golang/internal/metrics"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
)

// OrderPlacedQueue is the durable queue order.placed events are routed to.
const OrderPlacedQueue = "jeweluxe.order.placed"

// OrderPlacedEvent is published after a checkout commits. It carries
// everything the confirmation email needs so the consumer never queries the
// primary database.
type OrderPlacedEvent struct {
	OrderID       int64             `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	UserID        int64             `json:"user_id"`
	CustomerName  string            `json:"customer_name"`
	Email         string            `json:"email"`
	PaymentMethod string            `json:"payment_method"`
	Total         decimal.Decimal   `json:"total"`
	Items         []OrderPlacedItem `json:"items"`
	PlacedAt      time.Time         `json:"placed_at"`
}

type OrderPlacedItem struct {
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// Publisher publishes domain events. Failures are returned so callers can
// log them; a placed order is never rolled back because of one.
type Publisher interface {
	PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) error
}

// NewPublisher returns a RabbitMQ publisher, or a no-op one when url is empty.
func NewPublisher(url string) Publisher {
	if url == "" {
		return NoopPublisher{}
	}
	return &RabbitPublisher{url: url}
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderPlaced(context.Context, OrderPlacedEvent) error { return nil }

// RabbitPublisher opens a short-lived connection per event. Checkout volume
// is low enough that a pooled channel is not worth its reconnect handling.
type RabbitPublisher struct {
	url string
}

func (p *RabbitPublisher) PublishOrderPlaced(ctx context.Context, ev OrderPlacedEvent) (err error) {
	log := logging.NewPackageLogger("events")
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
			log.Error().Err(err).Str(logging.EVENT, "order.placed").Int64(logging.ORDER, ev.OrderID).Msg("publish failed")
		}
		metrics.EventsPublished.WithLabelValues("order.placed", result).Inc()
	}()

	conn, err := amqp.Dial(p.url)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer func() { _ = ch.Close() }()

	if _, err = ch.QueueDeclare(
		OrderPlacedQueue, // name
		true,             // durable
		false,            // autoDelete
		false,            // exclusive
		false,            // noWait
		nil,              // args
	); err != nil {
		return err
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	return ch.PublishWithContext(ctx,
		"",               // default exchange
		OrderPlacedQueue, // routing key = queue name
		false,            // mandatory
		false,            // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Type:         "order.placed",
			Body:         body,
		},
	)
}
