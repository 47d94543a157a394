package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeweluxe/jeweluxe-golang/internal/email"
	"github.com/jeweluxe/jeweluxe-golang/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// StartOrderConsumer consumes order.placed events and sends the order
// confirmation email for each. It reconnects with exponential backoff and
// returns only when ctx is cancelled.
func StartOrderConsumer(ctx context.Context, url string, mailer email.Sender) {
	log := logging.NewPackageLogger("events")

	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Warn().Err(err).Dur("retry_in", backoff).Msg("order consumer: dial failed")
			if !sleep(ctx, backoff) {
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, mailer)
		_ = conn.Close()
		if ctx.Err() != nil {
			log.Info().Msg("order consumer stopped")
			return
		}
		log.Warn().Err(err).Msg("order consumer: loop ended, reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return
		}
	}
}

func consumeLoop(ctx context.Context, conn *amqp.Connection, mailer email.Sender) error {
	log := logging.NewPackageLogger("events")

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(10, 0, false); err != nil {
		log.Warn().Err(err).Msg("order consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(OrderPlacedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(OrderPlacedQueue, "", false, false, false, false, nil)
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
			if err := HandleOrderPlaced(d.Body, mailer); err != nil {
				log.Error().Err(err).Msg("order consumer: handle message failed")
				// reject without requeue to avoid a poison-message loop
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

// HandleOrderPlaced decodes one event and sends its confirmation email.
func HandleOrderPlaced(body []byte, mailer email.Sender) error {
	var ev OrderPlacedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Email == "" || ev.OrderNumber == "" {
		return errors.New("event missing email or order number")
	}

	lines := make([]email.OrderLine, 0, len(ev.Items))
	for _, it := range ev.Items {
		lines = append(lines, email.OrderLine{Name: it.Name, Quantity: it.Quantity, LineTotal: it.LineTotal})
	}
	return email.SendOrderConfirmation(mailer, ev.Email, ev.CustomerName, ev.OrderNumber, ev.PaymentMethod, ev.Total, lines)
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
