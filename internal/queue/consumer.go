package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// StartAuditConsumer connects to RabbitMQ, declares the ticket.events
// queue (durable) and appends every event to the file at logPath as a
// single human-friendly line.  It reconnects with exponential backoff
// and only returns once ctx is cancelled.  Messages that cannot be
// handled are rejected without requeue so the loop keeps moving.
func StartAuditConsumer(ctx context.Context, url, logPath string) error {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("audit-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		err = consumeLoop(ctx, conn, logPath)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Printf("audit-consumer: consume loop ended: %v; reconnecting", err)
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

func consumeLoop(ctx context.Context, conn *amqp.Connection, logPath string) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("audit-consumer: set QoS failed: %v", err)
	}
	if _, err := ch.QueueDeclare(TicketEventsQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(TicketEventsQueue, "", false, false, false, false, nil)
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
			if err := handleMessage(logPath, d.Body); err != nil {
				log.Printf("audit-consumer: handle message failed: %v", err)
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func handleMessage(logPath string, body []byte) error {
	ev, err := decodeEvent(body)
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if ev.Type == "" {
		return errors.New("event without type")
	}
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(formatLine(ev)); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatLine(ev TicketEvent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", ev.OccurredAt, ev.Type)
	if ev.ConcertID != 0 {
		fmt.Fprintf(&b, " | concert_id=%d", ev.ConcertID)
	}
	if ev.ConcertTitle != "" {
		fmt.Fprintf(&b, " | concert=%q", ev.ConcertTitle)
	}
	if len(ev.TicketIDs) > 0 {
		ids := make([]string, len(ev.TicketIDs))
		for i, id := range ev.TicketIDs {
			ids[i] = fmt.Sprint(id)
		}
		fmt.Fprintf(&b, " | tickets=[%s]", strings.Join(ids, ","))
	}
	if ev.BuyerID != "" {
		fmt.Fprintf(&b, " | buyer_id=%s", ev.BuyerID)
	}
	if ev.Seat != "" {
		fmt.Fprintf(&b, " | seat=%s", ev.Seat)
	}
	if ev.PaymentMethod != "" {
		fmt.Fprintf(&b, " | payment=%s", ev.PaymentMethod)
	}
	if ev.Reason != "" {
		fmt.Fprintf(&b, " | reason=%q", ev.Reason)
	}
	if ev.Type == EventReservationsExpired {
		fmt.Fprintf(&b, " | count=%d", ev.Count)
	}
	if ev.Actor != "" {
		fmt.Fprintf(&b, " | actor=%s", ev.Actor)
	}
	b.WriteByte('\n')
	return b.String()
}
