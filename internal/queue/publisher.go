package queue

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultDialTimeout    = 2 * time.Second
	defaultPublishTimeout = 2 * time.Second
	defaultBufferSize     = 1024
)

// ErrQueueFull is returned by Publish when the outbox is full.
var ErrQueueFull = errors.New("rabbitmq: event outbox full")

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("rabbitmq: publisher closed")

// Publisher sends TicketEvents to the ticket.events queue.  Publish
// only enqueues; a single goroutine owns the broker connection and
// sends events in order.  The connection is opened on first use and
// re-opened after a failure, so a broker outage only costs the events
// sent while it lasts.  Dials and publishes are bounded by timeouts so
// a hung broker cannot stall the outbox for long.
type Publisher struct {
	url            string
	dialTimeout    time.Duration
	publishTimeout time.Duration

	events    chan TicketEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// owned by run
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewPublisher returns a running Publisher for the broker at url.  No
// connection is made until the first event is sent.
func NewPublisher(url string) *Publisher {
	p := newPublisher(url, defaultDialTimeout, defaultBufferSize)
	go p.run()
	return p
}

func newPublisher(url string, dialTimeout time.Duration, buffer int) *Publisher {
	return &Publisher{
		url:            url,
		dialTimeout:    dialTimeout,
		publishTimeout: defaultPublishTimeout,
		events:         make(chan TicketEvent, buffer),
		quit:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Publish queues ev for sending and never waits on the broker.  It
// fails with ErrQueueFull when the outbox is full and with
// ErrPublisherClosed after Close.
func (p *Publisher) Publish(_ context.Context, ev TicketEvent) error {
	select {
	case <-p.quit:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		log.Printf("rabbitmq: outbox full, dropping %s", ev.Type)
		return ErrQueueFull
	}
}

// Close stops the sender after the event in flight, drops whatever is
// still queued and releases the broker connection.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
		<-p.done
	})
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	defer p.reset()
	for {
		select {
		case <-p.quit:
			if n := len(p.events); n > 0 {
				log.Printf("rabbitmq: closing with %d unsent events", n)
			}
			return
		case ev := <-p.events:
			_ = p.send(ev)
		}
	}
}

// send marshals and publishes one event.  Errors are logged.
func (p *Publisher) send(ev TicketEvent) error {
	body, err := encodeEvent(ev)
	if err != nil {
		log.Printf("rabbitmq: marshal event failed: %v", err)
		return err
	}
	ch, err := p.channel()
	if err != nil {
		log.Printf("rabbitmq: drop %s: %v", ev.Type, err)
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.publishTimeout)
	defer cancel()
	if err := ch.PublishWithContext(ctx, "", TicketEventsQueue, false, false, pub); err != nil {
		log.Printf("rabbitmq: publish %s failed: %v", ev.Type, err)
		p.reset()
		return err
	}
	return nil
}

// channel returns an open channel, dialing when needed.  The dial
// timeout also covers the AMQP handshake.
func (p *Publisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Dial:      amqp.DefaultDial(p.dialTimeout),
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
	})
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open failed: %w", err)
	}
	if _, err := ch.QueueDeclare(TicketEventsQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare failed: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *Publisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
