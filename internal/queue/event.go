// Package queue defines the ticket events exchanged over RabbitMQ,
// the publisher used by the inventory and the audit-log consumer.
package queue

import (
	"encoding/json"
	"time"
)

// TicketEventsQueue is the durable queue every ticket event is routed to.
const TicketEventsQueue = "ticket.events"

// Event types.
const (
	EventTicketBooked        = "ticket.booked"
	EventTicketPurchased     = "ticket.purchased"
	EventTicketReturned      = "ticket.returned"
	EventReservationsExpired = "reservations.expired"
)

// TicketEvent is published after a ticket state change has committed.
// It carries enough information for downstream consumers to log,
// notify, or trigger analytics without querying the primary database.
// Count is only meaningful for reservations.expired.
type TicketEvent struct {
	Type          string   `json:"type"`
	ConcertID     uint64   `json:"concert_id,omitempty"`
	ConcertTitle  string   `json:"concert_title,omitempty"`
	TicketIDs     []uint64 `json:"ticket_ids,omitempty"`
	BuyerID       string   `json:"buyer_id,omitempty"`
	Seat          string   `json:"seat,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Actor         string   `json:"actor,omitempty"`
	Count         int64    `json:"count,omitempty"`
	OccurredAt    string   `json:"occurred_at"`
}

// Stamp sets OccurredAt to t in RFC 3339 UTC form.
func (e *TicketEvent) Stamp(t time.Time) {
	e.OccurredAt = t.UTC().Format(time.RFC3339)
}

func encodeEvent(ev TicketEvent) ([]byte, error) { return json.Marshal(ev) }

func decodeEvent(body []byte) (TicketEvent, error) {
	var ev TicketEvent
	err := json.Unmarshal(body, &ev)
	return ev, err
}
