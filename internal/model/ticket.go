package model

import (
	"time"

	"github.com/google/uuid"
)

// TicketStatus is the lifecycle state of a ticket row.
type TicketStatus string

const (
	TicketAvailable TicketStatus = "AVAILABLE"
	TicketReserved  TicketStatus = "RESERVED"
	TicketSold      TicketStatus = "SOLD"
)

// Valid reports whether s is one of the known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketAvailable, TicketReserved, TicketSold:
		return true
	}
	return false
}

// Occupies reports whether a ticket in this status consumes hall capacity.
func (s TicketStatus) Occupies() bool {
	return s == TicketReserved || s == TicketSold
}

// DefaultSeat is stored when the venue does not track seats (dance
// floor / general admission).
const DefaultSeat = "N/A"

// Ticket is the unit of inventory for a concert.  It corresponds to a
// row in the `tickets` table.  ConcertTitle and BuyerEmail are not
// columns of that table; they are filled from joins on reads so that
// callers do not have to look them up separately.
//
// Fields:
//  ID                    – primary key, assigned on insert.
//  ConcertID             – concert the ticket belongs to.
//  BuyerID               – owner of the ticket; nil when unowned.
//  SeatNumber            – free text seat label, "N/A" when unseated.
//  PurchaseTimestamp     – set once when the row is first inserted.
//  Status                – AVAILABLE, RESERVED or SOLD.
//  ReservationExpiration – when a RESERVED ticket lapses; nil otherwise.
//  PaymentMethod         – set on sale.
//  ReturnReason          – set on return.
//  ReturnTime            – set on return.
type Ticket struct {
	ID                    uint64       `json:"id"`
	ConcertID             uint64       `json:"concert_id"`
	ConcertTitle          string       `json:"concert_name,omitempty"`
	BuyerID               *uuid.UUID   `json:"buyer_id,omitempty"`
	BuyerEmail            string       `json:"buyer_email,omitempty"`
	SeatNumber            string       `json:"seat_number"`
	PurchaseTimestamp     time.Time    `json:"purchase_timestamp"`
	Status                TicketStatus `json:"status"`
	ReservationExpiration *time.Time   `json:"reservation_expiration,omitempty"`
	PaymentMethod         *string      `json:"payment_method,omitempty"`
	ReturnReason          *string      `json:"return_reason,omitempty"`
	ReturnTime            *time.Time   `json:"return_time,omitempty"`
}

// OwnedBy reports whether the ticket's buyer is the given user.
func (t Ticket) OwnedBy(userID uuid.UUID) bool {
	return t.BuyerID != nil && *t.BuyerID == userID
}
