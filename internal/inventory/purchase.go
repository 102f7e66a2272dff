package inventory

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/monitoring"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

// PurchaseRequest asks for Quantity sold tickets.  When BuyerID is set
// the buyer's own reservations for the concert are converted first.
type PurchaseRequest struct {
	ConcertID     uint64
	Seat          string
	BuyerID       *uuid.UUID
	PaymentMethod string
	Quantity      int
	Actor         string
}

// SellRequest is the cashier flow: the buyer is identified by email.
type SellRequest struct {
	ConcertID     uint64
	BuyerEmail    string
	PaymentMethod string
	Quantity      int
	Actor         string
}

// Purchase sells tickets, converting up to Quantity of the buyer's
// RESERVED tickets and creating SOLD tickets for the rest.  The
// capacity check for the new tickets happens before any row is
// touched, so a rejected purchase leaves the buyer's reservations as
// they were.  Converted reservations come first in the result.
func (s *Service) Purchase(ctx context.Context, req PurchaseRequest) ([]model.Ticket, error) {
	concert, buyerEmail, err := s.concertAndBuyer(ctx, req.ConcertID, req.BuyerID)
	if err != nil {
		return nil, err
	}
	qty := normalizeQuantity(req.Quantity)
	seat := normalizeSeat(req.Seat)
	payment := strings.TrimSpace(req.PaymentMethod)
	if payment == "" {
		payment = DefaultPaymentMethod
	}
	now := s.now()

	var (
		sold      []model.Ticket
		converted int
		capacity  int
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		sold = make([]model.Ticket, 0, qty)
		var err error
		if capacity, err = s.tickets.LockConcert(ctx, concert.ID); err != nil {
			return err
		}
		if _, err := s.expireLapsed(ctx, concert.ID, now); err != nil {
			return err
		}

		var reserved []model.Ticket
		if req.BuyerID != nil {
			if reserved, err = s.tickets.ReservedByBuyerForUpdate(ctx, concert.ID, *req.BuyerID, qty); err != nil {
				return err
			}
		}
		shortfall := qty - len(reserved)
		if shortfall > 0 {
			if _, err := s.checkCapacity(ctx, concert.ID, capacity, shortfall); err != nil {
				return err
			}
		}

		for _, t := range reserved {
			if err := s.tickets.MarkSold(ctx, t.ID, payment); err != nil {
				return err
			}
			pm := payment
			t.Status = model.TicketSold
			t.ReservationExpiration = nil
			t.PaymentMethod = &pm
			t.ConcertTitle = concert.Title
			t.BuyerEmail = buyerEmail
			sold = append(sold, t)
		}
		converted = len(reserved)

		for i := 0; i < shortfall; i++ {
			pm := payment
			t := model.Ticket{
				ConcertID:         concert.ID,
				ConcertTitle:      concert.Title,
				BuyerID:           req.BuyerID,
				BuyerEmail:        buyerEmail,
				SeatNumber:        seat,
				PurchaseTimestamp: now,
				Status:            model.TicketSold,
				PaymentMethod:     &pm,
			}
			if err := s.tickets.Create(ctx, &t); err != nil {
				return err
			}
			sold = append(sold, t)
		}
		return nil
	})
	actor := s.actor(req.Actor)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			monitoring.TrackCapacityRejection(monitoring.OpPurchase)
			log.Printf("inventory: purchase rejected concert=%d requested=%d by=%s: %v", concert.ID, qty, actor, err)
		}
		return nil, err
	}

	log.Printf("inventory: sold n=%d converted=%d concert=%d payment=%s by=%s capacity=%d",
		len(sold), converted, concert.ID, payment, actor, capacity)
	monitoring.TrackTickets(monitoring.OpPurchase, len(sold))
	s.publish(ctx, queue.TicketEvent{
		Type:          queue.EventTicketPurchased,
		ConcertID:     concert.ID,
		ConcertTitle:  concert.Title,
		TicketIDs:     ticketIDs(sold),
		BuyerID:       buyerString(req.BuyerID),
		PaymentMethod: payment,
		Actor:         actor,
	})
	return sold, nil
}

// Sell resolves the buyer by email and purchases on their behalf.
func (s *Service) Sell(ctx context.Context, req SellRequest) ([]model.Ticket, error) {
	email := strings.TrimSpace(req.BuyerEmail)
	if email == "" {
		return nil, model.Invalidf("buyer email is required for a sale")
	}
	buyer, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	return s.Purchase(ctx, PurchaseRequest{
		ConcertID:     req.ConcertID,
		BuyerID:       &buyer.ID,
		PaymentMethod: req.PaymentMethod,
		Quantity:      req.Quantity,
		Actor:         req.Actor,
	})
}
