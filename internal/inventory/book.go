package inventory

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/monitoring"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

// BookRequest asks for Quantity temporary reservations.  A Quantity of
// zero or less books one ticket, a nil Expiration means now plus the
// reservation TTL and a blank Seat is stored as model.DefaultSeat.
type BookRequest struct {
	ConcertID  uint64
	Seat       string
	BuyerID    *uuid.UUID
	Expiration *time.Time
	Quantity   int
	Actor      string
}

func normalizeSeat(seat string) string {
	if s := strings.TrimSpace(seat); s != "" {
		return s
	}
	return model.DefaultSeat
}

func normalizeQuantity(q int) int {
	if q <= 0 {
		return 1
	}
	return q
}

// Book reserves tickets all-or-nothing.  The capacity check covers the
// whole batch: when it fails no ticket is written and the returned
// error is a *model.CapacityError.  Returned tickets are in creation
// order and share seat label, buyer and expiration.
func (s *Service) Book(ctx context.Context, req BookRequest) ([]model.Ticket, error) {
	concert, buyerEmail, err := s.concertAndBuyer(ctx, req.ConcertID, req.BuyerID)
	if err != nil {
		return nil, err
	}
	qty := normalizeQuantity(req.Quantity)
	seat := normalizeSeat(req.Seat)
	now := s.now()
	expiration := now.Add(s.cfg.ReservationTTL)
	if req.Expiration != nil {
		expiration = req.Expiration.UTC()
		if !expiration.After(now) {
			return nil, model.Invalidf("reservation expiration %s is not in the future", expiration.Format(time.RFC3339))
		}
	}

	var (
		created  []model.Ticket
		occupied int
		capacity int
	)
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		created = make([]model.Ticket, 0, qty)
		var err error
		if capacity, err = s.tickets.LockConcert(ctx, concert.ID); err != nil {
			return err
		}
		if _, err := s.expireLapsed(ctx, concert.ID, now); err != nil {
			return err
		}
		if occupied, err = s.checkCapacity(ctx, concert.ID, capacity, qty); err != nil {
			return err
		}
		for i := 0; i < qty; i++ {
			exp := expiration
			t := model.Ticket{
				ConcertID:             concert.ID,
				ConcertTitle:          concert.Title,
				BuyerID:               req.BuyerID,
				BuyerEmail:            buyerEmail,
				SeatNumber:            seat,
				PurchaseTimestamp:     now,
				Status:                model.TicketReserved,
				ReservationExpiration: &exp,
			}
			if err := s.tickets.Create(ctx, &t); err != nil {
				return err
			}
			created = append(created, t)
		}
		return nil
	})
	actor := s.actor(req.Actor)
	if err != nil {
		if errors.Is(err, ErrCapacityExceeded) {
			monitoring.TrackCapacityRejection(monitoring.OpBook)
			log.Printf("inventory: book rejected concert=%d requested=%d by=%s: %v", concert.ID, qty, actor, err)
		}
		return nil, err
	}

	log.Printf("inventory: booked n=%d concert=%d by=%s occupancy=%d/%d", qty, concert.ID, actor, occupied+qty, capacity)
	monitoring.TrackTickets(monitoring.OpBook, qty)
	s.publish(ctx, queue.TicketEvent{
		Type:         queue.EventTicketBooked,
		ConcertID:    concert.ID,
		ConcertTitle: concert.Title,
		TicketIDs:    ticketIDs(created),
		BuyerID:      buyerString(req.BuyerID),
		Seat:         seat,
		Actor:        actor,
	})
	return created, nil
}
