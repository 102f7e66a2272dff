package inventory

import (
	"context"
	"log"
	"strings"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/monitoring"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

// ReturnTicket puts a RESERVED or SOLD ticket back to AVAILABLE and
// frees its unit of capacity.  Only the buyer is cleared; seat, payment
// method, purchase timestamp and reservation expiration are kept.
// Ownership is not checked here.
func (s *Service) ReturnTicket(ctx context.Context, ticketID uint64, reason, actor string) (model.Ticket, error) {
	reason = strings.TrimSpace(reason)
	now := s.now()

	var (
		out  model.Ticket
		prev model.Ticket
	)
	err := s.tx.WithTx(ctx, func(ctx context.Context) error {
		var err error
		if prev, err = s.tickets.GetForUpdate(ctx, ticketID); err != nil {
			return err
		}
		if !prev.Status.Occupies() {
			return model.Invalidf("ticket %d is %s and cannot be returned", ticketID, prev.Status)
		}
		if err := s.tickets.MarkReturned(ctx, ticketID, reason, now); err != nil {
			return err
		}
		out, err = s.tickets.GetByID(ctx, ticketID)
		return err
	})
	if err != nil {
		return model.Ticket{}, err
	}

	actor = s.actor(actor)
	log.Printf("inventory: returned ticket=%d concert=%d was=%s by=%s", ticketID, out.ConcertID, prev.Status, actor)
	monitoring.TrackTickets(monitoring.OpReturn, 1)
	s.publish(ctx, queue.TicketEvent{
		Type:         queue.EventTicketReturned,
		ConcertID:    out.ConcertID,
		ConcertTitle: out.ConcertTitle,
		TicketIDs:    []uint64{ticketID},
		BuyerID:      buyerString(prev.BuyerID),
		Seat:         out.SeatNumber,
		Reason:       reason,
		Actor:        actor,
	})
	return out, nil
}
