package inventory

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
)

// TicketFilter selects tickets for ListTickets.  Only one field is
// applied, the first set one in this order: ConcertID, BuyerID,
// ConcertName, BuyerEmail, Status.  With none set every ticket is listed.
type TicketFilter struct {
	ConcertID   *uint64
	BuyerID     *uuid.UUID
	ConcertName string
	BuyerEmail  string
	Status      model.TicketStatus
}

// Get returns one ticket.
func (s *Service) Get(ctx context.Context, ticketID uint64) (model.Ticket, error) {
	return s.tickets.GetByID(ctx, ticketID)
}

// CreateAvailable adds an unsold ticket for a seat.  The seat label is
// required and must not exist yet for the concert in any status.
func (s *Service) CreateAvailable(ctx context.Context, concertID uint64, seat string) (model.Ticket, error) {
	seat = strings.TrimSpace(seat)
	if seat == "" {
		return model.Ticket{}, model.Invalidf("seat number is required")
	}
	concert, err := s.concerts.GetByID(ctx, concertID)
	if err != nil {
		return model.Ticket{}, err
	}
	t := model.Ticket{
		ConcertID:         concert.ID,
		ConcertTitle:      concert.Title,
		SeatNumber:        seat,
		PurchaseTimestamp: s.now(),
		Status:            model.TicketAvailable,
	}
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if _, err := s.tickets.LockConcert(ctx, concert.ID); err != nil {
			return err
		}
		exists, err := s.tickets.ExistsByConcertAndSeatWithStatus(ctx, concert.ID, seat,
			[]model.TicketStatus{model.TicketAvailable, model.TicketReserved, model.TicketSold})
		if err != nil {
			return err
		}
		if exists {
			return model.Invalidf("seat %s already exists for concert %d", seat, concert.ID)
		}
		return s.tickets.Create(ctx, &t)
	})
	if err != nil {
		return model.Ticket{}, err
	}
	return t, nil
}

// Availability lists every ticket row of a concert, in any status.
func (s *Service) Availability(ctx context.Context, concertID uint64, page model.PageRequest) (model.Page[model.Ticket], error) {
	if _, err := s.concerts.GetByID(ctx, concertID); err != nil {
		return model.Page[model.Ticket]{}, err
	}
	return s.tickets.ListByConcert(ctx, concertID, page)
}

// ListTickets applies exactly one filter of f; see TicketFilter.
func (s *Service) ListTickets(ctx context.Context, f TicketFilter, page model.PageRequest) (model.Page[model.Ticket], error) {
	name := strings.TrimSpace(f.ConcertName)
	email := strings.TrimSpace(f.BuyerEmail)
	switch {
	case f.ConcertID != nil:
		return s.tickets.ListByConcert(ctx, *f.ConcertID, page)
	case f.BuyerID != nil:
		return s.tickets.ListByBuyer(ctx, *f.BuyerID, page)
	case name != "":
		return s.tickets.ListByConcertName(ctx, name, page)
	case email != "":
		return s.tickets.ListByBuyerEmail(ctx, email, page)
	case f.Status != "":
		if !f.Status.Valid() {
			return model.Page[model.Ticket]{}, model.Invalidf("unknown ticket status %q", f.Status)
		}
		return s.tickets.ListByStatus(ctx, f.Status, page)
	default:
		return s.tickets.ListAll(ctx, page)
	}
}

// TicketsByBuyer lists the tickets a user currently owns.
func (s *Service) TicketsByBuyer(ctx context.Context, buyerID uuid.UUID, page model.PageRequest) (model.Page[model.Ticket], error) {
	return s.tickets.ListByBuyer(ctx, buyerID, page)
}

// SalesHistory lists tickets first persisted within [from, to].
func (s *Service) SalesHistory(ctx context.Context, from, to time.Time, page model.PageRequest) (model.Page[model.Ticket], error) {
	if from.After(to) {
		return model.Page[model.Ticket]{}, model.Invalidf("from %s is after to %s", from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	return s.tickets.ListByPurchaseRange(ctx, from, to, page)
}

// Occupancy reports capacity, RESERVED plus SOLD count and what is left.
func (s *Service) Occupancy(ctx context.Context, concertID uint64) (model.Occupancy, error) {
	concert, err := s.concerts.GetByID(ctx, concertID)
	if err != nil {
		return model.Occupancy{}, err
	}
	occupied, err := s.tickets.CountOccupied(ctx, concertID)
	if err != nil {
		return model.Occupancy{}, err
	}
	return model.NewOccupancy(concertID, concert.HallCapacity, occupied), nil
}

// ConcertStats is Occupancy plus the row count per status.
func (s *Service) ConcertStats(ctx context.Context, concertID uint64) (model.ConcertStats, error) {
	concert, err := s.concerts.GetByID(ctx, concertID)
	if err != nil {
		return model.ConcertStats{}, err
	}
	counts, err := s.tickets.CountByStatus(ctx, &concertID)
	if err != nil {
		return model.ConcertStats{}, err
	}
	sold, reserved := counts[model.TicketSold], counts[model.TicketReserved]
	return model.ConcertStats{
		Occupancy:     model.NewOccupancy(concertID, concert.HallCapacity, sold+reserved),
		Sold:          sold,
		Reserved:      reserved,
		AvailableRows: counts[model.TicketAvailable],
	}, nil
}

// Statistics counts ticket rows across all concerts.
func (s *Service) Statistics(ctx context.Context) (model.TicketStatistics, error) {
	counts, err := s.tickets.CountByStatus(ctx, nil)
	if err != nil {
		return model.TicketStatistics{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	return model.TicketStatistics{TotalTickets: total, ByStatus: counts}, nil
}
