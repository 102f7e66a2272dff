// Package inventory owns every capacity-aware ticket state transition:
// booking, purchase, sale, return and reservation expiry, plus the
// read side used by the HTTP handlers.
//
// For any concert the number of RESERVED plus SOLD tickets never
// exceeds the capacity of its hall.  Every operation that can consume
// capacity runs in one transaction that first locks the concert row,
// so the count-then-insert sequence is serialized per concert while
// different concerts proceed in parallel.
package inventory

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/concert-ticketing/internal/model"
	"github.com/iliyamo/concert-ticketing/internal/queue"
)

// Errors returned by the inventory.  Match them with errors.Is; use
// errors.As with *model.CapacityError to read the counts.
var (
	ErrNotFound         = model.ErrNotFound
	ErrConcertNotFound  = model.ErrConcertNotFound
	ErrBuyerNotFound    = model.ErrBuyerNotFound
	ErrTicketNotFound   = model.ErrTicketNotFound
	ErrCapacityExceeded = model.ErrCapacityExceeded
	ErrInvalidRequest   = model.ErrInvalidRequest
)

// TicketStore is the durable ticket table.  Implementations join the
// transaction carried by ctx.
type TicketStore interface {
	// LockConcert row-locks the concert until the surrounding
	// transaction ends and returns its hall capacity.
	LockConcert(ctx context.Context, concertID uint64) (int, error)
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uint64) (model.Ticket, error)
	GetForUpdate(ctx context.Context, id uint64) (model.Ticket, error)
	ReservedByBuyerForUpdate(ctx context.Context, concertID uint64, buyerID uuid.UUID, limit int) ([]model.Ticket, error)
	MarkSold(ctx context.Context, id uint64, paymentMethod string) error
	MarkReturned(ctx context.Context, id uint64, reason string, at time.Time) error
	CountOccupied(ctx context.Context, concertID uint64) (int, error)
	CountByStatus(ctx context.Context, concertID *uint64) (map[model.TicketStatus]int, error)
	ExistsByConcertAndSeatWithStatus(ctx context.Context, concertID uint64, seat string, statuses []model.TicketStatus) (bool, error)
	ReleaseExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error)
	DeleteExpired(ctx context.Context, cutoff time.Time, concertID *uint64) (int64, error)

	ListAll(ctx context.Context, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByConcert(ctx context.Context, concertID uint64, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByBuyer(ctx context.Context, buyerID uuid.UUID, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByStatus(ctx context.Context, status model.TicketStatus, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByConcertName(ctx context.Context, name string, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByBuyerEmail(ctx context.Context, email string, page model.PageRequest) (model.Page[model.Ticket], error)
	ListByPurchaseRange(ctx context.Context, from, to time.Time, page model.PageRequest) (model.Page[model.Ticket], error)
}

// ConcertDirectory resolves concerts.  It fails with ErrConcertNotFound.
type ConcertDirectory interface {
	GetByID(ctx context.Context, id uint64) (model.Concert, error)
}

// UserDirectory resolves users.  It fails with ErrBuyerNotFound.
type UserDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
}

// Transactor runs fn in a transaction carried by the context it passes.
type Transactor interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// EventPublisher receives ticket events after commit.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.TicketEvent) error
}

// Expiry policies.
const (
	PolicyRelease = "release"
	PolicyDelete  = "delete"
)

const (
	DefaultReservationTTL = 30 * time.Minute
	DefaultActor          = "cashier"
	DefaultPaymentMethod  = "cash"
)

// Config tunes the inventory.  Zero values fall back to the defaults.
type Config struct {
	ReservationTTL time.Duration
	DefaultActor   string
	ExpiryPolicy   string
}

// Deps are the collaborators of a Service.  Events may be nil.
type Deps struct {
	Tx       Transactor
	Tickets  TicketStore
	Concerts ConcertDirectory
	Users    UserDirectory
	Events   EventPublisher
	Now      func() time.Time
}

// Service implements the ticket inventory.
type Service struct {
	tx       Transactor
	tickets  TicketStore
	concerts ConcertDirectory
	users    UserDirectory
	events   EventPublisher
	now      func() time.Time
	cfg      Config
}

// New returns a Service.  A nil deps.Now uses time.Now.
func New(deps Deps, cfg Config) *Service {
	if cfg.ReservationTTL <= 0 {
		cfg.ReservationTTL = DefaultReservationTTL
	}
	if cfg.DefaultActor == "" {
		cfg.DefaultActor = DefaultActor
	}
	if cfg.ExpiryPolicy != PolicyDelete {
		cfg.ExpiryPolicy = PolicyRelease
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		tx:       deps.Tx,
		tickets:  deps.Tickets,
		concerts: deps.Concerts,
		users:    deps.Users,
		events:   deps.Events,
		now:      func() time.Time { return now().UTC() },
		cfg:      cfg,
	}
}

func (s *Service) actor(a string) string {
	if a == "" {
		return s.cfg.DefaultActor
	}
	return a
}

// concertAndBuyer resolves the concert and, when buyerID is set, the
// buyer's email.
func (s *Service) concertAndBuyer(ctx context.Context, concertID uint64, buyerID *uuid.UUID) (model.Concert, string, error) {
	concert, err := s.concerts.GetByID(ctx, concertID)
	if err != nil {
		return model.Concert{}, "", err
	}
	if buyerID == nil {
		return concert, "", nil
	}
	buyer, err := s.users.GetByID(ctx, *buyerID)
	if err != nil {
		return model.Concert{}, "", err
	}
	return concert, buyer.Email, nil
}

// expireLapsed applies the expiry policy to one concert's lapsed
// reservations.  It runs inside the caller's transaction, after the
// concert lock, so capacity freed by lapsed holds is visible to the
// count that follows.
func (s *Service) expireLapsed(ctx context.Context, concertID uint64, cutoff time.Time) (int64, error) {
	if s.cfg.ExpiryPolicy == PolicyDelete {
		return s.tickets.DeleteExpired(ctx, cutoff, &concertID)
	}
	return s.tickets.ReleaseExpired(ctx, cutoff, &concertID)
}

// checkCapacity reads occupancy under the concert lock and fails with a
// *model.CapacityError when requested more tickets do not fit.
func (s *Service) checkCapacity(ctx context.Context, concertID uint64, capacity, requested int) (int, error) {
	occupied, err := s.tickets.CountOccupied(ctx, concertID)
	if err != nil {
		return 0, err
	}
	if occupied+requested > capacity {
		occ := model.NewOccupancy(concertID, capacity, occupied)
		return occupied, &model.CapacityError{
			ConcertID: concertID,
			Requested: requested,
			Capacity:  capacity,
			Occupied:  occupied,
			Available: occ.Available,
		}
	}
	return occupied, nil
}

func (s *Service) publish(ctx context.Context, ev queue.TicketEvent) {
	if s.events == nil {
		return
	}
	ev.Stamp(s.now())
	if err := s.events.Publish(ctx, ev); err != nil {
		log.Printf("inventory: publish %s failed: %v", ev.Type, err)
	}
}

func ticketIDs(ts []model.Ticket) []uint64 {
	ids := make([]uint64, len(ts))
	for i, t := range ts {
		ids[i] = t.ID
	}
	return ids
}

func buyerString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}
