package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/inventory"
	"github.com/iliyamo/concert-ticketing/internal/middleware"
	"github.com/iliyamo/concert-ticketing/internal/model"
)

type bookBody struct {
	ConcertID             uint64     `json:"concert_id" validate:"required"`
	SeatNumber            string     `json:"seat_number" validate:"max=32"`
	Quantity              int        `json:"quantity" validate:"gte=0,lte=50"`
	ReservationExpiration *time.Time `json:"reservation_expiration"`
}

type purchaseBody struct {
	ConcertID     uint64 `json:"concert_id" validate:"required"`
	SeatNumber    string `json:"seat_number" validate:"max=32"`
	PaymentMethod string `json:"payment_method" validate:"max=32"`
	Quantity      int    `json:"quantity" validate:"gte=0,lte=50"`
}

type returnBody struct {
	Reason string `json:"reason" validate:"max=255"`
}

// caller returns the identity set by JWTAuth.
func caller(c echo.Context) (middleware.Identity, bool) {
	return middleware.CurrentIdentity(c)
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
}

// actorOf labels the caller in audit logs.
func actorOf(id middleware.Identity) string {
	if id.Email != "" {
		return id.Email
	}
	return id.UserID.String()
}

// Book handles POST /v1/tickets/book.  The caller becomes the buyer of
// the reservations.  It returns 201 with the reserved tickets, 404 for
// an unknown concert and 409 with the occupancy counts when the hall is
// full.
func (h *TicketHandler) Book(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var body bookBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	tickets, err := h.Inv.Book(c.Request().Context(), inventory.BookRequest{
		ConcertID:  body.ConcertID,
		Seat:       body.SeatNumber,
		BuyerID:    &id.UserID,
		Expiration: body.ReservationExpiration,
		Quantity:   body.Quantity,
		Actor:      actorOf(id),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tickets)
}

// Purchase handles POST /v1/tickets/purchase.  The caller's own
// reservations for the concert are converted first.
func (h *TicketHandler) Purchase(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var body purchaseBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	tickets, err := h.Inv.Purchase(c.Request().Context(), inventory.PurchaseRequest{
		ConcertID:     body.ConcertID,
		Seat:          body.SeatNumber,
		BuyerID:       &id.UserID,
		PaymentMethod: body.PaymentMethod,
		Quantity:      body.Quantity,
		Actor:         actorOf(id),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tickets)
}

// MyTickets handles GET /v1/tickets/mine.
func (h *TicketHandler) MyTickets(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	page, err := h.Inv.TicketsByBuyer(c.Request().Context(), id.UserID, pageRequest(c))
	if err != nil {
		return writeError(c, err)
	}
	return pageJSON(c, page)
}

// ReturnOwn handles POST /v1/tickets/:id/return for customers.  A
// ticket that does not belong to the caller yields 403; staff go
// through ReturnAny instead.
func (h *TicketHandler) ReturnOwn(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	var body returnBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	ctx := c.Request().Context()
	if !model.IsStaff(id.Role) {
		t, err := h.Inv.Get(ctx, ticketID)
		if err != nil {
			return writeError(c, err)
		}
		if !t.OwnedBy(id.UserID) {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "ticket belongs to another user"})
		}
	}
	t, err := h.Inv.ReturnTicket(ctx, ticketID, body.Reason, actorOf(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// Availability handles GET /v1/concerts/:id/availability.
func (h *TicketHandler) Availability(c echo.Context) error {
	concertID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	page, err := h.Inv.Availability(c.Request().Context(), concertID, pageRequest(c))
	if err != nil {
		return writeError(c, err)
	}
	return pageJSON(c, page)
}

// Occupancy handles GET /v1/concerts/:id/occupancy.
func (h *TicketHandler) Occupancy(c echo.Context) error {
	concertID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	occ, err := h.Inv.Occupancy(c.Request().Context(), concertID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, occ)
}
