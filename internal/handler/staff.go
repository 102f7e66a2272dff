package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/inventory"
	"github.com/iliyamo/concert-ticketing/internal/model"
)

type staffBookBody struct {
	bookBody
	BuyerID *uuid.UUID `json:"buyer_id"`
}

type staffPurchaseBody struct {
	purchaseBody
	BuyerID *uuid.UUID `json:"buyer_id"`
}

type sellBody struct {
	ConcertID     uint64 `json:"concert_id" validate:"required"`
	BuyerEmail    string `json:"buyer_email" validate:"required,email"`
	PaymentMethod string `json:"payment_method" validate:"max=32"`
	Quantity      int    `json:"quantity" validate:"gte=0,lte=50"`
}

type createTicketBody struct {
	ConcertID  uint64 `json:"concert_id" validate:"required"`
	SeatNumber string `json:"seat_number" validate:"required,max=32"`
}

type searchBody struct {
	ConcertID   *uint64    `json:"concert_id"`
	BuyerID     *uuid.UUID `json:"buyer_id"`
	ConcertName string     `json:"concert_name" validate:"max=255"`
	BuyerEmail  string     `json:"buyer_email" validate:"max=255"`
	Status      string     `json:"status" validate:"ticketstatus"`
}

type salesBody struct {
	From time.Time `json:"from" validate:"required"`
	To   time.Time `json:"to" validate:"required"`
}

type expireBody struct {
	Cutoff *time.Time `json:"cutoff"`
}

// StaffBook handles POST /v1/staff/tickets/book.  The buyer is optional.
func (h *TicketHandler) StaffBook(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var body staffBookBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	tickets, err := h.Inv.Book(c.Request().Context(), inventory.BookRequest{
		ConcertID:  body.ConcertID,
		Seat:       body.SeatNumber,
		BuyerID:    body.BuyerID,
		Expiration: body.ReservationExpiration,
		Quantity:   body.Quantity,
		Actor:      actorOf(id),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tickets)
}

// StaffPurchase handles POST /v1/staff/tickets/purchase.
func (h *TicketHandler) StaffPurchase(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var body staffPurchaseBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	tickets, err := h.Inv.Purchase(c.Request().Context(), inventory.PurchaseRequest{
		ConcertID:     body.ConcertID,
		Seat:          body.SeatNumber,
		BuyerID:       body.BuyerID,
		PaymentMethod: body.PaymentMethod,
		Quantity:      body.Quantity,
		Actor:         actorOf(id),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tickets)
}

// Sell handles POST /v1/tickets/sell, the box-office sale to a
// registered buyer identified by email.
func (h *TicketHandler) Sell(c echo.Context) error {
	id, ok := caller(c)
	if !ok {
		return unauthorized(c)
	}
	var body sellBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	tickets, err := h.Inv.Sell(c.Request().Context(), inventory.SellRequest{
		ConcertID:     body.ConcertID,
		BuyerEmail:    body.BuyerEmail,
		PaymentMethod: body.PaymentMethod,
		Quantity:      body.Quantity,
		Actor:         actorOf(id),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, tickets)
}

// ReturnAny handles POST /v1/staff/tickets/:id/return.  No ownership
// check.
func (h *TicketHandler) ReturnAny(c echo.Context) error {
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
	t, err := h.Inv.ReturnTicket(c.Request().Context(), ticketID, body.Reason, actorOf(id))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// GetTicket handles GET /v1/tickets/:id.
func (h *TicketHandler) GetTicket(c echo.Context) error {
	ticketID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid ticket id"})
	}
	t, err := h.Inv.Get(c.Request().Context(), ticketID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// CreateTicket handles POST /v1/tickets: one AVAILABLE ticket for a
// seat that the concert does not have yet.
func (h *TicketHandler) CreateTicket(c echo.Context) error {
	var body createTicketBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	t, err := h.Inv.CreateAvailable(c.Request().Context(), body.ConcertID, body.SeatNumber)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// Search handles POST /v1/tickets/search.  Only the most specific
// filter present is applied: concert_id, buyer_id, concert_name,
// buyer_email, status.
func (h *TicketHandler) Search(c echo.Context) error {
	var body searchBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	page, err := h.Inv.ListTickets(c.Request().Context(), inventory.TicketFilter{
		ConcertID:   body.ConcertID,
		BuyerID:     body.BuyerID,
		ConcertName: body.ConcertName,
		BuyerEmail:  body.BuyerEmail,
		Status:      model.TicketStatus(strings.ToUpper(body.Status)),
	}, pageRequest(c))
	if err != nil {
		return writeError(c, err)
	}
	return pageJSON(c, page)
}

// SalesHistory handles POST /v1/tickets/sales.
func (h *TicketHandler) SalesHistory(c echo.Context) error {
	var body salesBody
	if err := bindValid(c, &body); err != nil {
		return badRequest(c, err)
	}
	page, err := h.Inv.SalesHistory(c.Request().Context(), body.From, body.To, pageRequest(c))
	if err != nil {
		return writeError(c, err)
	}
	return pageJSON(c, page)
}

// ConcertStats handles GET /v1/concerts/:id/stats.
func (h *TicketHandler) ConcertStats(c echo.Context) error {
	concertID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid concert id"})
	}
	stats, err := h.Inv.ConcertStats(c.Request().Context(), concertID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Statistics handles GET /v1/statistics/tickets.
func (h *TicketHandler) Statistics(c echo.Context) error {
	stats, err := h.Inv.Statistics(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

// Expire handles POST /v1/tickets/expire, a manual run of the expiry
// sweep.  An empty body uses the current time as cutoff.
func (h *TicketHandler) Expire(c echo.Context) error {
	var body expireBody
	if c.Request().ContentLength != 0 {
		if err := bindValid(c, &body); err != nil {
			return badRequest(c, err)
		}
	}
	var cutoff time.Time
	if body.Cutoff != nil {
		cutoff = *body.Cutoff
	}
	if !cutoff.IsZero() && cutoff.After(time.Now().Add(24*time.Hour)) {
		return badRequest(c, errors.New("cutoff is too far in the future"))
	}
	n, err := h.Inv.ExpireReservations(c.Request().Context(), cutoff)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"expired": n})
}
