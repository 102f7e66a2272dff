// Package handler holds the thin echo handlers in front of the ticket
// inventory.  Handlers bind and validate input, resolve the caller and
// map inventory errors onto HTTP statuses.
package handler

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/inventory"
	"github.com/iliyamo/concert-ticketing/internal/model"
)

// Inventory is the part of inventory.Service the handlers use.
type Inventory interface {
	Book(ctx context.Context, req inventory.BookRequest) ([]model.Ticket, error)
	Purchase(ctx context.Context, req inventory.PurchaseRequest) ([]model.Ticket, error)
	Sell(ctx context.Context, req inventory.SellRequest) ([]model.Ticket, error)
	ReturnTicket(ctx context.Context, ticketID uint64, reason, actor string) (model.Ticket, error)
	Get(ctx context.Context, ticketID uint64) (model.Ticket, error)
	CreateAvailable(ctx context.Context, concertID uint64, seat string) (model.Ticket, error)
	Availability(ctx context.Context, concertID uint64, page model.PageRequest) (model.Page[model.Ticket], error)
	ListTickets(ctx context.Context, f inventory.TicketFilter, page model.PageRequest) (model.Page[model.Ticket], error)
	TicketsByBuyer(ctx context.Context, buyerID uuid.UUID, page model.PageRequest) (model.Page[model.Ticket], error)
	SalesHistory(ctx context.Context, from, to time.Time, page model.PageRequest) (model.Page[model.Ticket], error)
	Occupancy(ctx context.Context, concertID uint64) (model.Occupancy, error)
	ConcertStats(ctx context.Context, concertID uint64) (model.ConcertStats, error)
	Statistics(ctx context.Context) (model.TicketStatistics, error)
	ExpireReservations(ctx context.Context, cutoff time.Time) (int64, error)
}

var _ Inventory = (*inventory.Service)(nil)

// TicketHandler serves every ticket route.  Which routes a caller may
// reach is decided by the router's middleware.
type TicketHandler struct {
	Inv Inventory
}

// NewTicketHandler panics when inv is nil.
func NewTicketHandler(inv Inventory) *TicketHandler {
	if inv == nil {
		panic("nil inventory passed to NewTicketHandler")
	}
	return &TicketHandler{Inv: inv}
}

type pageBody[T any] struct {
	model.Page[T]
	TotalPages int `json:"total_pages"`
}

func pageJSON[T any](c echo.Context, p model.Page[T]) error {
	return c.JSON(http.StatusOK, pageBody[T]{Page: p, TotalPages: p.TotalPages()})
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

// pageRequest reads ?page=&size=&sort= with the usual defaults
// (page 0, size 20, unsorted).
func pageRequest(c echo.Context) model.PageRequest {
	number, _ := strconv.Atoi(c.QueryParam("page"))
	size, _ := strconv.Atoi(c.QueryParam("size"))
	return model.NewPageRequest(number, size, c.QueryParam("sort"))
}

// bindValid binds and validates a request body.
func bindValid(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errors.New("invalid request body")
	}
	return c.Validate(dst)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
}

// writeError maps inventory errors onto HTTP responses.
func writeError(c echo.Context, err error) error {
	var capErr *model.CapacityError
	switch {
	case errors.As(err, &capErr):
		return c.JSON(http.StatusConflict, echo.Map{
			"error":     err.Error(),
			"capacity":  capErr.Capacity,
			"occupied":  capErr.Occupied,
			"available": capErr.Available,
			"requested": capErr.Requested,
		})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrInvalidRequest):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "request timed out"})
	}
	log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
