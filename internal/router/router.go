// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/concert-ticketing/internal/config"
	"github.com/iliyamo/concert-ticketing/internal/handler"
	"github.com/iliyamo/concert-ticketing/internal/middleware"
	"github.com/iliyamo/concert-ticketing/internal/model"
)

// Options carries what the route groups need besides the handler.
// Redis may be nil, which disables rate limiting and caching.
type Options struct {
	JWTSecret      string
	DB             handler.Pinger
	Redis          *redis.Client
	RateLimit      config.RateLimitConfig
	Cache          config.CacheConfig
	MetricsEnabled bool
}

// Register mounts every route on e.
func Register(e *echo.Echo, h *handler.TicketHandler, opt Options) {
	RegisterPublic(e, h, opt)
	RegisterCustomer(e, h, opt)
	RegisterStaff(e, h, opt)
}

// RegisterPublic registers unauthenticated endpoints: health, metrics
// and the availability views of a concert.
func RegisterPublic(e *echo.Echo, h *handler.TicketHandler, opt Options) {
	e.GET("/healthz", handler.Health(opt.DB))
	if opt.MetricsEnabled {
		e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	}

	cache := middleware.NewRedisCache(opt.Cache, opt.Redis)
	e.GET("/v1/concerts/:id/availability", h.Availability, cache)
	e.GET("/v1/concerts/:id/occupancy", h.Occupancy)
}

// RegisterCustomer registers the self-service ticket routes.  Any
// authenticated role may call them; they act on the caller's own
// tickets and are rate limited per user.
func RegisterCustomer(e *echo.Echo, h *handler.TicketHandler, opt Options) {
	g := e.Group(
		"/v1/tickets",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.NewTokenBucket(opt.RateLimit, opt.Redis),
	)
	g.POST("/book", h.Book)
	g.POST("/purchase", h.Purchase)
	g.GET("/mine", h.MyTickets)
	g.POST("/:id/return", h.ReturnOwn)
}

// RegisterStaff registers box-office and administration routes for
// ADMIN and CASHIER.  The manual expiry sweep is ADMIN only.
func RegisterStaff(e *echo.Echo, h *handler.TicketHandler, opt Options) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(opt.JWTSecret),
		middleware.RequireStaff(),
	)
	g.POST("/tickets", h.CreateTicket)
	g.GET("/tickets/:id", h.GetTicket)
	g.POST("/tickets/search", h.Search)
	g.POST("/tickets/sell", h.Sell)
	g.POST("/tickets/sales", h.SalesHistory)
	g.POST("/tickets/expire", h.Expire, middleware.RequireRole(model.RoleAdmin))

	g.POST("/staff/tickets/book", h.StaffBook)
	g.POST("/staff/tickets/purchase", h.StaffPurchase)
	g.POST("/staff/tickets/:id/return", h.ReturnAny)

	g.GET("/concerts/:id/stats", h.ConcertStats)
	g.GET("/statistics/tickets", h.Statistics)
}
