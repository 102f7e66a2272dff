package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/concert-ticketing/internal/config"
	"github.com/iliyamo/concert-ticketing/internal/database"
	"github.com/iliyamo/concert-ticketing/internal/handler"
	"github.com/iliyamo/concert-ticketing/internal/inventory"
	"github.com/iliyamo/concert-ticketing/internal/queue"
	"github.com/iliyamo/concert-ticketing/internal/repository"
	"github.com/iliyamo/concert-ticketing/internal/router"
	"github.com/iliyamo/concert-ticketing/internal/scheduler"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("warning: .env not loaded: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	deps := inventory.Deps{
		Tx:       repository.NewTxManager(db),
		Tickets:  repository.NewTicketRepo(db),
		Concerts: repository.NewConcertRepo(db),
		Users:    repository.NewUserRepo(db),
	}
	if cfg.Events.Enabled {
		publisher := queue.NewPublisher(cfg.Events.URL)
		defer publisher.Close()
		deps.Events = publisher

		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.Events.URL, cfg.Events.AuditLogPath); err != nil && !errors.Is(err, context.Canceled) {
				log.Printf("audit-consumer: stopped: %v", err)
			}
		}()
	}

	inv := inventory.New(deps, inventory.Config{
		ReservationTTL: cfg.Inventory.ReservationTTL,
		DefaultActor:   cfg.Inventory.DefaultActor,
		ExpiryPolicy:   cfg.Inventory.ExpiryPolicy,
	})

	sweeper, err := scheduler.NewSweeper(inv, cfg.Inventory.ExpirySweepInterval)
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	sweeper.Start()

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	router.Register(e, handler.NewTicketHandler(inv), router.Options{
		JWTSecret:      cfg.JWTSecret,
		DB:             db,
		Redis:          rdb,
		RateLimit:      config.LoadRateLimitConfig(),
		Cache:          config.LoadCacheConfig(),
		MetricsEnabled: cfg.MetricsEnabled,
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, expiry=%s every %s)", addr, cfg.Env,
			cfg.Inventory.ExpiryPolicy, cfg.Inventory.ExpirySweepInterval)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := sweeper.Stop(); err != nil {
		log.Printf("scheduler shutdown: %v", err)
	}
}
