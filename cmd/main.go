// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/portfest/registration-api/internal/config"
	"github.com/portfest/registration-api/internal/database"
	"github.com/portfest/registration-api/internal/handler"
	"github.com/portfest/registration-api/internal/repository"
	"github.com/portfest/registration-api/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// ── 1. Connect to PostgreSQL and apply migrations ─────────────────────
	if err := database.Migrate(cfg); err != nil {
		log.Fatalf("migrate: %v", err)
	}
	pool, err := database.NewPool(ctx, cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()
	log.Println("✓ Connected to PostgreSQL")

	// ── 2. Wire up layers ────────────────────────────────────────────────
	counterRepo := repository.NewCounterRepository(pool)
	regRepo := repository.NewRegistrationRepository(pool)

	var cache service.SeatCache = service.NoopSeatCache{}
	if cfg.RedisAddr != "" {
		cache = service.NewRedisSeatCache(cfg.RedisAddr, cfg.RedisPassword)
		log.Printf("✓ Seat cache enabled (%s)", cfg.RedisAddr)
	}

	var notifier service.Notifier = service.NoopNotifier{}
	if cfg.SMTPHost != "" {
		notifier = service.NewEmailNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
		log.Printf("✓ Confirmation email enabled (%s)", cfg.SMTPHost)
	}

	admissionSvc := service.NewAdmissionService(cfg.Catalog, counterRepo, regRepo, cache, notifier)
	regHandler := handler.NewRegistrationHandler(admissionSvc)

	if cfg.ReconcileInterval > 0 {
		sweeper, err := service.StartSweeper(admissionSvc, cfg.ReconcileInterval)
		if err != nil {
			log.Fatalf("sweeper: %v", err)
		}
		defer sweeper.Stop()
		log.Printf("✓ Reconcile sweep every %s", cfg.ReconcileInterval)
	}

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(chimiddleware.Logger)    // access log
	r.Use(handler.CORS)

	// Health
	r.Get("/health", handler.HealthCheck)

	// Public API
	r.Get("/events", regHandler.ListEvents)
	r.Route("/registrations/{eventKey}", func(r chi.Router) {
		r.Post("/", regHandler.Register)
		r.Get("/", regHandler.CheckDuplicate)
		r.Get("/count", regHandler.SeatCount)
		r.Get("/{id}/pass", regHandler.EntryPass)
	})

	// Admin API
	r.Route("/admin", func(r chi.Router) {
		r.Use(handler.AdminOnly(cfg.JWTSecret))
		r.Get("/registrations/{eventKey}", regHandler.ListRegistrations)
		r.Post("/reconcile", regHandler.Reconcile)
		r.Post("/reconcile/{eventKey}", regHandler.Reconcile)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		log.Printf("✓ Server listening on http://localhost:%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server…")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("graceful shutdown failed: %v", err)
	}
	log.Println("server stopped")
}
