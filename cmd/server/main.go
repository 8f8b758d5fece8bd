// Package main is the entry point for the Dienstato shift planner server.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phontary/Dienstato-sub003/internal/api"
	"github.com/phontary/Dienstato-sub003/internal/auth"
	"github.com/phontary/Dienstato-sub003/internal/config"
	"github.com/phontary/Dienstato-sub003/internal/ics"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
	syncsvc "github.com/phontary/Dienstato-sub003/internal/sync"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
// Defaults to "dev" when not provided.
var version = "dev"

func main() {
	configPath := flag.String("config", "./config.yaml", "Path to YAML config file")
	addr := flag.String("addr", "", "HTTP server address (overrides config)")
	dataDir := flag.String("data", "", "Data directory for SQLite database (overrides config)")
	staticDir := flag.String("static", "", "Directory for static frontend files (overrides config)")
	healthCheck := flag.Bool("health-check", false, "Run health check and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config %q: %v", *configPath, err)
	}
	if *addr != "" {
		cfg.Listen = *addr
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}

	// Health check mode for Docker HEALTHCHECK
	if *healthCheck {
		if err := runHealthCheck(cfg.Listen); err != nil {
			log.Fatalf("Health check failed: %v", err)
		}
		os.Exit(0)
	}

	if envVer := os.Getenv("VERSION"); envVer != "" {
		version = envVer
	}

	log.Printf("Starting Dienstato server (version: %s)...", version)

	// Initialize database
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("Failed to create data directory %q: %v", cfg.DataDir, err)
	}
	dbPath := cfg.DataDir + "/dienstato.db"
	db, err := storage.NewDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	// Run migrations
	if err := storage.RunMigrations(db); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	log.Println("Database migrations complete")

	// Initialize WebSocket hub
	hub := websocket.NewHub()
	go hub.Run()

	// Initialize repositories and services
	userRepo := storage.NewUserRepository(db)
	syncRepo := storage.NewExternalSyncRepository(db)
	shiftRepo := storage.NewShiftRepository(db)

	authService := auth.NewService(userRepo)
	authService.SetSessionTTL(cfg.SessionTTL())

	bootstrapAdmin(userRepo)

	fetcher := ics.NewFetcher(cfg.Sync.FetchTimeout())
	syncService := syncsvc.NewService(db, syncRepo, shiftRepo, fetcher)
	syncService.SetHorizon(cfg.Sync.Horizon())

	scheduler := syncsvc.NewScheduler(syncService, syncRepo, hub, syncsvc.SchedulerOptions{
		TickInterval: cfg.Sync.TickInterval(),
		WorkerCount:  cfg.Sync.Workers,
		GracePeriod:  cfg.Sync.GracePeriod(),
	})
	if err := scheduler.Start(); err != nil {
		log.Fatalf("Failed to start sync scheduler: %v", err)
	}

	go sessionCleanupLoop(userRepo)

	// Initialize HTTP router
	router := api.NewRouter(api.Services{
		DB:        db,
		Hub:       hub,
		Auth:      authService,
		Scheduler: scheduler,
		StaticDir: cfg.StaticDir,
	})

	server := &http.Server{
		Addr:         cfg.Listen,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		log.Printf("Server listening on %s", cfg.Listen)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	scheduler.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// bootstrapAdmin creates the initial admin account from ADMIN_EMAIL and
// ADMIN_PASSWORD when that account does not exist yet. Without it a fresh
// database has no way to log in.
func bootstrapAdmin(userRepo *storage.UserRepository) {
	email := os.Getenv("ADMIN_EMAIL")
	password := os.Getenv("ADMIN_PASSWORD")
	if email == "" || password == "" {
		return
	}

	ctx := context.Background()
	existing, err := userRepo.GetByEmail(ctx, email)
	if err != nil {
		log.Printf("Admin bootstrap lookup failed: %v", err)
		return
	}
	if existing != nil {
		return
	}

	admin := &models.User{
		Email:        email,
		Name:         "Admin",
		PasswordHash: auth.HashPassword(password),
		IsAdmin:      true,
	}
	if err := userRepo.Create(ctx, admin); err != nil {
		log.Printf("Admin bootstrap failed: %v", err)
		return
	}
	log.Printf("Created admin account %s", email)
}

// sessionCleanupLoop periodically removes expired sessions.
func sessionCleanupLoop(userRepo *storage.UserRepository) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for range ticker.C {
		n, err := userRepo.DeleteExpiredSessions(context.Background())
		if err != nil {
			log.Printf("Session cleanup failed: %v", err)
			continue
		}
		if n > 0 {
			log.Printf("Removed %d expired sessions", n)
		}
	}
}

// runHealthCheck performs a health check against the running server.
func runHealthCheck(addr string) error {
	url := "http://localhost" + addr + "/api/health"
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return http.ErrAbortHandler
	}
	return nil
}
