// Package api provides HTTP routing and handlers for the REST API.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/phontary/Dienstato-sub003/internal/api/handlers"
	"github.com/phontary/Dienstato-sub003/internal/api/middleware"
	"github.com/phontary/Dienstato-sub003/internal/auth"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	syncsvc "github.com/phontary/Dienstato-sub003/internal/sync"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

// Services bundles everything the router hands to the handlers.
type Services struct {
	DB        *storage.DB
	Hub       *websocket.Hub
	Auth      *auth.Service
	Scheduler *syncsvc.Scheduler
	StaticDir string
}

// NewRouter creates and configures the HTTP router with all API routes.
func NewRouter(svc Services) *mux.Router {
	calendarRepo := storage.NewCalendarRepository(svc.DB)
	shiftRepo := storage.NewShiftRepository(svc.DB)
	syncRepo := storage.NewExternalSyncRepository(svc.DB)

	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging)
	r.Use(middleware.ErrorRecovery)

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()

	// Public endpoints
	api.HandleFunc("/health", handlers.HealthCheck(svc.DB, svc.Hub)).Methods("GET")
	api.HandleFunc("/auth/sessions", handlers.Login(svc.Auth)).Methods("POST")
	api.HandleFunc("/shared/{token}", handlers.GetSharedCalendar(calendarRepo, shiftRepo)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(svc.Hub)).Methods("GET")

	// Everything below requires a session
	authed := api.NewRoute().Subrouter()
	authed.Use(middleware.RequireAuth(svc.Auth))

	authed.HandleFunc("/auth/sessions", handlers.Logout(svc.Auth)).Methods("DELETE")

	// Calendar endpoints
	authed.HandleFunc("/calendars", handlers.ListCalendars(calendarRepo)).Methods("GET")
	authed.HandleFunc("/calendars", handlers.CreateCalendar(calendarRepo)).Methods("POST")
	authed.HandleFunc("/calendars/{id}", handlers.GetCalendar(calendarRepo)).Methods("GET")
	authed.HandleFunc("/calendars/{id}", handlers.UpdateCalendar(calendarRepo, svc.Hub)).Methods("PUT")
	authed.HandleFunc("/calendars/{id}", handlers.DeleteCalendar(calendarRepo, svc.Hub)).Methods("DELETE")
	authed.HandleFunc("/calendars/{id}/share", handlers.ShareCalendar(calendarRepo)).Methods("POST")
	authed.HandleFunc("/calendars/{id}/share", handlers.UnshareCalendar(calendarRepo)).Methods("DELETE")

	// Shift endpoints
	authed.HandleFunc("/shifts", handlers.ListShifts(calendarRepo, shiftRepo)).Methods("GET")
	authed.HandleFunc("/shifts", handlers.CreateShift(calendarRepo, shiftRepo, svc.Hub)).Methods("POST")
	authed.HandleFunc("/shifts/{id}", handlers.UpdateShift(calendarRepo, shiftRepo, svc.Hub)).Methods("PUT")
	authed.HandleFunc("/shifts/{id}", handlers.DeleteShift(calendarRepo, shiftRepo, svc.Hub)).Methods("DELETE")

	// Shift preset endpoints
	authed.HandleFunc("/presets", handlers.ListPresets(calendarRepo)).Methods("GET")
	authed.HandleFunc("/presets", handlers.CreatePreset(calendarRepo, svc.Hub)).Methods("POST")
	authed.HandleFunc("/presets/{id}", handlers.DeletePreset(calendarRepo, svc.Hub)).Methods("DELETE")

	// External sync endpoints
	authed.HandleFunc("/external-syncs", handlers.ListExternalSyncs(calendarRepo, syncRepo)).Methods("GET")
	authed.HandleFunc("/external-syncs", handlers.CreateExternalSync(calendarRepo, syncRepo, svc.Scheduler, svc.Hub)).Methods("POST")
	authed.HandleFunc("/external-syncs/{id}", handlers.GetExternalSync(calendarRepo, syncRepo)).Methods("GET")
	authed.HandleFunc("/external-syncs/{id}", handlers.UpdateExternalSync(calendarRepo, syncRepo, svc.Hub)).Methods("PUT")
	authed.HandleFunc("/external-syncs/{id}", handlers.DeleteExternalSync(calendarRepo, syncRepo, svc.Hub)).Methods("DELETE")
	authed.HandleFunc("/external-syncs/{id}/sync", handlers.TriggerExternalSync(calendarRepo, syncRepo, svc.Scheduler)).Methods("POST")

	// Serve static frontend files
	if svc.StaticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(svc.StaticDir)))
	}

	return r
}
