package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/phontary/Dienstato-sub003/internal/api/middleware"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

type calendarRequest struct {
	Name  string `json:"name"`
	Color string `json:"color"`
}

// ownedCalendar loads a calendar and checks that the authenticated user owns
// it. Writes the error response itself and returns nil when the caller
// should stop.
func ownedCalendar(ctx context.Context, w http.ResponseWriter, calendarRepo *storage.CalendarRepository, calendarID string) *models.Calendar {
	cal, err := calendarRepo.GetByID(ctx, calendarID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load calendar")
		return nil
	}
	if cal == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Calendar not found")
		return nil
	}

	user := middleware.UserFromContext(ctx)
	if user == nil || (cal.OwnerID != user.ID && !user.IsAdmin) {
		middleware.WriteError(w, http.StatusForbidden, middleware.ErrForbidden, "Not your calendar")
		return nil
	}

	return cal
}

// ListCalendars returns the authenticated user's calendars.
func ListCalendars(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := middleware.UserFromContext(r.Context())

		calendars, err := calendarRepo.ListByOwner(r.Context(), user.ID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query calendars")
			return
		}

		if calendars == nil {
			calendars = []models.Calendar{}
		}
		writeJSON(w, http.StatusOK, calendars)
	}
}

// CreateCalendar adds a new calendar for the authenticated user.
func CreateCalendar(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req calendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Name is required")
			return
		}

		user := middleware.UserFromContext(r.Context())
		cal := &models.Calendar{
			OwnerID: user.ID,
			Name:    req.Name,
			Color:   req.Color,
		}
		if cal.Color == "" {
			cal.Color = "#3b82f6"
		}

		if err := calendarRepo.Create(r.Context(), cal); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create calendar")
			return
		}

		writeJSON(w, http.StatusCreated, cal)
	}
}

// GetCalendar returns a single calendar by ID.
func GetCalendar(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := ownedCalendar(r.Context(), w, calendarRepo, mux.Vars(r)["id"])
		if cal == nil {
			return
		}
		writeJSON(w, http.StatusOK, cal)
	}
}

// UpdateCalendar updates a calendar's name and color.
func UpdateCalendar(calendarRepo *storage.CalendarRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := ownedCalendar(r.Context(), w, calendarRepo, mux.Vars(r)["id"])
		if cal == nil {
			return
		}

		var req calendarRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}
		if req.Name != "" {
			cal.Name = req.Name
		}
		if req.Color != "" {
			cal.Color = req.Color
		}

		if err := calendarRepo.Update(r.Context(), cal); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update calendar")
			return
		}

		broadcastChange(hub, websocket.TypeCalendarChanged, websocket.ActionUpdated, cal.ID, cal)
		writeJSON(w, http.StatusOK, cal)
	}
}

// DeleteCalendar removes a calendar and everything attached to it.
func DeleteCalendar(calendarRepo *storage.CalendarRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := ownedCalendar(r.Context(), w, calendarRepo, mux.Vars(r)["id"])
		if cal == nil {
			return
		}

		if err := calendarRepo.Delete(r.Context(), cal.ID); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete calendar")
			return
		}

		broadcastChange(hub, websocket.TypeCalendarChanged, websocket.ActionDeleted, cal.ID, map[string]string{"id": cal.ID})
		w.WriteHeader(http.StatusNoContent)
	}
}

// ShareCalendar issues a share token for read-only access.
func ShareCalendar(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := ownedCalendar(r.Context(), w, calendarRepo, mux.Vars(r)["id"])
		if cal == nil {
			return
		}

		token := storage.GenerateID()
		if err := calendarRepo.SetShareToken(r.Context(), cal.ID, &token); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to issue share token")
			return
		}

		writeJSON(w, http.StatusCreated, map[string]string{"share_token": token})
	}
}

// UnshareCalendar revokes the calendar's share token.
func UnshareCalendar(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cal := ownedCalendar(r.Context(), w, calendarRepo, mux.Vars(r)["id"])
		if cal == nil {
			return
		}

		if err := calendarRepo.SetShareToken(r.Context(), cal.ID, nil); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to revoke share token")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

type sharedCalendarResponse struct {
	Calendar models.Calendar `json:"calendar"`
	Shifts   []models.Shift  `json:"shifts"`
}

// GetSharedCalendar returns a calendar and its shifts by share token.
// No session is required; the token itself is the credential.
func GetSharedCalendar(calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := mux.Vars(r)["token"]

		cal, err := calendarRepo.GetByShareToken(r.Context(), token)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load calendar")
			return
		}
		if cal == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Unknown share token")
			return
		}

		shifts, err := shiftRepo.ListByCalendar(r.Context(), cal.ID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load shifts")
			return
		}
		if shifts == nil {
			shifts = []models.Shift{}
		}

		writeJSON(w, http.StatusOK, sharedCalendarResponse{Calendar: *cal, Shifts: shifts})
	}
}

func broadcastChange(hub *websocket.Hub, msgType websocket.MessageType, action, calendarID string, payload any) {
	if hub == nil {
		return
	}
	websocket.NewEventBroadcaster(hub).BroadcastChange(msgType, action, calendarID, payload)
}
