package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/phontary/Dienstato-sub003/internal/api/middleware"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

type shiftRequest struct {
	CalendarID string `json:"calendar_id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	IsAllDay   bool   `json:"is_all_day"`
	Title      string `json:"title"`
	Color      string `json:"color"`
	Notes      string `json:"notes"`
}

// ListShifts returns all shifts for a calendar.
func ListShifts(calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendarID := r.URL.Query().Get("calendarId")
		if calendarID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendarId is required")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, calendarID); cal == nil {
			return
		}

		shifts, err := shiftRepo.ListByCalendar(r.Context(), calendarID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query shifts")
			return
		}

		if shifts == nil {
			shifts = []models.Shift{}
		}
		writeJSON(w, http.StatusOK, shifts)
	}
}

// CreateShift adds a user-authored shift to a calendar.
func CreateShift(calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req shiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.CalendarID == "" || req.Date == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendar_id and date are required")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, req.CalendarID); cal == nil {
			return
		}

		shift := &models.Shift{
			CalendarID: req.CalendarID,
			Date:       req.Date,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			IsAllDay:   req.IsAllDay,
			Title:      req.Title,
			Color:      req.Color,
			Notes:      req.Notes,
		}

		if err := shiftRepo.Create(r.Context(), shift); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create shift")
			return
		}

		broadcastChange(hub, websocket.TypeShiftChanged, websocket.ActionCreated, shift.CalendarID, shift)
		writeJSON(w, http.StatusCreated, shift)
	}
}

// UpdateShift updates an existing shift.
func UpdateShift(calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, ok := loadOwnedShift(w, r, calendarRepo, shiftRepo)
		if !ok {
			return
		}

		var req shiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.Date != "" {
			shift.Date = req.Date
		}
		shift.StartTime = req.StartTime
		shift.EndTime = req.EndTime
		shift.IsAllDay = req.IsAllDay
		if req.Title != "" {
			shift.Title = req.Title
		}
		shift.Color = req.Color
		shift.Notes = req.Notes

		if err := shiftRepo.Update(r.Context(), shift); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update shift")
			return
		}

		broadcastChange(hub, websocket.TypeShiftChanged, websocket.ActionUpdated, shift.CalendarID, shift)
		writeJSON(w, http.StatusOK, shift)
	}
}

// DeleteShift removes a shift.
func DeleteShift(calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		shift, ok := loadOwnedShift(w, r, calendarRepo, shiftRepo)
		if !ok {
			return
		}

		if err := shiftRepo.Delete(r.Context(), shift.ID); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete shift")
			return
		}

		broadcastChange(hub, websocket.TypeShiftChanged, websocket.ActionDeleted, shift.CalendarID, map[string]string{"id": shift.ID})
		w.WriteHeader(http.StatusNoContent)
	}
}

// loadOwnedShift loads the shift from the route and verifies the calendar
// ownership chain. Writes the error response itself on failure.
func loadOwnedShift(w http.ResponseWriter, r *http.Request, calendarRepo *storage.CalendarRepository, shiftRepo *storage.ShiftRepository) (*models.Shift, bool) {
	shift, err := shiftRepo.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load shift")
		return nil, false
	}
	if shift == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Shift not found")
		return nil, false
	}

	if cal := ownedCalendar(r.Context(), w, calendarRepo, shift.CalendarID); cal == nil {
		return nil, false
	}

	return shift, true
}
