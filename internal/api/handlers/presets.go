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

type presetRequest struct {
	CalendarID string `json:"calendar_id"`
	Name       string `json:"name"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Color      string `json:"color"`
}

// ListPresets returns all shift presets for a calendar.
func ListPresets(calendarRepo *storage.CalendarRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendarID := r.URL.Query().Get("calendarId")
		if calendarID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendarId is required")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, calendarID); cal == nil {
			return
		}

		presets, err := calendarRepo.ListPresets(r.Context(), calendarID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query presets")
			return
		}

		if presets == nil {
			presets = []models.ShiftPreset{}
		}
		writeJSON(w, http.StatusOK, presets)
	}
}

// CreatePreset adds a shift preset to a calendar.
func CreatePreset(calendarRepo *storage.CalendarRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req presetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.CalendarID == "" || req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendar_id and name are required")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, req.CalendarID); cal == nil {
			return
		}

		preset := &models.ShiftPreset{
			CalendarID: req.CalendarID,
			Name:       req.Name,
			StartTime:  req.StartTime,
			EndTime:    req.EndTime,
			Color:      req.Color,
		}

		if err := calendarRepo.CreatePreset(r.Context(), preset); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create preset")
			return
		}

		broadcastChange(hub, websocket.TypePresetChanged, websocket.ActionCreated, preset.CalendarID, preset)
		writeJSON(w, http.StatusCreated, preset)
	}
}

// DeletePreset removes a shift preset.
func DeletePreset(calendarRepo *storage.CalendarRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preset, err := calendarRepo.GetPreset(r.Context(), mux.Vars(r)["id"])
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load preset")
			return
		}
		if preset == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Preset not found")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, preset.CalendarID); cal == nil {
			return
		}

		if err := calendarRepo.DeletePreset(r.Context(), preset.ID); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete preset")
			return
		}

		broadcastChange(hub, websocket.TypePresetChanged, websocket.ActionDeleted, preset.CalendarID, map[string]string{"id": preset.ID})
		w.WriteHeader(http.StatusNoContent)
	}
}
