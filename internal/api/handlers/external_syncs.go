package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/phontary/Dienstato-sub003/internal/api/middleware"
	"github.com/phontary/Dienstato-sub003/internal/ics"
	"github.com/phontary/Dienstato-sub003/internal/storage"
	"github.com/phontary/Dienstato-sub003/internal/storage/models"
	syncsvc "github.com/phontary/Dienstato-sub003/internal/sync"
	"github.com/phontary/Dienstato-sub003/internal/websocket"
)

type createExternalSyncRequest struct {
	CalendarID       string `json:"calendarId"`
	Name             string `json:"name"`
	CalendarURL      string `json:"calendarUrl,omitempty"`
	ICSContent       string `json:"icsContent,omitempty"`
	Color            string `json:"color,omitempty"`
	DisplayMode      string `json:"displayMode,omitempty"`
	AutoSyncInterval int    `json:"autoSyncInterval,omitempty"`
	IsHidden         bool   `json:"isHidden,omitempty"`
	HideFromStats    bool   `json:"hideFromStats,omitempty"`
}

type updateExternalSyncRequest struct {
	Name             *string `json:"name,omitempty"`
	Color            *string `json:"color,omitempty"`
	DisplayMode      *string `json:"displayMode,omitempty"`
	AutoSyncInterval *int    `json:"autoSyncInterval,omitempty"`
	IsHidden         *bool   `json:"isHidden,omitempty"`
	HideFromStats    *bool   `json:"hideFromStats,omitempty"`
}

// ListExternalSyncs returns all sync records for a calendar, newest first.
func ListExternalSyncs(calendarRepo *storage.CalendarRepository, syncRepo *storage.ExternalSyncRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calendarID := r.URL.Query().Get("calendarId")
		if calendarID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendarId is required")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, calendarID); cal == nil {
			return
		}

		syncs, err := syncRepo.ListByCalendar(r.Context(), calendarID)
		if err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to query external syncs")
			return
		}

		if syncs == nil {
			syncs = []models.ExternalSync{}
		}
		writeJSON(w, http.StatusOK, syncs)
	}
}

// CreateExternalSync registers a new feed, either by URL or by uploaded ICS
// content. Content uploads become one-time imports; URL feeds are classified
// and validated against the provider allow-list before anything is stored.
func CreateExternalSync(
	calendarRepo *storage.CalendarRepository,
	syncRepo *storage.ExternalSyncRepository,
	scheduler *syncsvc.Scheduler,
	hub *websocket.Hub,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createExternalSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.CalendarID == "" || req.Name == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "calendarId and name are required")
			return
		}
		if (req.CalendarURL == "") == (req.ICSContent == "") {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "Exactly one of calendarUrl or icsContent is required")
			return
		}
		if !models.IsAllowedAutoSyncInterval(req.AutoSyncInterval) {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "autoSyncInterval is not an allowed value")
			return
		}

		if cal := ownedCalendar(r.Context(), w, calendarRepo, req.CalendarID); cal == nil {
			return
		}

		record := &models.ExternalSync{
			CalendarID:       req.CalendarID,
			Name:             req.Name,
			Color:            req.Color,
			DisplayMode:      req.DisplayMode,
			AutoSyncInterval: req.AutoSyncInterval,
			IsHidden:         req.IsHidden,
			HideFromStats:    req.HideFromStats,
		}
		if record.DisplayMode == "" {
			record.DisplayMode = "default"
		}

		if req.ICSContent != "" {
			// Uploaded content: validated here, then embedded in the URL
			// field and reconciled exactly once.
			if err := ics.ValidateContent([]byte(req.ICSContent)); err != nil {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrContentError, err.Error())
				return
			}
			record.SyncType = models.SyncTypeCustom
			record.CalendarURL = ics.EncodeContentURL([]byte(req.ICSContent))
			record.IsOneTimeImport = true
			record.AutoSyncInterval = 0
		} else {
			syncType, err := ics.ValidateSyncURL(req.CalendarURL)
			if err != nil {
				writeSyncURLError(w, req.CalendarURL, err)
				return
			}
			record.SyncType = syncType
			record.CalendarURL = req.CalendarURL
		}

		if err := syncRepo.Create(r.Context(), record); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to create external sync")
			return
		}

		// Kick off the first reconciliation right away; for one-time imports
		// this is the only one that will ever run.
		if scheduler != nil {
			if err := scheduler.TriggerSync(record.ID, record.Name); err != nil {
				log.Printf("Initial sync trigger failed for %s: %v", record.ID, err)
			}
		}

		broadcastChange(hub, websocket.TypeExternalSyncChanged, websocket.ActionCreated, record.CalendarID, record)
		writeJSON(w, http.StatusCreated, record)
	}
}

// writeSyncURLError maps URL validation failures onto the error taxonomy:
// allow-list failures are security rejections and logged distinctly, while
// malformed URLs are ordinary validation errors.
func writeSyncURLError(w http.ResponseWriter, rawURL string, err error) {
	var verr *ics.ValidationError
	if errors.As(err, &verr) && verr.Rule != ics.RuleMalformed {
		log.Printf("Rejected sync URL %q (rule=%s): %s", rawURL, verr.Rule, verr.Message)
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrSecurityRejection, verr.Message)
		return
	}
	middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, err.Error())
}

// GetExternalSync returns a single sync record.
func GetExternalSync(calendarRepo *storage.CalendarRepository, syncRepo *storage.ExternalSyncRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadOwnedSync(w, r, calendarRepo, syncRepo)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, record)
	}
}

// UpdateExternalSync updates display settings and the auto-sync interval.
func UpdateExternalSync(calendarRepo *storage.CalendarRepository, syncRepo *storage.ExternalSyncRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadOwnedSync(w, r, calendarRepo, syncRepo)
		if !ok {
			return
		}

		var req updateExternalSyncRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
			return
		}

		if req.AutoSyncInterval != nil {
			if !models.IsAllowedAutoSyncInterval(*req.AutoSyncInterval) {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "autoSyncInterval is not an allowed value")
				return
			}
			if record.IsOneTimeImport && *req.AutoSyncInterval != 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "One-time imports cannot have an auto-sync interval")
				return
			}
			record.AutoSyncInterval = *req.AutoSyncInterval
		}
		if req.Name != nil && *req.Name != "" {
			record.Name = *req.Name
		}
		if req.Color != nil {
			record.Color = *req.Color
		}
		if req.DisplayMode != nil && *req.DisplayMode != "" {
			record.DisplayMode = *req.DisplayMode
		}
		if req.IsHidden != nil {
			record.IsHidden = *req.IsHidden
		}
		if req.HideFromStats != nil {
			record.HideFromStats = *req.HideFromStats
		}

		if err := syncRepo.Update(r.Context(), record); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to update external sync")
			return
		}

		broadcastChange(hub, websocket.TypeExternalSyncChanged, websocket.ActionUpdated, record.CalendarID, record)
		writeJSON(w, http.StatusOK, record)
	}
}

// DeleteExternalSync removes a sync record and the shifts it imported.
func DeleteExternalSync(calendarRepo *storage.CalendarRepository, syncRepo *storage.ExternalSyncRepository, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadOwnedSync(w, r, calendarRepo, syncRepo)
		if !ok {
			return
		}

		if err := syncRepo.Delete(r.Context(), record.ID); err != nil {
			middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to delete external sync")
			return
		}

		broadcastChange(hub, websocket.TypeExternalSyncChanged, websocket.ActionDeleted, record.CalendarID, map[string]string{"id": record.ID})
		w.WriteHeader(http.StatusNoContent)
	}
}

// TriggerExternalSync starts a manual reconciliation attempt. A record that
// is already syncing responds with a conflict instead of a second attempt.
func TriggerExternalSync(
	calendarRepo *storage.CalendarRepository,
	syncRepo *storage.ExternalSyncRepository,
	scheduler *syncsvc.Scheduler,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		record, ok := loadOwnedSync(w, r, calendarRepo, syncRepo)
		if !ok {
			return
		}

		if scheduler == nil {
			middleware.WriteError(w, http.StatusServiceUnavailable, middleware.ErrInternalError, "Sync scheduler not available")
			return
		}

		if err := scheduler.TriggerSync(record.ID, record.Name); err != nil {
			middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, "Sync already in progress")
			return
		}

		writeJSON(w, http.StatusAccepted, map[string]string{"status": models.SyncStatusSyncing})
	}
}

// loadOwnedSync loads the sync record from the route and verifies the
// calendar ownership chain. Writes the error response itself on failure.
func loadOwnedSync(w http.ResponseWriter, r *http.Request, calendarRepo *storage.CalendarRepository, syncRepo *storage.ExternalSyncRepository) (*models.ExternalSync, bool) {
	record, err := syncRepo.GetByID(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "Failed to load external sync")
		return nil, false
	}
	if record == nil {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "External sync not found")
		return nil, false
	}

	if cal := ownedCalendar(r.Context(), w, calendarRepo, record.CalendarID); cal == nil {
		return nil, false
	}

	return record, true
}
