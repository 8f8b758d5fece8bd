package models

import (
	"time"
)

// Shift represents a single calendar entry. Shifts created through the API
// have no sync back-reference; shifts imported from an external feed carry
// the originating sync ID and the remote event UID used for reconciliation.
type Shift struct {
	ID             string    `json:"id"`
	CalendarID     string    `json:"calendar_id"`
	Date           string    `json:"date"`       // YYYY-MM-DD
	StartTime      string    `json:"start_time"` // HH:MM, empty for all-day
	EndTime        string    `json:"end_time"`
	IsAllDay       bool      `json:"is_all_day"`
	Title          string    `json:"title"`
	Color          string    `json:"color"`
	Notes          string    `json:"notes"`
	ExternalSyncID *string   `json:"external_sync_id,omitempty"`
	RemoteEventUID *string   `json:"remote_event_uid,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsImported returns true if the shift was produced by an external sync.
func (s *Shift) IsImported() bool {
	return s.ExternalSyncID != nil
}
