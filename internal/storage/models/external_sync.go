package models

import (
	"time"
)

// SyncType identifies the provider behind an external calendar feed.
type SyncType string

const (
	SyncTypeGoogle SyncType = "google"
	SyncTypeICloud SyncType = "icloud"
	SyncTypeCustom SyncType = "custom"
)

// Sync status constants
const (
	SyncStatusPending = "pending"
	SyncStatusSyncing = "syncing"
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// AllowedAutoSyncIntervals is the set of legal auto-sync intervals in
// minutes. 0 means one-time or manual-only.
var AllowedAutoSyncIntervals = []int{0, 5, 15, 30, 60, 120, 360, 720, 1440}

// IsAllowedAutoSyncInterval reports whether the given interval is legal.
func IsAllowedAutoSyncInterval(minutes int) bool {
	for _, v := range AllowedAutoSyncIntervals {
		if v == minutes {
			return true
		}
	}
	return false
}

// ExternalSync represents a configured external calendar feed (ICS/webcal).
// One-time imports embed the uploaded ICS content base64-encoded in the
// CalendarURL field instead of pointing at a remote host.
type ExternalSync struct {
	ID               string     `json:"id"`
	CalendarID       string     `json:"calendar_id"`
	Name             string     `json:"name"`
	SyncType         SyncType   `json:"sync_type"`
	CalendarURL      string     `json:"calendar_url"`
	Color            string     `json:"color"`
	DisplayMode      string     `json:"display_mode"`
	AutoSyncInterval int        `json:"auto_sync_interval"`
	IsOneTimeImport  bool       `json:"is_one_time_import"`
	IsHidden         bool       `json:"is_hidden"`
	HideFromStats    bool       `json:"hide_from_stats"`
	SyncStatus       string     `json:"sync_status"`
	SyncError        *string    `json:"sync_error,omitempty"`
	LastSyncedAt     *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// IsDue reports whether the sync should be picked up by the auto-sync
// scheduler. Zero-interval records never become due automatically.
func (s *ExternalSync) IsDue(now time.Time) bool {
	if s.AutoSyncInterval <= 0 {
		return false
	}
	if s.LastSyncedAt == nil {
		return true
	}
	return now.Sub(*s.LastSyncedAt) >= time.Duration(s.AutoSyncInterval)*time.Minute
}

// SyncResult contains the applied diff of one reconciliation attempt.
type SyncResult struct {
	SyncID        string    `json:"sync_id"`
	SyncName      string    `json:"sync_name"`
	CalendarID    string    `json:"calendar_id"`
	EventsFound   int       `json:"events_found"`
	ShiftsCreated int       `json:"shifts_created"`
	ShiftsUpdated int       `json:"shifts_updated"`
	ShiftsRemoved int       `json:"shifts_removed"`
	Error         error     `json:"-"`
	SyncedAt      time.Time `json:"synced_at"`
}

// Failed reports whether the attempt ended in failure.
func (r *SyncResult) Failed() bool {
	return r.Error != nil
}
