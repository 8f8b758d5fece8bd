package models

import (
	"time"
)

// Calendar represents a shift calendar owned by a user.
type Calendar struct {
	ID         string    `json:"id"`
	OwnerID    string    `json:"owner_id"`
	Name       string    `json:"name"`
	Color      string    `json:"color"`
	ShareToken *string   `json:"share_token,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ShiftPreset is a quick-add template for recurring shift shapes
// (e.g. "Early 06:00-14:00").
type ShiftPreset struct {
	ID         string    `json:"id"`
	CalendarID string    `json:"calendar_id"`
	Name       string    `json:"name"`
	StartTime  string    `json:"start_time"`
	EndTime    string    `json:"end_time"`
	Color      string    `json:"color"`
	CreatedAt  time.Time `json:"created_at"`
}
