package websocket

import (
	"encoding/json"
	"time"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeCalendarChanged     MessageType = "calendar.changed"
	TypeShiftChanged        MessageType = "shift.changed"
	TypePresetChanged       MessageType = "preset.changed"
	TypeExternalSyncChanged MessageType = "external_sync.changed"
	TypeSyncCompleted       MessageType = "external_sync.completed"
	TypeSyncError           MessageType = "external_sync.error"
	TypeNotification        MessageType = "notification"

	// Client -> Server command types
	TypeSubscribe   MessageType = "subscribe"
	TypeUnsubscribe MessageType = "unsubscribe"
	TypePing        MessageType = "ping"

	// Server -> Client response types
	TypeSubscribeAck MessageType = "subscribe.ack"
	TypePong         MessageType = "pong"
)

// Change action constants for *.changed events.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type       MessageType `json:"type"`
	Action     string      `json:"action,omitempty"`
	CalendarID string      `json:"calendar_id,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    any         `json:"payload"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, action, calendarID string, payload any) Message {
	return Message{
		Type:       msgType,
		Action:     action,
		CalendarID: calendarID,
		Timestamp:  time.Now().UTC(),
		Payload:    payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// ClientCommand is a command sent from the client (subscribe, ping).
type ClientCommand struct {
	Type    MessageType `json:"type"`
	Payload struct {
		CalendarID string `json:"calendar_id"`
	} `json:"payload"`
}

// SyncCompletedPayload is the payload for external_sync.completed events.
type SyncCompletedPayload struct {
	SyncID        string `json:"sync_id"`
	SyncName      string `json:"sync_name"`
	Status        string `json:"status"`
	EventsFound   int    `json:"events_found"`
	ShiftsCreated int    `json:"shifts_created"`
	ShiftsUpdated int    `json:"shifts_updated"`
	ShiftsRemoved int    `json:"shifts_removed"`
}

// SyncErrorPayload is the payload for external_sync.error events.
type SyncErrorPayload struct {
	SyncID   string `json:"sync_id"`
	SyncName string `json:"sync_name"`
	Error    string `json:"error"`
	Message  string `json:"message"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level   string `json:"level"` // info, warning, error, success
	Title   string `json:"title"`
	Message string `json:"message"`
}
