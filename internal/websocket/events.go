package websocket

import (
	"log"

	"github.com/phontary/Dienstato-sub003/internal/storage/models"
)

// EventBroadcaster publishes calendar-scoped change events to the hub.
type EventBroadcaster struct {
	hub *Hub
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub}
}

// BroadcastChange publishes a generic change event to the subscribers of a
// calendar. Every mutation of calendar-visible state goes through here.
func (b *EventBroadcaster) BroadcastChange(msgType MessageType, action, calendarID string, payload any) {
	b.send(NewMessage(msgType, action, calendarID, payload))
}

// BroadcastSyncCompleted publishes the applied diff of a successful
// reconciliation attempt.
func (b *EventBroadcaster) BroadcastSyncCompleted(result models.SyncResult) {
	payload := SyncCompletedPayload{
		SyncID:        result.SyncID,
		SyncName:      result.SyncName,
		Status:        models.SyncStatusSuccess,
		EventsFound:   result.EventsFound,
		ShiftsCreated: result.ShiftsCreated,
		ShiftsUpdated: result.ShiftsUpdated,
		ShiftsRemoved: result.ShiftsRemoved,
	}

	b.send(NewMessage(TypeSyncCompleted, "", result.CalendarID, payload))
}

// BroadcastSyncError publishes a failed reconciliation attempt.
func (b *EventBroadcaster) BroadcastSyncError(calendarID, syncID, syncName string, err error) {
	payload := SyncErrorPayload{
		SyncID:   syncID,
		SyncName: syncName,
		Error:    "sync_error",
		Message:  err.Error(),
	}

	b.send(NewMessage(TypeSyncError, "", calendarID, payload))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:   level,
		Title:   title,
		Message: message,
	}

	b.send(NewMessage(TypeNotification, "", "", payload))
}

func (b *EventBroadcaster) send(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		log.Printf("Error encoding WebSocket message: %v", err)
		return
	}

	if msg.CalendarID != "" {
		b.hub.BroadcastToCalendar(msg.CalendarID, data)
		return
	}
	b.hub.Broadcast(data)
}
